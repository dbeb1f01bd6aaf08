// Package internaldefs holds the shared metric name/help definitions used
// by the exporter packages. Not intended for direct use.
package internaldefs

import (
	authcore "github.com/veriden/authcore"
)

// CounterDef maps one internal counter to its exported name and help text.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricSignInSuccess, Name: "authcore_signin_success_total", Help: "Successful sign-in completions."},
	{ID: authcore.MetricSignInFailure, Name: "authcore_signin_failure_total", Help: "Failed credential validations."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Accounts locked for repeated failures."},
	{ID: authcore.MetricAccountInactive, Name: "authcore_account_inactive_total", Help: "Sign-ins rejected for inactive account status."},
	{ID: authcore.MetricMFARequired, Name: "authcore_mfa_required_total", Help: "Sign-ins requiring an MFA step."},
	{ID: authcore.MetricMFATrustedBypass, Name: "authcore_mfa_trusted_bypass_total", Help: "MFA steps bypassed by a trusted device."},
	{ID: authcore.MetricTOTPSuccess, Name: "authcore_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: authcore.MetricTOTPFailure, Name: "authcore_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: authcore.MetricTOTPReplay, Name: "authcore_totp_replay_total", Help: "TOTP codes rejected as already used."},
	{ID: authcore.MetricSMSSent, Name: "authcore_sms_sent_total", Help: "SMS codes handed to the delivery gateway."},
	{ID: authcore.MetricSMSSendFailed, Name: "authcore_sms_send_failed_total", Help: "SMS deliveries that failed at the gateway."},
	{ID: authcore.MetricSMSRateLimited, Name: "authcore_sms_rate_limited_total", Help: "SMS sends denied by the hourly cap."},
	{ID: authcore.MetricSMSCooldown, Name: "authcore_sms_cooldown_total", Help: "SMS sends denied by the resend cooldown."},
	{ID: authcore.MetricSMSSuccess, Name: "authcore_sms_success_total", Help: "Successful SMS code verifications."},
	{ID: authcore.MetricSMSFailure, Name: "authcore_sms_failure_total", Help: "Failed SMS code verifications."},
	{ID: authcore.MetricMFAExpired, Name: "authcore_mfa_expired_total", Help: "MFA verifications against expired or missing challenges."},
	{ID: authcore.MetricMFAAttemptsExceeded, Name: "authcore_mfa_attempts_exceeded_total", Help: "MFA challenges invalidated by the attempt cap."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Explicitly invalidated sessions."},
	{ID: authcore.MetricSessionEvicted, Name: "authcore_session_evicted_total", Help: "Sessions evicted by the concurrent-session cap."},
	{ID: authcore.MetricDeviceRemembered, Name: "authcore_device_remembered_total", Help: "Device trusts created."},
	{ID: authcore.MetricDeviceRevoked, Name: "authcore_device_revoked_total", Help: "Device trusts revoked."},
	{ID: authcore.MetricDeviceEvicted, Name: "authcore_device_evicted_total", Help: "Device trusts evicted by the per-user cap."},
	{ID: authcore.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Access/refresh token pairs issued."},
	{ID: authcore.MetricKeyRotated, Name: "authcore_key_rotated_total", Help: "Signing key rotations."},
}
