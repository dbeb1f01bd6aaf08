package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veriden/authcore/devicetrust"
	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal"
)

// rememberDevice creates a trust for the presented fingerprint and returns
// the opaque trust token. Evicting the oldest trust at the cap emits a
// DeviceRevoked event with LIMIT_EXCEEDED.
func (a *Authenticator) rememberDevice(ctx context.Context, user *User, fingerprint string) (string, error) {
	token, err := internal.NewPrefixedToken("dvt_")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	trust := &devicetrust.DeviceTrust{
		ID:              token,
		UserID:          user.ID,
		FingerprintHash: internal.HashFingerprint(fingerprint),
		UserAgent:       userAgentFromContext(ctx),
		IPAddress:       clientIPFromContext(ctx),
		CreatedAt:       now,
		LastUsedAt:      now,
		ExpiresAt:       now.Add(a.config.DeviceTrust.TTL),
	}

	evicted, err := a.trusts.Create(ctx, trust)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if evicted != nil {
		a.metricInc(MetricDeviceEvicted)
		a.emitEvent(ctx, event.TypeDeviceRevoked, user.ID, map[string]string{
			"deviceTrustId": evicted.ID,
			"reason":        devicetrust.ReasonLimitExceeded,
		})
	}

	a.metricInc(MetricDeviceRemembered)
	a.emitEvent(ctx, event.TypeDeviceRemembered, user.ID, map[string]string{
		"deviceTrustId":   trust.ID,
		"fingerprintHash": fmt.Sprintf("%x", trust.FingerprintHash[:8]),
		"userAgent":       trust.UserAgent,
		"ipAddress":       trust.IPAddress,
		"trustedUntil":    trust.ExpiresAt.Format(time.RFC3339),
	})
	return token, nil
}

// RevokeDevice removes one remembered device at the user's request.
func (a *Authenticator) RevokeDevice(ctx context.Context, userID, trustID string) error {
	trust, err := a.trusts.Revoke(ctx, userID, trustID)
	if err != nil {
		if errors.Is(err, devicetrust.ErrNotTrusted) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	a.metricInc(MetricDeviceRevoked)
	a.emitEvent(ctx, event.TypeDeviceRevoked, userID, map[string]string{
		"deviceTrustId": trust.ID,
		"reason":        devicetrust.ReasonUserRevoked,
	})
	return nil
}

// RevokeAllDevices removes every remembered device of the user and returns
// the count.
func (a *Authenticator) RevokeAllDevices(ctx context.Context, userID string) (int, error) {
	return a.revokeAllDevices(ctx, userID, devicetrust.ReasonUserRevokedAll)
}

// RevokeAllForPasswordChange is the device-revocation hook invoked by
// password-change orchestration upstream of this core.
func (a *Authenticator) RevokeAllForPasswordChange(ctx context.Context, userID string) (int, error) {
	return a.revokeAllDevices(ctx, userID, devicetrust.ReasonPasswordChanged)
}

func (a *Authenticator) revokeAllDevices(ctx context.Context, userID, reason string) (int, error) {
	removed, err := a.trusts.RevokeAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, trust := range removed {
		a.metricInc(MetricDeviceRevoked)
		a.emitEvent(ctx, event.TypeDeviceRevoked, userID, map[string]string{
			"deviceTrustId": trust.ID,
			"reason":        reason,
		})
	}
	return len(removed), nil
}

// ListDevices returns the user's remembered devices, oldest first, with a
// display name derived from the stored user agent.
func (a *Authenticator) ListDevices(ctx context.Context, userID string) ([]DeviceInfo, error) {
	live, err := a.trusts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	infos := make([]DeviceInfo, 0, len(live))
	for _, trust := range live {
		infos = append(infos, DeviceInfo{
			ID:         trust.ID,
			Name:       DeviceName(trust.UserAgent),
			UserAgent:  trust.UserAgent,
			IPAddress:  trust.IPAddress,
			CreatedAt:  trust.CreatedAt,
			LastUsedAt: trust.LastUsedAt,
			ExpiresAt:  trust.ExpiresAt,
		})
	}
	return infos, nil
}
