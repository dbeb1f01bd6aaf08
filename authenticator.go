package authcore

import (
	"github.com/veriden/authcore/devicetrust"
	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal/rate"
	"github.com/veriden/authcore/internal/stores"
	"github.com/veriden/authcore/keys"
	"github.com/veriden/authcore/password"
	"github.com/veriden/authcore/session"
	"github.com/veriden/authcore/sms"
	"github.com/veriden/authcore/token"
	"github.com/veriden/authcore/totp"
)

// Authenticator is the orchestrator composing credential validation, MFA,
// sessions, device trust, and token issuance into the end-to-end sign-in
// flow. Construct it with the Builder; all methods are safe for concurrent
// use.
type Authenticator struct {
	config Config

	users  UserStore
	hasher *password.Hasher

	keys   *keys.Store
	tokens *token.Issuer

	totp          *totp.Verifier
	smsSender     sms.Sender
	smsLimiter    *rate.SMSLimiter
	ghostFailures *rate.FailureCounter

	challenges *stores.ChallengeStore
	usedCodes  *stores.UsedCodeStore
	sessions   *session.Store
	trusts     *devicetrust.Store

	dispatcher *event.Dispatcher
	metrics    *Metrics
}

// Config returns a copy of the validated configuration.
func (a *Authenticator) Config() Config {
	return a.config
}

// MetricsSnapshot exposes the counter state for the exporter packages.
func (a *Authenticator) MetricsSnapshot() MetricsSnapshot {
	return a.metrics.Snapshot()
}

// EventsDropped returns how many events were appended to the log but never
// published because the dispatcher queue was full.
func (a *Authenticator) EventsDropped() uint64 {
	return a.dispatcher.Dropped()
}

// RotateSigningKey rotates the JWT signing key. Tokens signed by the old
// key keep verifying for the configured retirement window.
func (a *Authenticator) RotateSigningKey() error {
	if err := a.keys.Rotate(); err != nil {
		return err
	}
	a.metrics.Inc(MetricKeyRotated)
	return nil
}

// Close drains the event dispatcher. Call once when shutting down.
func (a *Authenticator) Close() {
	a.dispatcher.Close()
}

func (a *Authenticator) metricInc(id MetricID) {
	a.metrics.Inc(id)
}
