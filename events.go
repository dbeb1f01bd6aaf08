package authcore

import (
	"context"

	"github.com/veriden/authcore/event"
)

// emitEvent appends and schedules one domain event. Append failures are
// swallowed here: audit must not fail the authentication path, but the
// dropped counter still reflects publish-side loss.
func (a *Authenticator) emitEvent(ctx context.Context, eventType, userID string, payload map[string]string) {
	e := event.New(eventType, userID, correlationIDFromContext(ctx), payload)
	_ = a.dispatcher.Emit(e)
}
