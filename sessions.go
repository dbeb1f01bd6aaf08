package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/session"
)

// Logout invalidates one session owned by the user.
func (a *Authenticator) Logout(ctx context.Context, userID, sessionID string) error {
	return a.invalidateSession(ctx, userID, sessionID, event.SessionReasonLogout)
}

// InvalidateSession removes a session for a security action, e.g. an
// administrator response to suspicious activity.
func (a *Authenticator) InvalidateSession(ctx context.Context, userID, sessionID string) error {
	return a.invalidateSession(ctx, userID, sessionID, event.SessionReasonSecurity)
}

func (a *Authenticator) invalidateSession(ctx context.Context, userID, sessionID, reason string) error {
	sess, err := a.sessions.Delete(ctx, userID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNotOwned):
			return ErrSessionNotFound
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	a.metricInc(MetricSessionInvalidated)
	a.emitEvent(ctx, event.TypeSessionInvalidated, userID, map[string]string{
		"sessionId": sess.ID,
		"reason":    reason,
	})
	return nil
}

// InvalidateAllSessions removes every session of the user and returns how
// many were removed. Used for security actions such as password changes.
func (a *Authenticator) InvalidateAllSessions(ctx context.Context, userID string) (int, error) {
	removed, err := a.sessions.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, sess := range removed {
		a.metricInc(MetricSessionInvalidated)
		a.emitEvent(ctx, event.TypeSessionInvalidated, userID, map[string]string{
			"sessionId": sess.ID,
			"reason":    event.SessionReasonSecurity,
		})
	}
	return len(removed), nil
}

// ListSessions returns the user's live sessions, oldest first.
func (a *Authenticator) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	live, err := a.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	infos := make([]SessionInfo, 0, len(live))
	for _, sess := range live {
		infos = append(infos, SessionInfo{
			ID:        sess.ID,
			DeviceID:  sess.DeviceID,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}
	return infos, nil
}
