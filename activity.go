package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess        ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure        ActivityEventType = "auth.signin.failure"
	ActivityEventTwoFactorRequired    ActivityEventType = "auth.signin.two_factor_required"
	ActivityEventSignOut              ActivityEventType = "auth.signout"
	ActivityEventSessionRejected      ActivityEventType = "auth.session.rejected"
	ActivityEventPrincipalRefreshed   ActivityEventType = "auth.principal.refreshed"
	ActivityEventPasswordRehashNeeded ActivityEventType = "auth.password.rehash_needed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  int64
	Scheme     string
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity stamps the event and logs sink failures without
// propagating them.
func recordActivity(ctx context.Context, sink ActivitySink, clock Clock, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = clock.Now()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("activity sink failed", "event", string(event.EventType), "error", err)
	}
}
