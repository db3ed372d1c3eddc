package activitymap

import (
	"context"
	"strconv"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-stamp"
)

const (
	// MetadataKeyScheme stores the authentication scheme the event concerns.
	MetadataKeyScheme = "scheme"
	// MetadataKeyReason stores the rejection or failure reason.
	MetadataKeyReason = "reason"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(auth.ActivityEvent) string
	clock            auth.Clock
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
// Events without an account, such as a sign in for an unknown email, are
// attributed to the actor fallback.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(accountID(event), options.actorFallback)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.clock.Now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// Sink adapts an emit function into an auth.ActivitySink that forwards
// normalized records.
func Sink(emit func(Normalized) error, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event has no account.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(clock auth.Clock) Option {
	return func(opts *normalizeOptions) {
		if opts == nil || clock == nil {
			return
		}
		opts.clock = clock
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		clock:         auth.SystemClock(),
	}
}

func accountID(event auth.ActivityEvent) string {
	if event.AccountID == 0 {
		return ""
	}
	return strconv.FormatInt(event.AccountID, 10)
}

func resolveObjectID(event auth.ActivityEvent, resolver func(auth.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return accountID(event)
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if scheme := strings.TrimSpace(event.Scheme); scheme != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyScheme]; !exists {
			metadata[MetadataKeyScheme] = scheme
		}
	}

	if reason := strings.TrimSpace(event.Reason); reason != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[MetadataKeyReason] = reason
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
