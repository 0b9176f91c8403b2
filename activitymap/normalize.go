// Package activitymap flattens auth activity events into a record that can
// be logged or shipped without depending on the auth package types.
package activitymap

import (
	"maps"
	"strings"
	"time"

	auth "github.com/goliatone/go-authcore"
)

// MetadataKeyEmail stores the event email when one is known
const MetadataKeyEmail = "email"

const (
	defaultChannel    = "auth"
	defaultObjectType = "account"
	anonymousActor    = "anonymous"
)

// Record is the normalized activity shape
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Outcome    string         `json:"outcome"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization
type Option func(*options)

type options struct {
	channel   string
	redactPII bool
	now       func() time.Time
}

// WithChannel overrides the default "auth" channel
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithoutEmail drops the email from the metadata
func WithoutEmail() Option {
	return func(o *options) {
		o.redactPII = true
	}
}

// WithNow sets the clock used for events without a timestamp
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Normalize converts an auth.ActivityEvent into a Record. Failed flows
// often have no account yet, those are attributed to an anonymous actor.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{channel: defaultChannel, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	accountID := strings.TrimSpace(event.AccountID)
	actorID := accountID
	if actorID == "" {
		actorID = anonymousActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now().UTC()
	}

	return Record{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: defaultObjectType,
		ObjectID:   accountID,
		Channel:    o.channel,
		Outcome:    Outcome(event.EventType),
		Metadata:   metadata(event, o.redactPII),
		OccurredAt: occurredAt,
	}
}

// Outcome classifies an event type as "success" or "failure"
func Outcome(eventType auth.ActivityEventType) string {
	switch eventType {
	case auth.ActivityEventSignupFailure, auth.ActivityEventLoginFailure, auth.ActivityEventFederatedFailed:
		return "failure"
	default:
		return "success"
	}
}

// Attrs returns the record as alternating key/value pairs for a Logger
func (r Record) Attrs() []any {
	attrs := []any{
		"actor_id", r.ActorID,
		"verb", r.Verb,
		"outcome", r.Outcome,
		"channel", r.Channel,
		"occurred_at", r.OccurredAt.Format(time.RFC3339),
	}
	if r.ObjectID != "" {
		attrs = append(attrs, "object_id", r.ObjectID)
	}
	if len(r.Metadata) > 0 {
		attrs = append(attrs, "metadata", r.Metadata)
	}
	return attrs
}

func metadata(event auth.ActivityEvent, redact bool) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = maps.Clone(event.Metadata)
	}

	if email := strings.TrimSpace(event.Email); email != "" && !redact {
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[MetadataKeyEmail]; !exists {
			out[MetadataKeyEmail] = email
		}
	}

	if redact {
		delete(out, MetadataKeyEmail)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
