// Package audit records key domain actions for operational visibility.
// Events are emitted from service code, queued by the publisher and written
// to a sink (in-memory for development, Kafka in shared deployments).
package audit

import (
	"context"
	"time"
)

// Action names what happened. The set is closed; handlers and consumers
// switch on it.
type Action string

const (
	ActionUserAuthenticated Action = "user_authenticated"
	ActionCheckinCreated    Action = "checkin_created"
	ActionCheckinUpdated    Action = "checkin_updated"
	ActionCheckinDeleted    Action = "checkin_deleted"
	ActionListJoined        Action = "list_joined"
	ActionListLeft          Action = "list_left"
	ActionUserMigrated      Action = "user_migrated"
)

// Event is emitted from domain logic to capture one action. It is
// transport-agnostic so sinks can fan out.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`

	// UserID is the acting user, zero when a backend client acted.
	UserID int64 `json:"userId,omitempty"`
	// Client marks actions performed by a validated backend client.
	Client bool `json:"client,omitempty"`

	// Subject is the id of the thing acted on: a check-in, list or user id.
	Subject string `json:"subject,omitempty"`

	RequestID string `json:"requestId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Sink persists audit events. Implementations: MemorySink and KafkaSink.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
