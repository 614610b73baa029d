package plugin

import (
	"context"

	"github.com/postpilot/postpilot/internal/transfer"
)

const (
	EventPublished        = "post:published"
	EventFailed           = "post:failed"
	EventUpdated          = "post:updated"
	EventUpdateFailed     = "post:update-failed"
	EventCommented        = "post:commented"
	EventCommentFailed    = "post:comment-failed"
	EventValidationFailed = "post:validation-failed"
)

// Event is the typed lifecycle record the orchestrator hands to its sink
// after every dispatch. Side effects stay visible in the call path instead of
// flowing through an implicit bus.
type Event struct {
	Kind      string
	PostID    int64
	AccountID int64
	UserID    int64
	Platform  string
	Response  *transfer.PublishResponse
	Errors    map[string][]transfer.ValidationError
	Err       string
}

// EventSink consumes orchestrator events. Implementations must be
// best-effort; the orchestrator ignores sink failures.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink discards events; used in tests and tooling.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}
