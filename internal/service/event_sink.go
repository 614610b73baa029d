package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
)

// notificationSink turns orchestrator lifecycle events into user
// notifications. It is the one consumer of the orchestrator's typed event
// stream.
type notificationSink struct {
	ns NotificationService
}

func NewNotificationSink(ns NotificationService) plugin.EventSink {
	return &notificationSink{ns: ns}
}

func (s *notificationSink) Emit(ctx context.Context, ev plugin.Event) {
	metadata := map[string]string{
		"post_id":  strconv.FormatInt(ev.PostID, 10),
		"platform": ev.Platform,
	}

	switch ev.Kind {
	case plugin.EventPublished:
		s.ns.Notify(ctx, ev.UserID, models.NotificationSuccess,
			"Post published",
			fmt.Sprintf("Your post was published to %s", ev.Platform), metadata)
	case plugin.EventFailed:
		s.ns.Notify(ctx, ev.UserID, models.NotificationError,
			"Post failed",
			fmt.Sprintf("Publishing to %s failed: %s", ev.Platform, ev.Err), metadata)
	case plugin.EventValidationFailed:
		s.ns.Notify(ctx, ev.UserID, models.NotificationError,
			"Post rejected",
			"Your post failed platform validation and was not published", metadata)
	case plugin.EventUpdateFailed, plugin.EventCommentFailed:
		s.ns.Notify(ctx, ev.UserID, models.NotificationWarning,
			"Post update failed",
			fmt.Sprintf("An update on %s failed: %s", ev.Platform, ev.Err), metadata)
	}
}
