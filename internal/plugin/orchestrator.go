package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
)

// ValidationFailedError carries the per-platform error map produced when a
// publish is refused before any handler dispatch.
type ValidationFailedError struct {
	Errors map[string][]transfer.ValidationError
}

func (e *ValidationFailedError) Error() string {
	platforms := make([]string, 0, len(e.Errors))
	for p := range e.Errors {
		platforms = append(platforms, p)
	}
	return fmt.Sprintf("post failed validation for: %s", strings.Join(platforms, ", "))
}

// Orchestrator validates and dispatches single-post operations against the
// one handler matching an account's platform. It never decides post state
// itself; callers interpret the returned error and update the lifecycle
// store.
type Orchestrator struct {
	registry *Registry
	sink     EventSink
}

func NewOrchestrator(registry *Registry, sink EventSink) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{registry: registry, sink: sink}
}

// ValidateAll runs every registered handler's Validate against the post and
// collects platform → errors. A post with any non-empty entry is
// unpublishable.
func (o *Orchestrator) ValidateAll(ctx context.Context, post *models.Post) map[string][]transfer.ValidationError {
	out := make(map[string][]transfer.ValidationError)
	o.registry.Each(func(h Handler) {
		if errs := h.Validate(ctx, post); len(errs) > 0 {
			out[h.Platform()] = errs
		}
	})
	return out
}

// Publish re-validates against the target account's platform, then
// dispatches. Validation failure aborts before the handler's Post is invoked;
// other platforms' rules do not apply to this dispatch. Handler errors
// propagate to the caller, which decides whether the post becomes failed.
func (o *Orchestrator) Publish(ctx context.Context, post *models.Post, comments []string, account *models.SocialAccount) (*transfer.PublishResponse, error) {
	h, err := o.registry.Handler(account.Platform)
	if err != nil {
		o.sink.Emit(ctx, Event{
			Kind:      EventFailed,
			PostID:    post.ID,
			AccountID: account.ID,
			UserID:    post.UserID,
			Platform:  account.Platform,
			Err:       err.Error(),
		})
		return nil, err
	}

	if errs := h.Validate(ctx, post); len(errs) > 0 {
		failed := map[string][]transfer.ValidationError{account.Platform: errs}
		o.sink.Emit(ctx, Event{
			Kind:      EventValidationFailed,
			PostID:    post.ID,
			AccountID: account.ID,
			UserID:    post.UserID,
			Platform:  account.Platform,
			Errors:    failed,
		})
		return nil, &ValidationFailedError{Errors: failed}
	}

	resp, err := h.Post(ctx, post, comments, account)
	if err != nil {
		o.sink.Emit(ctx, Event{
			Kind:      EventFailed,
			PostID:    post.ID,
			AccountID: account.ID,
			UserID:    post.UserID,
			Platform:  account.Platform,
			Err:       err.Error(),
		})
		return nil, err
	}

	o.sink.Emit(ctx, Event{
		Kind:      EventPublished,
		PostID:    post.ID,
		AccountID: account.ID,
		UserID:    post.UserID,
		Platform:  account.Platform,
		Response:  resp,
	})
	return resp, nil
}

// Update dispatches an edit of an already-published artifact. No
// pre-validation: the content was validated when first published and the
// handler re-checks what it must.
func (o *Orchestrator) Update(ctx context.Context, post *models.Post, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	h, err := o.registry.Handler(account.Platform)
	if err != nil {
		o.sink.Emit(ctx, Event{
			Kind: EventUpdateFailed, PostID: post.ID, AccountID: account.ID,
			UserID: post.UserID, Platform: account.Platform, Err: err.Error(),
		})
		return nil, err
	}

	resp, err := h.Update(ctx, post, account, detail)
	if err != nil {
		o.sink.Emit(ctx, Event{
			Kind: EventUpdateFailed, PostID: post.ID, AccountID: account.ID,
			UserID: post.UserID, Platform: account.Platform, Err: err.Error(),
		})
		return nil, err
	}

	o.sink.Emit(ctx, Event{
		Kind: EventUpdated, PostID: post.ID, AccountID: account.ID,
		UserID: post.UserID, Platform: account.Platform, Response: resp,
	})
	return resp, nil
}

// AddComment dispatches one comment against a published artifact.
func (o *Orchestrator) AddComment(ctx context.Context, post *models.Post, comment string, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	h, err := o.registry.Handler(account.Platform)
	if err != nil {
		o.sink.Emit(ctx, Event{
			Kind: EventCommentFailed, PostID: post.ID, AccountID: account.ID,
			UserID: post.UserID, Platform: account.Platform, Err: err.Error(),
		})
		return nil, err
	}

	resp, err := h.AddComment(ctx, comment, account, detail)
	if err != nil {
		o.sink.Emit(ctx, Event{
			Kind: EventCommentFailed, PostID: post.ID, AccountID: account.ID,
			UserID: post.UserID, Platform: account.Platform, Err: err.Error(),
		})
		return nil, err
	}

	o.sink.Emit(ctx, Event{
		Kind: EventCommented, PostID: post.ID, AccountID: account.ID,
		UserID: post.UserID, Platform: account.Platform, Response: resp,
	})
	return resp, nil
}

// GetStatistic dispatches a read-only stats call. No events: statistics are
// best-effort and the error goes straight back to the caller.
func (o *Orchestrator) GetStatistic(ctx context.Context, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PostStatistic, error) {
	h, err := o.registry.Handler(account.Platform)
	if err != nil {
		return nil, err
	}
	return h.GetStatistic(ctx, account, detail)
}

// PublishComments publishes an ordered comment list sequentially, preserving
// platform-side thread order. One failed comment becomes a failed result
// entry and the rest still run.
func (o *Orchestrator) PublishComments(ctx context.Context, post *models.Post, comments []string, account *models.SocialAccount, detail *models.PublishDetail) []transfer.CommentResult {
	results := make([]transfer.CommentResult, 0, len(comments))
	for i, comment := range comments {
		resp, err := o.AddComment(ctx, post, comment, account, detail)
		if err != nil {
			slog.Info("comment publish failed",
				"post_id", post.ID, "account_id", account.ID, "index", i, "error", err.Error())
			results = append(results, transfer.CommentResult{
				Index:  i,
				Status: models.PostStatusFailed,
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, transfer.CommentResult{
			Index:    i,
			Status:   models.PostStatusPublished,
			Response: resp,
		})
	}
	return results
}
