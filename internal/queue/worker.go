package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"github.com/postpilot/postpilot/internal/models"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.PublishPost(ctx, payload.PostID)
}

// PublishPost fans a post out to all of its non-published platform posts. The
// post becomes published only when every dispatch succeeds; a single failure
// marks the post failed while successful platform posts keep their state, so
// a retry touches only what actually failed.
func (q *Queue) PublishPost(ctx context.Context, postID int64) error {
	post, err := q.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("post no longer exists, dropping task", "post_id", postID)
		return nil
	}
	if post.Status == models.PostStatusPublished {
		slog.Info("post already published, dropping task", "post_id", postID)
		return nil
	}

	platformPosts, err := q.pp.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}
	if len(platformPosts) == 0 {
		return errors.New("no platform posts to publish")
	}

	var wg sync.WaitGroup
	var failures atomic.Int64

	for _, pp := range platformPosts {
		if pp.Status == models.PostStatusPublished {
			continue
		}

		wg.Add(1)
		go func(pp *models.PlatformPost) {
			defer wg.Done()
			if err := q.dispatch(ctx, post, pp); err != nil {
				failures.Add(1)
			}
		}(pp)
	}

	wg.Wait()

	status := models.PostStatusPublished
	if failures.Load() > 0 {
		status = models.PostStatusFailed
	}
	if err := q.pr.UpdateStatus(ctx, status, postID); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, post *models.Post, pp *models.PlatformPost) error {
	account, err := q.sa.GetByID(ctx, pp.AccountID)
	if err != nil {
		slog.Error("error retrieving social account", "account_id", pp.AccountID, "error", err.Error())
		q.markFailed(ctx, pp.ID, err.Error())
		return err
	}
	if account == nil {
		err = fmt.Errorf("social account %d no longer exists", pp.AccountID)
		slog.Info(err.Error())
		q.markFailed(ctx, pp.ID, err.Error())
		return err
	}

	if err := q.acquire(ctx, account.Platform); err != nil {
		q.markFailed(ctx, pp.ID, err.Error())
		return err
	}
	defer q.release(account.Platform)

	rendition, comments := renditionFor(post, account)

	resp, err := q.orch.Publish(ctx, rendition, comments, account)
	if err != nil {
		slog.Info("publish failed", "post_id", post.ID, "platform", account.Platform, "error", err.Error())
		q.markFailed(ctx, pp.ID, err.Error())
		return err
	}

	detail := &models.PublishDetail{
		Platform:       account.Platform,
		PlatformPostID: resp.PlatformPostID,
		URL:            resp.URL,
	}
	if err := q.pp.SetPublished(ctx, pp, detail); err != nil {
		slog.Error("error recording publish detail", "post_id", post.ID, "error", err.Error())
		return err
	}

	// Comment failures are recorded by the orchestrator but do not unwind an
	// already-published post.
	if len(comments) > 0 {
		q.orch.PublishComments(ctx, rendition, comments, account, detail)
	}

	return nil
}

func (q *Queue) acquire(ctx context.Context, platform string) error {
	limiter, ok := q.limiters[platform]
	if ok {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if slots, ok := q.slots[platform]; ok {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *Queue) release(platform string) {
	if slots, ok := q.slots[platform]; ok {
		<-slots
	}
}

func (q *Queue) markFailed(ctx context.Context, platformPostID int64, message string) {
	if err := q.pp.SetFailed(ctx, platformPostID, message); err != nil {
		slog.Error("error marking platform post failed", "platform_post_id", platformPostID, "error", err.Error())
	}
}

// renditionFor applies the per-account override: adapted content when one was
// stored, the shared content otherwise, plus the account's comment thread.
func renditionFor(post *models.Post, account *models.SocialAccount) (*models.Post, []string) {
	override, ok := post.Overrides[strconv.FormatInt(account.ID, 10)]
	if !ok {
		return post, nil
	}

	rendition := *post
	if override.Content != "" {
		rendition.Content = override.Content
	}
	return &rendition, override.Comments
}
