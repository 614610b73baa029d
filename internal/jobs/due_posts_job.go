package job

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/repository"
)

const claimBatchSize = 100

// DuePostsJob sweeps for pending posts whose scheduled time has passed and
// hands them to the publish queue. Claiming stamps a job id on each row, so
// overlapping sweeps (or a second instance) never dispatch the same post
// twice.
type DuePostsJob struct {
	pr     repository.PostRepository
	client *asynq.Client
}

func NewDuePostsJob(pr repository.PostRepository, client *asynq.Client) *DuePostsJob {
	return &DuePostsJob{
		pr:     pr,
		client: client,
	}
}

func (c *DuePostsJob) Sweep() {
	ctx := context.Background()

	jobID, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return
	}

	posts, err := c.pr.ClaimDuePosts(ctx, jobID, claimBatchSize)
	if err != nil {
		slog.Error("error claiming due posts", "error", err.Error())
		return
	}
	if len(posts) == 0 {
		return
	}

	slog.Info("claimed due posts", "job_id", jobID, "count", len(posts))

	for _, post := range posts {
		err := queue.EnqueuePost(c.client, queue.PublishPostPayload{PostID: post.ID}, 0)
		if err != nil {
			slog.Error("error enqueueing due post", "post_id", post.ID, "error", err.Error())
		}
	}
}
