package queue

import (
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/repository"
	"golang.org/x/time/rate"
)

// Queue owns the deferred publish path: a task fires at the scheduled time,
// the post fans out to its platform posts, and each one is dispatched through
// the orchestrator under the platform's pacing limits.
type Queue struct {
	pr   repository.PostRepository
	pp   repository.PlatformPostRepository
	sa   repository.SocialAccountRepository
	orch *plugin.Orchestrator

	// one limiter per platform, sized from the handler's concurrency hint
	limiters map[string]*rate.Limiter
	slots    map[string]chan struct{}
}

func NewQueue(
	pr repository.PostRepository,
	pp repository.PlatformPostRepository,
	sa repository.SocialAccountRepository,
	reg *plugin.Registry,
	orch *plugin.Orchestrator) *Queue {

	limiters := make(map[string]*rate.Limiter)
	slots := make(map[string]chan struct{})
	reg.Each(func(h plugin.Handler) {
		jobs := h.MaxConcurrentJobs()
		if jobs < 1 {
			jobs = 1
		}
		limiters[h.Platform()] = rate.NewLimiter(rate.Limit(jobs), jobs)
		slots[h.Platform()] = make(chan struct{}, jobs)
	})

	return &Queue{
		pr:       pr,
		pp:       pp,
		sa:       sa,
		orch:     orch,
		limiters: limiters,
		slots:    slots,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
