package queue

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/transfer"
)

type memPostRepo struct {
	posts    map[int64]*models.Post
	statuses map[int64]string
}

func (m *memPostRepo) Create(context.Context, *sql.Tx, *models.Post) (int64, error) { return 0, nil }
func (m *memPostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	return m.posts[id], nil
}
func (m *memPostRepo) GetByUserID(context.Context, int64) ([]*models.Post, error) { return nil, nil }
func (m *memPostRepo) CheckByUserID(context.Context, int64, int64) (bool, error)  { return true, nil }
func (m *memPostRepo) UpdateStatus(_ context.Context, status string, postID int64) error {
	if m.statuses == nil {
		m.statuses = make(map[int64]string)
	}
	m.statuses[postID] = status
	return nil
}
func (m *memPostRepo) ClaimDuePosts(context.Context, string, int) ([]*models.Post, error) {
	return nil, nil
}
func (m *memPostRepo) ResetForRetry(context.Context, int64) error { return nil }
func (m *memPostRepo) Remove(context.Context, int64) error        { return nil }

type memPlatformPostRepo struct {
	mu        sync.Mutex
	byPost    map[int64][]*models.PlatformPost
	published map[int64]*models.PublishDetail
	failed    map[int64]string
}

func (m *memPlatformPostRepo) Create(context.Context, *sql.Tx, *models.PlatformPost) (int64, error) {
	return 0, nil
}
func (m *memPlatformPostRepo) ReplaceForPost(context.Context, int64, []*models.SocialAccount) error {
	return nil
}
func (m *memPlatformPostRepo) ListByPostID(_ context.Context, postID int64) ([]*models.PlatformPost, error) {
	return m.byPost[postID], nil
}
func (m *memPlatformPostRepo) GetByPostAndAccount(context.Context, int64, int64) (*models.PlatformPost, error) {
	return nil, nil
}
func (m *memPlatformPostRepo) SetPublished(_ context.Context, pp *models.PlatformPost, detail *models.PublishDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.published == nil {
		m.published = make(map[int64]*models.PublishDetail)
	}
	m.published[pp.ID] = detail
	return nil
}
func (m *memPlatformPostRepo) SetFailed(_ context.Context, id int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = make(map[int64]string)
	}
	m.failed[id] = message
	return nil
}
func (m *memPlatformPostRepo) ResetFailed(context.Context, int64) error { return nil }

type memAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (m *memAccountRepo) Create(context.Context, *sql.Tx, *models.SocialAccount) (int64, error) {
	return 0, nil
}
func (m *memAccountRepo) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	return m.accounts[id], nil
}
func (m *memAccountRepo) GetByIDs(context.Context, []int64) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (m *memAccountRepo) ListByUserID(context.Context, int64) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (m *memAccountRepo) ListExpiringBetween(context.Context, time.Time, time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (m *memAccountRepo) CheckByUserID(context.Context, int64, int64) (bool, error) {
	return true, nil
}
func (m *memAccountRepo) SetToken(context.Context, int64, *models.SocialAccount) error { return nil }
func (m *memAccountRepo) Remove(context.Context, int64) error                          { return nil }

type queueHandler struct {
	platform     string
	postErr      error
	lastContent  string
	lastComments []string
}

func (h *queueHandler) Platform() string       { return h.platform }
func (h *queueHandler) MaxContentLength() int  { return 2200 }
func (h *queueHandler) MaxConcurrentJobs() int { return 2 }
func (h *queueHandler) Validate(context.Context, *models.Post) []transfer.ValidationError {
	return nil
}
func (h *queueHandler) Post(_ context.Context, post *models.Post, comments []string, _ *models.SocialAccount) (*transfer.PublishResponse, error) {
	if h.postErr != nil {
		return nil, h.postErr
	}
	h.lastContent = post.Content
	h.lastComments = comments
	return &transfer.PublishResponse{PlatformPostID: h.platform + "-1", URL: "https://" + h.platform + "/1"}, nil
}
func (h *queueHandler) Update(context.Context, *models.Post, *models.SocialAccount, *models.PublishDetail) (*transfer.PublishResponse, error) {
	return &transfer.PublishResponse{}, nil
}
func (h *queueHandler) AddComment(_ context.Context, comment string, _ *models.SocialAccount, _ *models.PublishDetail) (*transfer.PublishResponse, error) {
	return &transfer.PublishResponse{PlatformPostID: "c-" + comment}, nil
}
func (h *queueHandler) GetStatistic(context.Context, *models.SocialAccount, *models.PublishDetail) (*transfer.PostStatistic, error) {
	return &transfer.PostStatistic{}, nil
}

func newWorkerFixture(t *testing.T, handlers ...plugin.Handler) (*Queue, *memPostRepo, *memPlatformPostRepo) {
	t.Helper()

	reg := plugin.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	orch := plugin.NewOrchestrator(reg, nil)

	posts := &memPostRepo{posts: map[int64]*models.Post{
		10: {
			ID:        10,
			UserID:    7,
			Content:   "base content",
			MediaURLs: []string{"https://cdn.example.com/a.jpg"},
			Status:    models.PostStatusPending,
			Overrides: map[string]models.PlatformContent{
				"2": {Content: "adapted for tiktok", Comments: []string{"first"}},
			},
		},
	}}
	platformPosts := &memPlatformPostRepo{byPost: map[int64][]*models.PlatformPost{
		10: {
			{ID: 100, PostID: 10, AccountID: 1, Platform: "instagram", Status: models.PostStatusPending},
			{ID: 101, PostID: 10, AccountID: 2, Platform: "tiktok", Status: models.PostStatusPending},
		},
	}}
	accounts := &memAccountRepo{accounts: map[int64]*models.SocialAccount{
		1: {ID: 1, UserID: 7, Platform: "instagram"},
		2: {ID: 2, UserID: 7, Platform: "tiktok"},
	}}

	return NewQueue(posts, platformPosts, accounts, reg, orch), posts, platformPosts
}

func TestPublishPostAllPlatformsSucceed(t *testing.T) {
	ig := &queueHandler{platform: "instagram"}
	tt := &queueHandler{platform: "tiktok"}
	q, posts, platformPosts := newWorkerFixture(t, ig, tt)

	require.NoError(t, q.PublishPost(context.Background(), 10))

	assert.Equal(t, models.PostStatusPublished, posts.statuses[10])
	require.Len(t, platformPosts.published, 2)
	assert.Equal(t, "instagram-1", platformPosts.published[100].PlatformPostID)
	assert.Equal(t, "tiktok-1", platformPosts.published[101].PlatformPostID)
	assert.Empty(t, platformPosts.failed)

	// the override reaches only its own account
	assert.Equal(t, "base content", ig.lastContent)
	assert.Equal(t, "adapted for tiktok", tt.lastContent)
	assert.Equal(t, []string{"first"}, tt.lastComments)
}

func TestPublishPostOneFailureMarksPostFailed(t *testing.T) {
	ig := &queueHandler{platform: "instagram"}
	tt := &queueHandler{platform: "tiktok", postErr: errors.New("rate limited")}
	q, posts, platformPosts := newWorkerFixture(t, ig, tt)

	require.NoError(t, q.PublishPost(context.Background(), 10))

	assert.Equal(t, models.PostStatusFailed, posts.statuses[10])
	require.Len(t, platformPosts.published, 1, "successful platform keeps its publish detail")
	assert.Contains(t, platformPosts.failed[101], "rate limited")
}

func TestPublishPostSkipsAlreadyPublishedPlatforms(t *testing.T) {
	ig := &queueHandler{platform: "instagram"}
	tt := &queueHandler{platform: "tiktok"}
	q, posts, platformPosts := newWorkerFixture(t, ig, tt)
	platformPosts.byPost[10][0].Status = models.PostStatusPublished

	require.NoError(t, q.PublishPost(context.Background(), 10))

	assert.Equal(t, models.PostStatusPublished, posts.statuses[10])
	require.Len(t, platformPosts.published, 1, "only the pending platform is dispatched")
	assert.Contains(t, platformPosts.published, int64(101))
}

func TestPublishPostDropsMissingPost(t *testing.T) {
	q, posts, _ := newWorkerFixture(t, &queueHandler{platform: "instagram"})

	require.NoError(t, q.PublishPost(context.Background(), 999))
	assert.Empty(t, posts.statuses)
}
