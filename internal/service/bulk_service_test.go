package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/scheduling"
	"github.com/postpilot/postpilot/internal/transfer"
)

type fakePostRepo struct {
	created   []*models.Post
	failOnRow int // 1-based; 0 = never fail
	nextID    int64
	calls     int
}

func (f *fakePostRepo) Create(_ context.Context, _ *sql.Tx, post *models.Post) (int64, error) {
	f.calls++
	if f.failOnRow != 0 && f.calls == f.failOnRow {
		return 0, errors.New("insert failed")
	}
	f.nextID++
	f.created = append(f.created, post)
	return f.nextID, nil
}

func (f *fakePostRepo) GetByID(context.Context, int64) (*models.Post, error)       { return nil, nil }
func (f *fakePostRepo) GetByUserID(context.Context, int64) ([]*models.Post, error) { return nil, nil }
func (f *fakePostRepo) CheckByUserID(context.Context, int64, int64) (bool, error)  { return true, nil }
func (f *fakePostRepo) UpdateStatus(context.Context, string, int64) error          { return nil }
func (f *fakePostRepo) ClaimDuePosts(context.Context, string, int) ([]*models.Post, error) {
	return nil, nil
}
func (f *fakePostRepo) ResetForRetry(context.Context, int64) error { return nil }
func (f *fakePostRepo) Remove(context.Context, int64) error        { return nil }

type fakePlatformPostRepo struct {
	created []*models.PlatformPost
}

func (f *fakePlatformPostRepo) Create(_ context.Context, _ *sql.Tx, pp *models.PlatformPost) (int64, error) {
	f.created = append(f.created, pp)
	return int64(len(f.created)), nil
}

func (f *fakePlatformPostRepo) ReplaceForPost(context.Context, int64, []*models.SocialAccount) error {
	return nil
}
func (f *fakePlatformPostRepo) ListByPostID(context.Context, int64) ([]*models.PlatformPost, error) {
	return nil, nil
}
func (f *fakePlatformPostRepo) GetByPostAndAccount(context.Context, int64, int64) (*models.PlatformPost, error) {
	return nil, nil
}
func (f *fakePlatformPostRepo) SetPublished(context.Context, *models.PlatformPost, *models.PublishDetail) error {
	return nil
}
func (f *fakePlatformPostRepo) SetFailed(context.Context, int64, string) error { return nil }
func (f *fakePlatformPostRepo) ResetFailed(context.Context, int64) error       { return nil }

type fakeAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (f *fakeAccountRepo) Create(context.Context, *sql.Tx, *models.SocialAccount) (int64, error) {
	return 0, nil
}
func (f *fakeAccountRepo) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	return f.accounts[id], nil
}
func (f *fakeAccountRepo) GetByIDs(_ context.Context, ids []int64) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, id := range ids {
		if acc, ok := f.accounts[id]; ok {
			out = append(out, acc)
		}
	}
	return out, nil
}
func (f *fakeAccountRepo) ListByUserID(context.Context, int64) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (f *fakeAccountRepo) ListExpiringBetween(context.Context, time.Time, time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}
func (f *fakeAccountRepo) CheckByUserID(context.Context, int64, int64) (bool, error) {
	return true, nil
}
func (f *fakeAccountRepo) SetToken(context.Context, int64, *models.SocialAccount) error { return nil }
func (f *fakeAccountRepo) Remove(context.Context, int64) error                          { return nil }

type fakeNotifier struct {
	kinds []string
}

func (f *fakeNotifier) Notify(_ context.Context, _ int64, kind, _, _ string, _ map[string]string) {
	f.kinds = append(f.kinds, kind)
}
func (f *fakeNotifier) List(context.Context, int64) ([]*models.Notification, error) {
	return nil, nil
}
func (f *fakeNotifier) MarkRead(context.Context, int64, int64) error { return nil }

type stubHandler struct {
	platform string
	limit    int
}

func (h *stubHandler) Platform() string       { return h.platform }
func (h *stubHandler) MaxContentLength() int  { return h.limit }
func (h *stubHandler) MaxConcurrentJobs() int { return 1 }
func (h *stubHandler) Validate(context.Context, *models.Post) []transfer.ValidationError {
	return nil
}
func (h *stubHandler) Post(context.Context, *models.Post, []string, *models.SocialAccount) (*transfer.PublishResponse, error) {
	return &transfer.PublishResponse{}, nil
}
func (h *stubHandler) Update(context.Context, *models.Post, *models.SocialAccount, *models.PublishDetail) (*transfer.PublishResponse, error) {
	return &transfer.PublishResponse{}, nil
}
func (h *stubHandler) AddComment(context.Context, string, *models.SocialAccount, *models.PublishDetail) (*transfer.PublishResponse, error) {
	return &transfer.PublishResponse{}, nil
}
func (h *stubHandler) GetStatistic(context.Context, *models.SocialAccount, *models.PublishDetail) (*transfer.PostStatistic, error) {
	return &transfer.PostStatistic{}, nil
}

type bulkFixture struct {
	svc      BulkService
	posts    *fakePostRepo
	platform *fakePlatformPostRepo
	notifier *fakeNotifier
	mock     sqlmock.Sqlmock
}

func newBulkFixture(t *testing.T, limit int, failOnRow int) *bulkFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 20; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&stubHandler{platform: "instagram", limit: limit}))
	require.NoError(t, reg.Register(&stubHandler{platform: "tiktok", limit: limit}))

	posts := &fakePostRepo{failOnRow: failOnRow}
	platformPosts := &fakePlatformPostRepo{}
	accounts := &fakeAccountRepo{accounts: map[int64]*models.SocialAccount{
		1: {ID: 1, UserID: 7, Platform: "instagram"},
		2: {ID: 2, UserID: 7, Platform: "tiktok"},
	}}
	notifier := &fakeNotifier{}

	svc := NewBulkService(db, posts, platformPosts, accounts, notifier, reg,
		scheduling.NewEngineWithSource(rand.NewSource(7)),
		config.Bulk{MaxBatchSize: 500, MaxContentLength: 10000, BusinessHoursStart: 9, BusinessHoursEnd: 17})

	return &bulkFixture{svc: svc, posts: posts, platform: platformPosts, notifier: notifier, mock: mock}
}

func TestImportPostsInvalidRowAbortsWholeBatch(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	result, err := f.svc.ImportPosts(context.Background(), 7, &transfer.BulkImportRequest{
		Rows: []transfer.ImportRow{
			{Content: "first post"},
			{Content: "second post"},
			{Content: ""},
		},
		AccountIDs: []int64{1, 2},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "content", result.Errors[0].Field)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Zero(t, result.Created)
	assert.Empty(t, f.posts.created, "nothing may be persisted when any row is invalid")
	require.Len(t, f.notifier.kinds, 1)
	assert.Equal(t, models.NotificationError, f.notifier.kinds[0])
}

func TestImportPostsCreatesPlatformPostsPerAccount(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	result, err := f.svc.ImportPosts(context.Background(), 7, &transfer.BulkImportRequest{
		Rows: []transfer.ImportRow{
			{Content: "hello", Comments: "one; two ;;"},
			{Content: "world"},
		},
		AccountIDs: []int64{1, 2},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Created)
	assert.Len(t, result.PostIDs, 2)
	assert.Len(t, f.platform.created, 4, "one platform post per (post, account)")

	first := f.posts.created[0]
	require.Contains(t, first.Overrides, "1")
	assert.Equal(t, []string{"one", "two"}, first.Overrides["1"].Comments)

	require.Len(t, f.notifier.kinds, 1)
	assert.Equal(t, models.NotificationSuccess, f.notifier.kinds[0])
}

func TestImportPostsBadImageURL(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	result, err := f.svc.ImportPosts(context.Background(), 7, &transfer.BulkImportRequest{
		Rows:       []transfer.ImportRow{{Content: "post", ImageURL: "not a url"}},
		AccountIDs: []int64{1},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "image_url", result.Errors[0].Field)
	assert.Equal(t, 1, result.Errors[0].Row)
}

func TestImportPostsPartialFailureKeepsSiblings(t *testing.T) {
	f := newBulkFixture(t, 2200, 2)

	result, err := f.svc.ImportPosts(context.Background(), 7, &transfer.BulkImportRequest{
		Rows: []transfer.ImportRow{
			{Content: "one"}, {Content: "two"}, {Content: "three"},
		},
		AccountIDs: []int64{1},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, result.PostIDs, result.ImmediatePostIDs,
		"created rows stay dispatchable when a sibling fails")
	require.Len(t, f.notifier.kinds, 1)
	assert.Equal(t, models.NotificationWarning, f.notifier.kinds[0])
}

func TestImportPostsRejectsOverfullDateRange(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	_, err := f.svc.ImportPosts(context.Background(), 7, &transfer.BulkImportRequest{
		Rows: []transfer.ImportRow{
			{Content: "one"}, {Content: "two"}, {Content: "three"},
			{Content: "four"}, {Content: "five"},
		},
		AccountIDs:      []int64{1},
		DistributeDates: true,
		StartDate:       "2030-06-03",
		EndDate:         "2030-06-03",
		PostsPerDay:     2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range")
	assert.Empty(t, f.posts.created, "no row may be persisted without a slot")
}

func TestGenerateFromTemplateRejectsWeekendOnlyRange(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	_, err := f.svc.GenerateFromTemplate(context.Background(), 7, &transfer.BulkGenerateRequest{
		Template:     "hi",
		Rows:         []map[string]string{{}},
		AccountIDs:   []int64{1},
		StartDate:    "2030-06-01",
		EndDate:      "2030-06-02",
		SkipWeekends: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range")
	assert.Empty(t, f.posts.created)
}

func TestGenerateFromTemplate(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	result, err := f.svc.GenerateFromTemplate(context.Background(), 7, &transfer.BulkGenerateRequest{
		Template:   "Post on {{day}}",
		Rows:       []map[string]string{{}, {}, {}},
		AccountIDs: []int64{1},
		StartDate:  "2030-06-03",
		EndDate:    "2030-06-05",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Created)
	require.Len(t, f.posts.created, 3)

	weekdays := map[string]bool{
		"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
		"Friday": true, "Saturday": true, "Sunday": true,
	}
	for _, post := range f.posts.created {
		assert.NotContains(t, post.Content, "{{", "all variables must resolve")
		day := strings.TrimPrefix(post.Content, "Post on ")
		assert.True(t, weekdays[day], "expected a weekday name, got %q", day)
		require.NotNil(t, post.ScheduledAt)
		assert.Equal(t, models.PostStatusPending, post.Status)
	}
}

func TestGenerateFromTemplateTrimsPerPlatform(t *testing.T) {
	f := newBulkFixture(t, 40, 0)

	long := strings.Repeat("word ", 20) // 100 chars, over the 40 limit
	result, err := f.svc.GenerateFromTemplate(context.Background(), 7, &transfer.BulkGenerateRequest{
		Template:     "{{body}}",
		FirstComment: "made with {{tool}}",
		Rows:         []map[string]string{{"body": long, "tool": "postpilot"}},
		AccountIDs:   []int64{1},
		StartDate:    "2030-06-03",
		EndDate:      "2030-06-03",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	post := f.posts.created[0]
	override, ok := post.Overrides["1"]
	require.True(t, ok)
	assert.LessOrEqual(t, len(override.Content), 40)
	require.Len(t, override.Comments, 2, "first comment plus overflow")
	assert.Equal(t, "made with postpilot", override.Comments[0])
	assert.NotEmpty(t, override.Comments[1])
}

func TestGenerateFromTemplateRejectsBadSyntax(t *testing.T) {
	f := newBulkFixture(t, 2200, 0)

	_, err := f.svc.GenerateFromTemplate(context.Background(), 7, &transfer.BulkGenerateRequest{
		Template:   "broken {{var",
		Rows:       []map[string]string{{}},
		AccountIDs: []int64{1},
		StartDate:  "2030-06-03",
		EndDate:    "2030-06-03",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}
