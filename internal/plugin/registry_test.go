package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
)

type fakeHandler struct {
	platform     string
	limit        int
	validateErrs []transfer.ValidationError
	postErr      error
	postCalls    int
	commentErrAt int // fail AddComment at this 1-based call, 0 = never
	commentCalls int
}

func (f *fakeHandler) Platform() string       { return f.platform }
func (f *fakeHandler) MaxConcurrentJobs() int { return 2 }

func (f *fakeHandler) MaxContentLength() int {
	if f.limit > 0 {
		return f.limit
	}
	return 2200
}

func (f *fakeHandler) Validate(context.Context, *models.Post) []transfer.ValidationError {
	return f.validateErrs
}

func (f *fakeHandler) Post(context.Context, *models.Post, []string, *models.SocialAccount) (*transfer.PublishResponse, error) {
	f.postCalls++
	if f.postErr != nil {
		return nil, f.postErr
	}
	return &transfer.PublishResponse{PlatformPostID: f.platform + "-1"}, nil
}

func (f *fakeHandler) Update(context.Context, *models.Post, *models.SocialAccount, *models.PublishDetail) (*transfer.PublishResponse, error) {
	return &transfer.PublishResponse{PlatformPostID: f.platform + "-upd"}, nil
}

func (f *fakeHandler) AddComment(context.Context, string, *models.SocialAccount, *models.PublishDetail) (*transfer.PublishResponse, error) {
	f.commentCalls++
	if f.commentErrAt != 0 && f.commentCalls == f.commentErrAt {
		return nil, errors.New("comment rejected")
	}
	return &transfer.PublishResponse{PlatformPostID: f.platform + "-c"}, nil
}

func (f *fakeHandler) GetStatistic(context.Context, *models.SocialAccount, *models.PublishDetail) (*transfer.PostStatistic, error) {
	return &transfer.PostStatistic{Likes: 7}, nil
}

type authFakeHandler struct{ fakeHandler }

func (a *authFakeHandler) GetAuthURL(state string) string { return "https://auth.example/" + state }
func (a *authFakeHandler) HandleCallback(context.Context, string, int64) error {
	return nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandler{platform: "instagram"}
	require.NoError(t, r.Register(h))

	got, err := r.Handler("instagram")
	require.NoError(t, err)
	assert.Same(t, h, got)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeHandler{platform: "tiktok"}))

	err := r.Register(&fakeHandler{platform: "tiktok"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateHandler)
}

func TestRegistryMissingHandler(t *testing.T) {
	r := NewRegistry()
	_, err := r.Handler("myspace")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Contains(t, err.Error(), "myspace")
}

func TestRegistryEmptyPlatform(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&fakeHandler{platform: ""}))
}

func TestRegistryCapabilities(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&authFakeHandler{fakeHandler{platform: "youtube"}}))
	require.NoError(t, r.Register(&fakeHandler{platform: "instagram"}))

	ac, ok := r.AuthCapable("youtube")
	require.True(t, ok)
	assert.Equal(t, "https://auth.example/state1", ac.GetAuthURL("state1"))

	_, ok = r.AuthCapable("instagram")
	assert.False(t, ok, "handler without the capability must not surface it")

	_, ok = r.TokenRefresher("youtube")
	assert.False(t, ok)
}

func TestRegistryPlatformsStableOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeHandler{platform: "youtube"}))
	require.NoError(t, r.Register(&fakeHandler{platform: "instagram"}))
	require.NoError(t, r.Register(&fakeHandler{platform: "tiktok"}))

	assert.Equal(t, []string{"instagram", "tiktok", "youtube"}, r.Platforms())
}
