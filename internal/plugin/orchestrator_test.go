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

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, ev Event) {
	s.events = append(s.events, ev)
}

func testPost() *models.Post {
	return &models.Post{ID: 10, UserID: 1, Content: "hello", TargetAccountIDs: []int64{5}}
}

func testAccount(platform string) *models.SocialAccount {
	return &models.SocialAccount{ID: 5, UserID: 1, Platform: platform, AccountID: "acc-5"}
}

func TestPublishHappyPath(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandler{platform: "instagram"}
	require.NoError(t, r.Register(h))

	sink := &recordingSink{}
	o := NewOrchestrator(r, sink)

	resp, err := o.Publish(context.Background(), testPost(), nil, testAccount("instagram"))
	require.NoError(t, err)
	assert.Equal(t, "instagram-1", resp.PlatformPostID)
	assert.Equal(t, 1, h.postCalls)

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventPublished, sink.events[0].Kind)
	assert.Equal(t, int64(10), sink.events[0].PostID)
}

func TestPublishValidationFailureSkipsHandler(t *testing.T) {
	r := NewRegistry()
	bad := &fakeHandler{
		platform:     "tiktok",
		validateErrs: []transfer.ValidationError{{Field: "content", Message: "too spicy"}},
	}
	require.NoError(t, r.Register(bad))

	sink := &recordingSink{}
	o := NewOrchestrator(r, sink)

	_, err := o.Publish(context.Background(), testPost(), nil, testAccount("tiktok"))
	require.Error(t, err)

	var vErr *ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Errors["tiktok"], 1)

	assert.Zero(t, bad.postCalls, "handler may not be invoked after validation failure")

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventValidationFailed, sink.events[0].Kind)
	assert.Equal(t, "tiktok", sink.events[0].Platform)
}

func TestPublishValidationIsScopedToTargetPlatform(t *testing.T) {
	r := NewRegistry()
	bad := &fakeHandler{
		platform:     "tiktok",
		validateErrs: []transfer.ValidationError{{Field: "media", Message: "video required"}},
	}
	ok := &fakeHandler{platform: "instagram"}
	require.NoError(t, r.Register(bad))
	require.NoError(t, r.Register(ok))

	o := NewOrchestrator(r, nil)

	resp, err := o.Publish(context.Background(), testPost(), nil, testAccount("instagram"))
	require.NoError(t, err, "another platform's rules must not block this dispatch")
	assert.Equal(t, "instagram-1", resp.PlatformPostID)
	assert.Equal(t, 1, ok.postCalls)
	assert.Zero(t, bad.postCalls)
}

func TestPublishMissingHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeHandler{platform: "instagram"}))

	sink := &recordingSink{}
	o := NewOrchestrator(r, sink)

	_, err := o.Publish(context.Background(), testPost(), nil, testAccount("threads"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Contains(t, err.Error(), "threads")

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventFailed, sink.events[0].Kind)
	assert.Equal(t, "threads", sink.events[0].Platform)
}

func TestPublishHandlerErrorPropagates(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandler{platform: "instagram", postErr: errors.New("rate limited")}
	require.NoError(t, r.Register(h))

	sink := &recordingSink{}
	o := NewOrchestrator(r, sink)

	_, err := o.Publish(context.Background(), testPost(), nil, testAccount("instagram"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventFailed, sink.events[0].Kind)
	assert.Equal(t, "rate limited", sink.events[0].Err)
}

func TestValidateAllCollectsPerPlatform(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeHandler{
		platform:     "tiktok",
		validateErrs: []transfer.ValidationError{{Field: "media", Message: "video required"}},
	}))
	require.NoError(t, r.Register(&fakeHandler{platform: "instagram"}))

	o := NewOrchestrator(r, nil)
	errs := o.ValidateAll(context.Background(), testPost())

	require.Len(t, errs, 1)
	assert.Equal(t, "video required", errs["tiktok"][0].Message)
}

func TestUpdateDispatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeHandler{platform: "instagram"}))

	sink := &recordingSink{}
	o := NewOrchestrator(r, sink)

	resp, err := o.Update(context.Background(), testPost(), testAccount("instagram"), &models.PublishDetail{PlatformPostID: "ig-1"})
	require.NoError(t, err)
	assert.Equal(t, "instagram-upd", resp.PlatformPostID)
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventUpdated, sink.events[0].Kind)
}

func TestGetStatisticNoEvents(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeHandler{platform: "instagram"}))

	sink := &recordingSink{}
	o := NewOrchestrator(r, sink)

	stat, err := o.GetStatistic(context.Background(), testAccount("instagram"), &models.PublishDetail{PlatformPostID: "ig-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), stat.Likes)
	assert.Empty(t, sink.events)

	_, err = o.GetStatistic(context.Background(), testAccount("threads"), nil)
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Empty(t, sink.events)
}

func TestPublishCommentsContinuesPastFailure(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandler{platform: "instagram", commentErrAt: 2}
	require.NoError(t, r.Register(h))

	o := NewOrchestrator(r, nil)
	results := o.PublishComments(context.Background(), testPost(),
		[]string{"one", "two", "three"}, testAccount("instagram"), &models.PublishDetail{PlatformPostID: "ig-1"})

	require.Len(t, results, 3)
	assert.Equal(t, models.PostStatusPublished, results[0].Status)
	assert.Equal(t, models.PostStatusFailed, results[1].Status)
	assert.Equal(t, "comment rejected", results[1].Error)
	assert.Equal(t, models.PostStatusPublished, results[2].Status)
	assert.Equal(t, 3, h.commentCalls, "a failed comment must not stop the rest")
}
