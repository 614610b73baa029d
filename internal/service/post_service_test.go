package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/transfer"
)

func TestCreatePostRejectsPastScheduledTime(t *testing.T) {
	svc := NewPostService(nil, &fakePostRepo{}, &fakePlatformPostRepo{}, &fakeAccountRepo{}, nil)

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	_, _, err := svc.CreatePost(context.Background(), 7, &transfer.PostCreation{
		Content:       "hello",
		ScheduledTime: past,
		AccountIDs:    []int64{1},
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "past")
}

func TestCreatePostRejectsInvalidScheduledTime(t *testing.T) {
	svc := NewPostService(nil, &fakePostRepo{}, &fakePlatformPostRepo{}, &fakeAccountRepo{}, nil)

	_, _, err := svc.CreatePost(context.Background(), 7, &transfer.PostCreation{
		Content:       "hello",
		ScheduledTime: "not a time",
		AccountIDs:    []int64{1},
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduled time")
}
