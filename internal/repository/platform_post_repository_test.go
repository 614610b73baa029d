package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/models"
)

func TestPlatformPostResetFailedOnlyTouchesFailedRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE platform_posts`).
		WithArgs(models.PostStatusPending, int64(42), models.PostStatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewPlatformPostRepository(db)
	require.NoError(t, r.ResetFailed(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlatformPostSetPublishedEncodesDetailByAccount(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	detailJSON := `{"7":{"platform":"instagram","platform_post_id":"ig-123","url":"https://instagram.com/p/ig-123"}}`
	mock.ExpectExec(`UPDATE platform_posts`).
		WithArgs(models.PostStatusPublished, []byte(detailJSON), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewPlatformPostRepository(db)
	err = r.SetPublished(context.Background(), &models.PlatformPost{ID: 3, AccountID: 7}, &models.PublishDetail{
		Platform:       "instagram",
		PlatformPostID: "ig-123",
		URL:            "https://instagram.com/p/ig-123",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlatformPostGetByPostAndAccountDecodesDetail(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "post_id", "account_id", "platform", "status",
		"publish_detail", "error_message", "created_at", "updated_at",
	}).AddRow(
		int64(3), int64(42), int64(7), "instagram", models.PostStatusPublished,
		[]byte(`{"7":{"platform":"instagram","platform_post_id":"ig-123"}}`), "", now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM platform_posts`).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(rows)

	r := NewPlatformPostRepository(db)
	pp, err := r.GetByPostAndAccount(context.Background(), 42, 7)
	require.NoError(t, err)
	require.NotNil(t, pp)
	require.NotNil(t, pp.Detail)
	assert.Equal(t, "ig-123", pp.Detail.PlatformPostID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlatformPostGetByPostAndAccountMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM platform_posts`).
		WithArgs(int64(42), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r := NewPlatformPostRepository(db)
	pp, err := r.GetByPostAndAccount(context.Background(), 42, 9)
	require.NoError(t, err)
	assert.Nil(t, pp)
}
