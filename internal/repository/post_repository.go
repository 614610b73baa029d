package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postpilot/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	ClaimDuePosts(ctx context.Context, jobID string, limit int) ([]*models.Post, error)
	ResetForRetry(ctx context.Context, postID int64) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, content, media_urls, target_account_ids, scheduled_at, status, post_format, batch_id, publish_job_id, overrides, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content, media_urls, target_account_ids, scheduled_at, status, post_format, batch_id, overrides)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	overrides, err := encodeOverrides(post.Overrides)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	args := []any{
		post.UserID, post.Content,
		pq.Array(post.MediaURLs), pq.Array(post.TargetAccountIDs),
		post.ScheduledAt, post.Status, post.PostFormat, post.BatchID, overrides,
	}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ClaimDuePosts atomically stamps due pending posts with a publish job id and
// returns them. The stamp is what keeps two instances from dispatching the
// same post concurrently.
func (r *postRepository) ClaimDuePosts(ctx context.Context, jobID string, limit int) ([]*models.Post, error) {
	query := `
		UPDATE posts
		SET publish_job_id = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM posts
			WHERE status = $2
			  AND scheduled_at IS NOT NULL
			  AND scheduled_at <= NOW()
			  AND publish_job_id IS NULL
			ORDER BY scheduled_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + postColumns

	rows, err := r.db.QueryContext(ctx, query, jobID, models.PostStatusPending, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ResetForRetry moves a failed post back to pending and releases its claim so
// the due-post sweep picks it up again. Posts that were published immediately
// have no scheduled time; they get one so the sweep can see them.
func (r *postRepository) ResetForRetry(ctx context.Context, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1, publish_job_id = NULL,
		    scheduled_at = COALESCE(scheduled_at, NOW()), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPending, postID, models.PostStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var overrides []byte
	var jobID sql.NullString
	err := row.Scan(
		&post.ID, &post.UserID, &post.Content,
		pq.Array(&post.MediaURLs), pq.Array(&post.TargetAccountIDs),
		&post.ScheduledAt, &post.Status, &post.PostFormat, &post.BatchID,
		&jobID, &overrides, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	post.PublishJobID = jobID.String
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &post.Overrides); err != nil {
			return nil, err
		}
	}
	return &post, nil
}

func encodeOverrides(overrides map[string]models.PlatformContent) ([]byte, error) {
	if len(overrides) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(overrides)
}
