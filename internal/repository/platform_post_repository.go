package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/postpilot/postpilot/internal/models"
)

type PlatformPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pp *models.PlatformPost) (int64, error)
	ReplaceForPost(ctx context.Context, postID int64, accounts []*models.SocialAccount) error
	ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformPost, error)
	GetByPostAndAccount(ctx context.Context, postID, accountID int64) (*models.PlatformPost, error)
	SetPublished(ctx context.Context, pp *models.PlatformPost, detail *models.PublishDetail) error
	SetFailed(ctx context.Context, id int64, errorMessage string) error
	ResetFailed(ctx context.Context, postID int64) error
}

type platformPostRepository struct {
	db *sql.DB
}

func NewPlatformPostRepository(db *sql.DB) PlatformPostRepository {
	return &platformPostRepository{db: db}
}

const platformPostColumns = `id, post_id, account_id, platform, status, publish_detail, error_message, created_at, updated_at`

func (r *platformPostRepository) Create(ctx context.Context, tx *sql.Tx, pp *models.PlatformPost) (int64, error) {
	query := `
		INSERT INTO platform_posts (post_id, account_id, platform, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, pp.PostID, pp.AccountID, pp.Platform, pp.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, pp.PostID, pp.AccountID, pp.Platform, pp.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

// ReplaceForPost recreates the full platform-post set for a post, used when
// its target accounts change. The old rows go away wholesale so stale targets
// never linger.
func (r *platformPostRepository) ReplaceForPost(ctx context.Context, postID int64, accounts []*models.SocialAccount) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM platform_posts WHERE post_id = $1`, postID); err != nil {
		slog.Info(err.Error())
		return err
	}

	for _, acc := range accounts {
		pp := &models.PlatformPost{
			PostID:    postID,
			AccountID: acc.ID,
			Platform:  acc.Platform,
			Status:    models.PostStatusPending,
		}
		if _, err := r.Create(ctx, tx, pp); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *platformPostRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformPost, error) {
	query := `SELECT ` + platformPostColumns + ` FROM platform_posts WHERE post_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var out []*models.PlatformPost
	for rows.Next() {
		pp, err := scanPlatformPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

func (r *platformPostRepository) GetByPostAndAccount(ctx context.Context, postID, accountID int64) (*models.PlatformPost, error) {
	query := `SELECT ` + platformPostColumns + ` FROM platform_posts WHERE post_id = $1 AND account_id = $2`
	row := r.db.QueryRowContext(ctx, query, postID, accountID)

	pp, err := scanPlatformPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return pp, nil
}

func (r *platformPostRepository) SetPublished(ctx context.Context, pp *models.PlatformPost, detail *models.PublishDetail) error {
	query := `
		UPDATE platform_posts
		SET status = $1, publish_detail = $2, error_message = '', updated_at = NOW()
		WHERE id = $3
	`

	encoded, err := encodePublishDetail(pp.AccountID, detail)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, encoded, pp.ID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformPostRepository) SetFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE platform_posts
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, errorMessage, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ResetFailed returns every failed platform post under a post to pending with
// a cleared error. Published rows stay untouched so a retry only re-publishes
// what previously failed.
func (r *platformPostRepository) ResetFailed(ctx context.Context, postID int64) error {
	query := `
		UPDATE platform_posts
		SET status = $1, error_message = '', updated_at = NOW()
		WHERE post_id = $2 AND status = $3
	`
	if _, err := r.db.ExecContext(ctx, query, models.PostStatusPending, postID, models.PostStatusFailed); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanPlatformPost(row rowScanner) (*models.PlatformPost, error) {
	var pp models.PlatformPost
	var detail []byte
	err := row.Scan(
		&pp.ID, &pp.PostID, &pp.AccountID, &pp.Platform, &pp.Status,
		&detail, &pp.ErrorMessage, &pp.CreatedAt, &pp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	pp.Detail, err = decodePublishDetail(detail, pp.AccountID)
	if err != nil {
		return nil, err
	}
	return &pp, nil
}

// publish_detail is stored as a map keyed by account id so the column shape
// survives platforms that hand back more than one artifact over updates.
func encodePublishDetail(accountID int64, detail *models.PublishDetail) ([]byte, error) {
	if detail == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]models.PublishDetail{
		strconv.FormatInt(accountID, 10): *detail,
	})
}

func decodePublishDetail(raw []byte, accountID int64) (*models.PublishDetail, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]models.PublishDetail
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if d, ok := m[strconv.FormatInt(accountID, 10)]; ok {
		return &d, nil
	}
	return nil, nil
}
