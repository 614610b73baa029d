package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	RetryPost(ctx context.Context, userID, postID int64) (time.Duration, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db *sql.DB
	pr repository.PostRepository
	pp repository.PlatformPostRepository
	sa repository.SocialAccountRepository
	ms MediaService
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	pp repository.PlatformPostRepository,
	sa repository.SocialAccountRepository,
	ms MediaService) PostService {
	return &postService{
		db: db,
		pr: pr,
		pp: pp,
		sa: sa,
		ms: ms,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, 0, err
	}
	if pc.Content == "" {
		err := errors.New("content cannot be empty")
		slog.Info(err.Error())
		return 0, 0, err
	}
	if len(pc.AccountIDs) == 0 {
		err := errors.New("no social accounts selected")
		slog.Info(err.Error())
		return 0, 0, err
	}

	var scheduledAt *time.Time
	if pc.ScheduledTime != "" {
		t, err := parseScheduledTime(pc.ScheduledTime)
		if err != nil {
			err = fmt.Errorf("invalid scheduled time format: %w", err)
			slog.Info(err.Error())
			return 0, 0, err
		}
		if t.Before(time.Now()) {
			err = errors.New("scheduled time cannot be in the past")
			slog.Info(err.Error())
			return 0, 0, err
		}
		scheduledAt = &t
	}

	accounts, err := s.sa.GetByIDs(ctx, pc.AccountIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, acc := range accounts {
		if acc.UserID != userID {
			return 0, 0, fmt.Errorf("social account %d does not exist", acc.ID)
		}
	}
	if len(accounts) != len(pc.AccountIDs) {
		return 0, 0, errors.New("one or more social accounts do not exist")
	}

	mediaURLs, err := s.processFiles(ctx, files)
	if err != nil {
		return 0, 0, err
	}

	postFormat := pc.PostFormat
	if postFormat == "" {
		postFormat = models.PostFormatPost
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	post := models.Post{
		UserID:           userID,
		Content:          pc.Content,
		MediaURLs:        mediaURLs,
		TargetAccountIDs: pc.AccountIDs,
		ScheduledAt:      scheduledAt,
		Status:           models.PostStatusPending,
		PostFormat:       postFormat,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, acc := range accounts {
		pp := models.PlatformPost{
			PostID:    postID,
			AccountID: acc.ID,
			Platform:  acc.Platform,
			Status:    models.PostStatusPending,
		}
		if _, err := s.pp.Create(ctx, tx, &pp); err != nil {
			return 0, 0, fmt.Errorf("error creating platform post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return postID, delayUntil(scheduledAt), nil
}

func (s *postService) processFiles(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	var urls []string
	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, fmt.Errorf("unsupported file type: %w", err)
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		name, err := gonanoid.New()
		if err != nil {
			return nil, err
		}

		fileURL, err := s.ms.Upload(ctx, name, fileBytes, fileType.MIME.Value)
		if err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}
		urls = append(urls, fileURL)
	}
	return urls, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info")
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

// RetryPost returns a failed post to pending, together with every failed
// platform post under it. Platform posts that already published stay exactly
// as they are, so the next publish run only touches what failed.
func (s *postService) RetryPost(ctx context.Context, userID, postID int64) (time.Duration, error) {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return 0, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return 0, err
	}
	if post == nil {
		return 0, errors.New("post doesn't exist")
	}
	if post.Status != models.PostStatusFailed {
		return 0, fmt.Errorf("post is %s, only failed posts can be retried", post.Status)
	}

	if err := s.pp.ResetFailed(ctx, postID); err != nil {
		return 0, fmt.Errorf("error resetting platform posts: %w", err)
	}
	if err := s.pr.ResetForRetry(ctx, postID); err != nil {
		return 0, fmt.Errorf("error resetting post: %w", err)
	}

	return delayUntil(post.ScheduledAt), nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return err
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post")
	}
	return nil
}

func (s *postService) checkOwnership(ctx context.Context, postID, userID int64) error {
	if userID == 0 {
		err := errors.New("user is not valid")
		slog.Info(err.Error())
		return err
	}
	if postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return nil
}

func delayUntil(scheduledAt *time.Time) time.Duration {
	if scheduledAt == nil {
		return 0
	}
	delay := time.Until(*scheduledAt)
	if delay < 0 {
		delay = 0
	}
	return delay
}
