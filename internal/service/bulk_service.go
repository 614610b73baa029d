package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/scheduling"
	"github.com/postpilot/postpilot/internal/transfer"
)

const dateLayout = "2006-01-02"

// scheduledTimeLayouts are accepted for the import rows' scheduled_time
// field. RFC 3339 first, then the short form the frontend sends.
var scheduledTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04"}

type BulkService interface {
	ImportPosts(ctx context.Context, userID int64, req *transfer.BulkImportRequest) (*transfer.BulkScheduleResult, error)
	GenerateFromTemplate(ctx context.Context, userID int64, req *transfer.BulkGenerateRequest) (*transfer.BulkScheduleResult, error)
}

type bulkService struct {
	db  *sql.DB
	pr  repository.PostRepository
	pp  repository.PlatformPostRepository
	sa  repository.SocialAccountRepository
	ns  NotificationService
	reg *plugin.Registry
	eng *scheduling.Engine
	cfg config.Bulk
}

func NewBulkService(
	db *sql.DB,
	pr repository.PostRepository,
	pp repository.PlatformPostRepository,
	sa repository.SocialAccountRepository,
	ns NotificationService,
	reg *plugin.Registry,
	eng *scheduling.Engine,
	cfg config.Bulk) BulkService {
	return &bulkService{
		db:  db,
		pr:  pr,
		pp:  pp,
		sa:  sa,
		ns:  ns,
		reg: reg,
		eng: eng,
		cfg: cfg,
	}
}

// ImportPosts turns pre-built rows into pending posts. The whole batch is
// validated first; any invalid row aborts before a single row is persisted.
func (s *bulkService) ImportPosts(ctx context.Context, userID int64, req *transfer.BulkImportRequest) (*transfer.BulkScheduleResult, error) {
	if err := s.checkBatchSize(len(req.Rows)); err != nil {
		return nil, err
	}

	accounts, err := s.resolveAccounts(ctx, userID, req.AccountIDs)
	if err != nil {
		return nil, err
	}

	posts, rowErrs := s.parseImportRows(userID, req, accounts)

	if req.DistributeDates {
		if err := s.distributeImportDates(posts, req); err != nil {
			return nil, err
		}
	}

	rowErrs = append(rowErrs, scheduling.ValidateBatch(candidates(posts), time.Now(), s.cfg.MaxContentLength)...)
	if len(rowErrs) > 0 {
		s.notifySummary(ctx, userID, &transfer.BulkScheduleResult{Errors: rowErrs}, true)
		return &transfer.BulkScheduleResult{Success: false, Errors: rowErrs}, nil
	}

	result := s.createBatch(ctx, posts, accounts)
	s.notifySummary(ctx, userID, result, false)
	return result, nil
}

// GenerateFromTemplate renders a template against per-row variable maps,
// distributes dates over the requested range, adapts content per target
// platform, then persists the batch exactly as the import path does.
func (s *bulkService) GenerateFromTemplate(ctx context.Context, userID int64, req *transfer.BulkGenerateRequest) (*transfer.BulkScheduleResult, error) {
	if req.Template == "" {
		return nil, errors.New("template is required")
	}
	if err := scheduling.CheckSyntax(req.Template); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if err := s.checkBatchSize(len(req.Rows)); err != nil {
		return nil, err
	}

	accounts, err := s.resolveAccounts(ctx, userID, req.AccountIDs)
	if err != nil {
		return nil, err
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}

	days := scheduling.QualifyingDays(startDate, endDate, req.SkipWeekends)
	postsPerDay := 1
	if days > 0 {
		postsPerDay = (len(req.Rows) + days - 1) / days
	}

	distribution := s.eng.Distribute(scheduling.DistributionConfig{
		TotalPosts:         len(req.Rows),
		StartDate:          startDate,
		EndDate:            endDate,
		PostsPerDay:        postsPerDay,
		SkipWeekends:       req.SkipWeekends,
		BusinessHoursOnly:  req.BusinessHoursOnly,
		BusinessHoursStart: s.cfg.BusinessHoursStart,
		BusinessHoursEnd:   s.cfg.BusinessHoursEnd,
	})

	if len(distribution) < len(req.Rows) {
		return nil, fmt.Errorf("date range only holds %d of %d posts; extend the range",
			len(distribution), len(req.Rows))
	}

	dateByIndex := make(map[int]time.Time, len(distribution))
	for _, d := range distribution {
		dateByIndex[d.Index] = d.Date
	}

	batchID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	postFormat := req.PostFormat
	if postFormat == "" {
		postFormat = models.PostFormatPost
	}

	posts := make([]*models.Post, 0, len(req.Rows))
	for i, rowVars := range req.Rows {
		vars := make(map[string]string, len(rowVars)+3)
		for k, v := range rowVars {
			vars[k] = v
		}

		var scheduledAt *time.Time
		if d, ok := dateByIndex[i]; ok {
			scheduledAt = &d
			vars["date"] = d.Format(dateLayout)
			vars["time"] = d.Format("15:04")
			vars["day"] = d.Weekday().String()
		}

		content, missing := scheduling.Render(req.Template, vars)
		if len(missing) > 0 {
			slog.Info("template variables unresolved",
				"row", i+1, "missing", strings.Join(missing, ","))
		}

		var baseComments []string
		if req.FirstComment != "" {
			comment, _ := scheduling.Render(req.FirstComment, vars)
			baseComments = append(baseComments, comment)
		}

		overrides, err := s.buildOverrides(content, baseComments, accounts)
		if err != nil {
			return nil, err
		}

		posts = append(posts, &models.Post{
			UserID:           userID,
			Content:          content,
			TargetAccountIDs: req.AccountIDs,
			ScheduledAt:      scheduledAt,
			Status:           models.PostStatusPending,
			PostFormat:       postFormat,
			BatchID:          batchID,
			Overrides:        overrides,
		})
	}

	if errs := scheduling.ValidateBatch(candidates(posts), time.Now(), s.cfg.MaxContentLength); len(errs) > 0 {
		s.notifySummary(ctx, userID, &transfer.BulkScheduleResult{Errors: errs}, true)
		return &transfer.BulkScheduleResult{Success: false, Errors: errs}, nil
	}

	result := s.createBatch(ctx, posts, accounts)
	s.notifySummary(ctx, userID, result, false)
	return result, nil
}

// buildOverrides trims the content to each target platform's limit, carrying
// any overflow into that platform's comment thread.
func (s *bulkService) buildOverrides(content string, baseComments []string, accounts []*models.SocialAccount) (map[string]models.PlatformContent, error) {
	overrides := make(map[string]models.PlatformContent, len(accounts))
	for _, acc := range accounts {
		h, err := s.reg.Handler(acc.Platform)
		if err != nil {
			return nil, err
		}

		comments := make([]string, len(baseComments))
		copy(comments, baseComments)

		body, comments := scheduling.AdaptForPlatform(content, comments, h.MaxContentLength())
		overrides[strconv.FormatInt(acc.ID, 10)] = models.PlatformContent{
			Content:  body,
			Comments: comments,
		}
	}
	return overrides, nil
}

func (s *bulkService) parseImportRows(userID int64, req *transfer.BulkImportRequest, accounts []*models.SocialAccount) ([]*models.Post, []transfer.ValidationError) {
	var rowErrs []transfer.ValidationError
	posts := make([]*models.Post, 0, len(req.Rows))

	for i, row := range req.Rows {
		post := &models.Post{
			UserID:           userID,
			Content:          row.Content,
			TargetAccountIDs: req.AccountIDs,
			Status:           models.PostStatusPending,
			PostFormat:       models.PostFormatPost,
		}

		if row.ImageURL != "" {
			u, err := url.Parse(row.ImageURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				rowErrs = append(rowErrs, transfer.ValidationError{
					Field:   "image_url",
					Message: "not a valid URL",
					Row:     i + 1,
				})
			} else {
				post.MediaURLs = []string{row.ImageURL}
			}
		}

		if row.ScheduledTime != "" {
			t, err := parseScheduledTime(row.ScheduledTime)
			if err != nil {
				rowErrs = append(rowErrs, transfer.ValidationError{
					Field:   "scheduled_time",
					Message: "not a valid timestamp",
					Row:     i + 1,
				})
			} else {
				post.ScheduledAt = &t
			}
		}

		if comments := splitComments(row.Comments); len(comments) > 0 {
			overrides := make(map[string]models.PlatformContent, len(accounts))
			for _, acc := range accounts {
				overrides[strconv.FormatInt(acc.ID, 10)] = models.PlatformContent{Comments: comments}
			}
			post.Overrides = overrides
		}

		posts = append(posts, post)
	}

	return posts, rowErrs
}

func (s *bulkService) distributeImportDates(posts []*models.Post, req *transfer.BulkImportRequest) error {
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	postsPerDay := req.PostsPerDay
	if postsPerDay < 1 {
		days := scheduling.QualifyingDays(startDate, endDate, req.SkipWeekends)
		postsPerDay = 1
		if days > 0 {
			postsPerDay = (len(posts) + days - 1) / days
		}
	}

	distribution := s.eng.Distribute(scheduling.DistributionConfig{
		TotalPosts:         len(posts),
		StartDate:          startDate,
		EndDate:            endDate,
		PostsPerDay:        postsPerDay,
		SkipWeekends:       req.SkipWeekends,
		BusinessHoursOnly:  req.BusinessHoursOnly,
		BusinessHoursStart: s.cfg.BusinessHoursStart,
		BusinessHoursEnd:   s.cfg.BusinessHoursEnd,
	})

	// A short result means the range cannot hold every row; leaving the rest
	// unscheduled would silently publish them immediately.
	if len(distribution) < len(posts) {
		return fmt.Errorf("date range only holds %d of %d posts; extend the range or raise posts_per_day",
			len(distribution), len(posts))
	}

	for _, d := range distribution {
		date := d.Date
		posts[d.Index].ScheduledAt = &date
	}
	return nil
}

// createBatch persists rows one by one. A failed row is recorded and never
// stops its siblings; the summary keeps exact counts and per-row errors.
func (s *bulkService) createBatch(ctx context.Context, posts []*models.Post, accounts []*models.SocialAccount) *transfer.BulkScheduleResult {
	result := &transfer.BulkScheduleResult{}

	for i, post := range posts {
		id, err := s.createOne(ctx, post, accounts)
		if err != nil {
			slog.Info("bulk row create failed", "row", i+1, "error", err.Error())
			result.Failed++
			result.Errors = append(result.Errors, transfer.ValidationError{
				Field:   "post",
				Message: err.Error(),
				Row:     i + 1,
			})
			continue
		}
		result.Created++
		result.PostIDs = append(result.PostIDs, id)
		if post.ScheduledAt == nil {
			result.ImmediatePostIDs = append(result.ImmediatePostIDs, id)
		}
	}

	result.Success = result.Failed == 0
	return result
}

func (s *bulkService) createOne(ctx context.Context, post *models.Post, accounts []*models.SocialAccount) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	postID, err := s.pr.Create(ctx, tx, post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, acc := range accounts {
		pp := &models.PlatformPost{
			PostID:    postID,
			AccountID: acc.ID,
			Platform:  acc.Platform,
			Status:    models.PostStatusPending,
		}
		if _, err := s.pp.Create(ctx, tx, pp); err != nil {
			return 0, fmt.Errorf("error creating platform post for account %d: %w", acc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return postID, nil
}

func (s *bulkService) resolveAccounts(ctx context.Context, userID int64, accountIDs []int64) ([]*models.SocialAccount, error) {
	if len(accountIDs) == 0 {
		return nil, errors.New("no target accounts selected")
	}

	accounts, err := s.sa.GetByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	if len(accounts) != len(accountIDs) {
		return nil, errors.New("one or more target accounts do not exist")
	}
	for _, acc := range accounts {
		if acc.UserID != userID {
			return nil, fmt.Errorf("account %d does not belong to user", acc.ID)
		}
	}
	return accounts, nil
}

func (s *bulkService) checkBatchSize(n int) error {
	if n == 0 {
		return errors.New("no rows provided")
	}
	if n > s.cfg.MaxBatchSize {
		return fmt.Errorf("batch size %d exceeds limit of %d", n, s.cfg.MaxBatchSize)
	}
	return nil
}

// notifySummary emits exactly one summary notification per bulk operation.
// Best-effort: the notification service swallows its own failures.
func (s *bulkService) notifySummary(ctx context.Context, userID int64, result *transfer.BulkScheduleResult, validationFailed bool) {
	switch {
	case validationFailed:
		s.ns.Notify(ctx, userID, models.NotificationError,
			"Bulk schedule rejected",
			fmt.Sprintf("Validation failed with %d errors; no posts were created", len(result.Errors)), nil)
	case result.Failed > 0:
		s.ns.Notify(ctx, userID, models.NotificationWarning,
			"Bulk schedule partially completed",
			fmt.Sprintf("%d posts created, %d failed", result.Created, result.Failed), nil)
	default:
		s.ns.Notify(ctx, userID, models.NotificationSuccess,
			"Bulk schedule completed",
			fmt.Sprintf("%d posts created", result.Created), nil)
	}
}

func candidates(posts []*models.Post) []scheduling.Candidate {
	out := make([]scheduling.Candidate, len(posts))
	for i, p := range posts {
		out[i] = scheduling.Candidate{
			UserID:      p.UserID,
			Content:     p.Content,
			AccountIDs:  p.TargetAccountIDs,
			ScheduledAt: p.ScheduledAt,
		}
	}
	return out
}

func parseScheduledTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range scheduledTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func splitComments(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
