package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
)

// StatisticService reads per-platform engagement numbers for published posts.
type StatisticService interface {
	PostStatistics(ctx context.Context, userID, postID int64) (map[string]*transfer.PostStatistic, error)
}

type statisticService struct {
	pr   repository.PostRepository
	pp   repository.PlatformPostRepository
	sa   repository.SocialAccountRepository
	orch *plugin.Orchestrator
}

func NewStatisticService(
	pr repository.PostRepository,
	pp repository.PlatformPostRepository,
	sa repository.SocialAccountRepository,
	orch *plugin.Orchestrator) StatisticService {
	return &statisticService{
		pr:   pr,
		pp:   pp,
		sa:   sa,
		orch: orch,
	}
}

// PostStatistics collects statistics from every published platform post,
// keyed by account id. Accounts whose platform call fails are skipped with a
// log line; a post with zero published platform posts is an error.
func (s *statisticService) PostStatistics(ctx context.Context, userID, postID int64) (map[string]*transfer.PostStatistic, error) {
	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	platformPosts, err := s.pp.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing platform posts")
	}

	out := make(map[string]*transfer.PostStatistic)
	for _, pp := range platformPosts {
		if pp.Status != models.PostStatusPublished || pp.Detail == nil {
			continue
		}

		account, err := s.sa.GetByID(ctx, pp.AccountID)
		if err != nil || account == nil {
			slog.Info("account unavailable for statistics", "account_id", pp.AccountID)
			continue
		}

		stat, err := s.orch.GetStatistic(ctx, account, pp.Detail)
		if err != nil {
			slog.Info("statistics fetch failed",
				"post_id", postID, "platform", account.Platform, "error", err.Error())
			continue
		}
		out[strconv.FormatInt(account.ID, 10)] = stat
	}

	if len(out) == 0 {
		return nil, errors.New("no published platform posts with statistics")
	}
	return out, nil
}
