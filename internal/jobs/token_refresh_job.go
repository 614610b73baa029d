package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/repository"
)

type TokenRefreshJob struct {
	sr  repository.SocialAccountRepository
	reg *plugin.Registry
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, reg *plugin.Registry) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:  sr,
		reg: reg,
	}
}

// RefreshTokens renews every token expiring within the next 30 minutes,
// routed through handlers that declare the TokenRefresher capability.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		tr, ok := c.reg.TokenRefresher(acc.Platform)
		if !ok {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := tr.RefreshToken(ctx, acc); err != nil {
				slog.Info("unable to refresh token",
					"platform", acc.Platform, "account_id", acc.ID, "error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}
