package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/plugin"
	"github.com/postpilot/postpilot/internal/repository"
)

// PlatformService is the account-connection surface: it routes OAuth
// handshakes to handlers that declare the AuthCapable capability and manages
// the stored connections.
type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, state string) (string, error)
	HandleCallback(ctx context.Context, platform, code string, userID int64) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	reg *plugin.Registry
	sa  repository.SocialAccountRepository
}

func NewPlatformService(reg *plugin.Registry, sa repository.SocialAccountRepository) PlatformService {
	return &platformService{
		reg: reg,
		sa:  sa,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, state string) (string, error) {
	ac, ok := s.reg.AuthCapable(platform)
	if !ok {
		err := fmt.Errorf("platform %s does not support account connection", platform)
		slog.Info(err.Error())
		return "", err
	}
	return ac.GetAuthURL(state), nil
}

func (s *platformService) HandleCallback(ctx context.Context, platform, code string, userID int64) error {
	if userID == 0 {
		err := errors.New("user not found")
		slog.Info(err.Error())
		return err
	}

	ac, ok := s.reg.AuthCapable(platform)
	if !ok {
		err := fmt.Errorf("platform %s does not support account connection", platform)
		slog.Info(err.Error())
		return err
	}
	return ac.HandleCallback(ctx, code, userID)
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing social accounts")
	}
	return accounts, nil
}

func (s *platformService) Delete(ctx context.Context, userID, accountID int64) error {
	exists, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !exists {
		err = errors.New("social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("unable to get social account info")
	}

	if rv, ok := s.reg.Revoker(account.Platform); ok {
		if err := rv.RevokeAccess(ctx, account); err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("unable to revoke access")
		}
	}

	return s.sa.Remove(ctx, accountID)
}
