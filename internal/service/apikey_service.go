package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

type ApiKeyService interface {
	CreateKey(ctx context.Context, userID int64, keyName string) (*models.ApiKey, error)
	GetUserID(ctx context.Context, apiKey string) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	Remove(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	ar repository.ApiKeyRepository
}

func NewApiKeyService(ar repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{ar: ar}
}

func (s *apiKeyService) CreateKey(ctx context.Context, userID int64, keyName string) (*models.ApiKey, error) {
	if keyName == "" {
		keyName = "default"
	}

	raw, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", 40)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	key := &models.ApiKey{
		UserID:  userID,
		KeyName: keyName,
		ApiKey:  fmt.Sprintf("pp_%s", raw),
	}

	id, err := s.ar.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	key.ID = id
	return key, nil
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	userID, err := s.ar.GetUserIDByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if userID == 0 {
		return 0, errors.New("invalid API key")
	}
	return userID, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	return s.ar.ListByUserID(ctx, userID)
}

func (s *apiKeyService) Remove(ctx context.Context, userID, keyID int64) error {
	return s.ar.Remove(ctx, keyID, userID)
}
