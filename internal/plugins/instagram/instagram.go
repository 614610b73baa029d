package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/postpilot/postpilot/pkg/utils"
)

const (
	authURL   = "https://www.instagram.com/oauth/authorize"
	tokenURL  = "https://api.instagram.com/oauth/access_token"
	graphBase = "https://graph.instagram.com"
	graphAPI  = "https://graph.instagram.com/v21.0"

	captionLimit   = 2200
	concurrentJobs = 3
)

type Handler struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func New(cfg config.Config, sa repository.SocialAccountRepository) *Handler {
	return &Handler{cfg: cfg, sa: sa}
}

func (h *Handler) Platform() string       { return "instagram" }
func (h *Handler) MaxContentLength() int  { return captionLimit }
func (h *Handler) MaxConcurrentJobs() int { return concurrentJobs }

func (h *Handler) Validate(ctx context.Context, post *models.Post) []transfer.ValidationError {
	var errs []transfer.ValidationError

	if len(post.Content) > captionLimit {
		errs = append(errs, transfer.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("caption exceeds instagram limit of %d characters", captionLimit),
		})
	}

	// Instagram has no text-only posts.
	if len(post.MediaURLs) == 0 {
		errs = append(errs, transfer.ValidationError{
			Field:   "media_urls",
			Message: "instagram requires at least one image or video",
		})
	}

	if post.PostFormat == models.PostFormatShort {
		errs = append(errs, transfer.ValidationError{
			Field:   "post_format",
			Message: "instagram does not support the short format",
		})
	}

	return errs
}

func (h *Handler) Post(ctx context.Context, post *models.Post, comments []string, account *models.SocialAccount) (*transfer.PublishResponse, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	var containerID string
	if len(post.MediaURLs) > 1 {
		containerID, err = h.createCarouselContainer(ctx, account.AccountID, post, accessToken)
	} else {
		containerID, err = h.createMediaContainer(ctx, account.AccountID, post, accessToken)
	}
	if err != nil {
		return nil, err
	}

	mediaID, err := h.publishContainer(ctx, account.AccountID, containerID, accessToken)
	if err != nil {
		return nil, err
	}

	permalink, err := h.getPermalink(ctx, mediaID, accessToken)
	if err != nil {
		slog.Info(err.Error())
		permalink = ""
	}

	return &transfer.PublishResponse{
		PlatformPostID: mediaID,
		URL:            permalink,
	}, nil
}

// Update is not supported: the Instagram Graph API has no caption edit for
// published media.
func (h *Handler) Update(ctx context.Context, post *models.Post, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	return nil, errors.New("instagram does not support editing published posts")
}

func (h *Handler) AddComment(ctx context.Context, comment string, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/comments", graphAPI, detail.PlatformPostID)
	payload := map[string]string{
		"message":      comment,
		"access_token": accessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, endpoint, payload, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, errors.New("no comment ID returned from Instagram")
	}

	return &transfer.PublishResponse{PlatformPostID: result.ID}, nil
}

func (h *Handler) GetStatistic(ctx context.Context, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PostStatistic, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"%s/%s?fields=like_count,comments_count&access_token=%s",
		graphAPI, detail.PlatformPostID, accessToken,
	)

	resp, err := http.Get(endpoint)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	var result struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	return &transfer.PostStatistic{
		Likes:    result.LikeCount,
		Comments: result.CommentsCount,
		Raw:      string(body),
	}, nil
}

func (h *Handler) createMediaContainer(ctx context.Context, accountID string, post *models.Post, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", graphAPI, accountID)

	payload := map[string]interface{}{
		"caption":      post.Content,
		"access_token": accessToken,
	}
	mediaURL := post.MediaURLs[0]
	if isVideoURL(mediaURL) {
		payload["media_type"] = "REELS"
		payload["video_url"] = mediaURL
	} else {
		payload["image_url"] = mediaURL
	}
	if post.PostFormat == models.PostFormatStory {
		payload["media_type"] = "STORIES"
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, endpoint, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram")
	}
	return result.ID, nil
}

func (h *Handler) createCarouselContainer(ctx context.Context, accountID string, post *models.Post, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", graphAPI, accountID)

	childIDs := make([]string, 0, len(post.MediaURLs))
	for _, mediaURL := range post.MediaURLs {
		payload := map[string]interface{}{
			"image_url":        mediaURL,
			"is_carousel_item": true,
			"access_token":     accessToken,
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := postJSON(ctx, endpoint, payload, &result); err != nil {
			return "", err
		}
		if result.ID == "" {
			return "", errors.New("no media ID returned from Instagram")
		}
		childIDs = append(childIDs, result.ID)
	}

	payload := map[string]interface{}{
		"media_type":   "CAROUSEL",
		"caption":      post.Content,
		"children":     childIDs,
		"access_token": accessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, endpoint, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no carousel ID returned from Instagram")
	}
	return result.ID, nil
}

func (h *Handler) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", graphAPI, accountID)
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, endpoint, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram publish")
	}
	return result.ID, nil
}

func (h *Handler) getPermalink(ctx context.Context, mediaID, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", graphAPI, mediaID, accessToken)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Permalink, nil
}

func (h *Handler) GetAuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", h.cfg.InstagramClientID)
	params.Add("scope", "instagram_business_basic,instagram_business_content_publish")
	params.Add("response_type", "code")
	params.Add("redirect_uri", h.cfg.InstagramRedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", authURL, params.Encode())
}

func (h *Handler) HandleCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}
	if userID == 0 {
		err := errors.New("user not found")
		slog.Info(err.Error())
		return err
	}

	token, err := h.exchangeCodeForToken(ctx, code)
	if err != nil {
		return err
	}

	userInfo, err := h.getUserInfo(token.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	// Instagram long-lived tokens refresh against themselves; there is no
	// separate refresh token.
	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        "instagram",
		AccountID:       userInfo.UserID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.ProfilePicture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedAccessToken,
		TokenExpiresAt:  token.ExpiresAt,
	}

	_, err = h.sa.Create(ctx, nil, accountInfo)
	return err
}

func (h *Handler) RefreshToken(ctx context.Context, account *models.SocialAccount) error {
	refreshToken, err := utils.Decrypt(account.RefreshToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf(
		"%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		graphBase, refreshToken,
	)

	resp, err := http.Get(endpoint)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	return h.sa.SetToken(ctx, account.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	})
}

func (h *Handler) exchangeCodeForToken(ctx context.Context, code string) (*transfer.OAuthToken, error) {
	data := url.Values{}
	data.Set("client_id", h.cfg.InstagramClientID)
	data.Set("client_secret", h.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", h.cfg.InstagramRedirectURI)
	data.Set("code", code)

	resp, err := http.Post(tokenURL, "application/x-www-form-urlencoded", strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}
	defer resp.Body.Close()

	var shortLived struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shortLived); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return h.exchangeForLongLivedToken(shortLived.AccessToken)
}

func (h *Handler) exchangeForLongLivedToken(shortLivedToken string) (*transfer.OAuthToken, error) {
	endpoint := fmt.Sprintf(
		"%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		graphBase, h.cfg.InstagramClientSecret, shortLivedToken,
	)

	resp, err := http.Get(endpoint)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("error response from Instagram: %s (status code: %d)", body, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode long-lived token response: %w", err)
	}

	return &transfer.OAuthToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

func (h *Handler) getUserInfo(accessToken string) (*transfer.InstagramUserInfo, error) {
	endpoint := fmt.Sprintf(
		"%s/me?fields=id,username,name,account_type,profile_picture_url&access_token=%s",
		graphBase, accessToken,
	)

	resp, err := http.Get(endpoint)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var userInfo transfer.InstagramUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func postJSON(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code from Instagram: %d (%s)", resp.StatusCode, respBody)
	}

	return json.Unmarshal(respBody, out)
}

func isVideoURL(mediaURL string) bool {
	lower := strings.ToLower(mediaURL)
	return strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".mov")
}
