package tiktok

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
	authURL        = "https://www.tiktok.com/v2/auth/authorize"
	tokenURL       = "https://open.tiktokapis.com/v2/oauth/token/"
	userInfoURL    = "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username"
	creatorInfoURL = "https://open.tiktokapis.com/v2/post/publish/creator_info/query/"
	videoInitURL   = "https://open.tiktokapis.com/v2/post/publish/video/init/"
	contentInitURL = "https://open.tiktokapis.com/v2/post/publish/content/init/"
	videoQueryURL  = "https://open.tiktokapis.com/v2/video/query/?fields=id,like_count,comment_count,share_count,view_count"
	revokeURL      = "https://open-api.tiktok.com/oauth/revoke/"

	oauthScopes = "user.info.basic,user.info.profile,video.publish,video.upload"

	titleLimit     = 2200
	concurrentJobs = 2
)

type Handler struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func New(cfg config.Config, sa repository.SocialAccountRepository) *Handler {
	return &Handler{cfg: cfg, sa: sa}
}

func (h *Handler) Platform() string       { return "tiktok" }
func (h *Handler) MaxContentLength() int  { return titleLimit }
func (h *Handler) MaxConcurrentJobs() int { return concurrentJobs }

func (h *Handler) Validate(ctx context.Context, post *models.Post) []transfer.ValidationError {
	var errs []transfer.ValidationError

	if len(post.Content) > titleLimit {
		errs = append(errs, transfer.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("caption exceeds tiktok limit of %d characters", titleLimit),
		})
	}

	if len(post.MediaURLs) == 0 {
		errs = append(errs, transfer.ValidationError{
			Field:   "media_urls",
			Message: "tiktok requires a video or at least one photo",
		})
	}

	if post.PostFormat == models.PostFormatStory {
		errs = append(errs, transfer.ValidationError{
			Field:   "post_format",
			Message: "tiktok does not support the story format",
		})
	}

	return errs
}

func (h *Handler) Post(ctx context.Context, post *models.Post, comments []string, account *models.SocialAccount) (*transfer.PublishResponse, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	if err := h.queryCreatorInfo(ctx, accessToken); err != nil {
		return nil, err
	}

	if allPhotos(post.MediaURLs) {
		return h.postPhotos(ctx, post, accessToken)
	}
	return h.postVideo(ctx, post, accessToken)
}

// Update is not supported: TikTok's content posting API has no caption edit.
func (h *Handler) Update(ctx context.Context, post *models.Post, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	return nil, errors.New("tiktok does not support editing published posts")
}

// AddComment is not supported: TikTok's open API has no comment creation
// endpoint.
func (h *Handler) AddComment(ctx context.Context, comment string, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	return nil, errors.New("tiktok does not support posting comments")
}

func (h *Handler) GetStatistic(ctx context.Context, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PostStatistic, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"filters": map[string]interface{}{
			"video_ids": []string{detail.PlatformPostID},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", videoQueryURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from TikTok: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Videos []struct {
				LikeCount    int64 `json:"like_count"`
				CommentCount int64 `json:"comment_count"`
				ShareCount   int64 `json:"share_count"`
				ViewCount    int64 `json:"view_count"`
			} `json:"videos"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data.Videos) == 0 {
		return nil, errors.New("video not found on TikTok")
	}

	video := result.Data.Videos[0]
	return &transfer.PostStatistic{
		Likes:    video.LikeCount,
		Comments: video.CommentCount,
		Shares:   video.ShareCount,
		Views:    video.ViewCount,
		Raw:      string(respBody),
	}, nil
}

func (h *Handler) postVideo(ctx context.Context, post *models.Post, accessToken string) (*transfer.PublishResponse, error) {
	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":                    post.Content,
			"privacy_level":            "PUBLIC_TO_EVERYONE",
			"disable_duet":             false,
			"disable_comment":          false,
			"disable_stitch":           false,
			"video_cover_timestamp_ms": 1000,
		},
		"source_info": map[string]interface{}{
			"source":    "PULL_FROM_URL",
			"video_url": post.MediaURLs[0],
		},
	}

	return h.initPublish(ctx, videoInitURL, payload, accessToken)
}

func (h *Handler) postPhotos(ctx context.Context, post *models.Post, accessToken string) (*transfer.PublishResponse, error) {
	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":           post.Content,
			"privacy_level":   "PUBLIC_TO_EVERYONE",
			"auto_add_music":  true,
			"disable_comment": false,
		},
		"source_info": map[string]interface{}{
			"source":            "PULL_FROM_URL",
			"photo_cover_index": 1,
			"photo_images":      post.MediaURLs,
		},
		"post_mode":  "DIRECT_POST",
		"media_type": "PHOTO",
	}

	return h.initPublish(ctx, contentInitURL, payload, accessToken)
}

func (h *Handler) initPublish(ctx context.Context, endpoint string, payload map[string]interface{}, accessToken string) (*transfer.PublishResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error publishing on TikTok: %s", result.Error.Message)
	}
	if result.Data.PublishID == "" {
		return nil, errors.New("no publish ID returned from TikTok")
	}

	return &transfer.PublishResponse{
		PlatformPostID: result.Data.PublishID,
		Raw:            string(respBody),
	}, nil
}

func (h *Handler) queryCreatorInfo(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, "POST", creatorInfoURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("creator info query failed with status %d", resp.StatusCode)
	}
	return nil
}

func (h *Handler) GetAuthURL(state string) string {
	params := url.Values{}
	params.Add("client_key", h.cfg.TiktokClientKey)
	params.Add("scope", oauthScopes)
	params.Add("response_type", "code")
	params.Add("redirect_uri", h.cfg.TiktokRedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", authURL, params.Encode())
}

func (h *Handler) HandleCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := h.exchangeCodeForToken(code)
	if err != nil {
		return err
	}

	userInfo, err := h.getUserInfo(tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        "tiktok",
		AccountID:       userInfo.OpenID,
		AccountName:     userInfo.DisplayName,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.AvatarURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  time.Now().Add(time.Second * time.Duration(tokenResponse.ExpiresIn)),
	}

	_, err = h.sa.Create(ctx, nil, accountInfo)
	return err
}

func (h *Handler) RefreshToken(ctx context.Context, account *models.SocialAccount) error {
	refreshToken, err := utils.Decrypt(account.RefreshToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("client_key", h.cfg.TiktokClientKey)
	data.Set("client_secret", h.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	return h.sa.SetToken(ctx, account.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: time.Now().Add(time.Second * time.Duration(tokenResponse.ExpiresIn)),
	})
}

// RevokeAccess invalidates the access token when the user disconnects the
// account.
func (h *Handler) RevokeAccess(ctx context.Context, account *models.SocialAccount) error {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Add("open_id", account.AccountID)
	params.Add("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, "POST", revokeURL, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}

func (h *Handler) exchangeCodeForToken(code string) (*transfer.TiktokTokenResponse, error) {
	data := url.Values{}
	data.Add("client_key", h.cfg.TiktokClientKey)
	data.Add("client_secret", h.cfg.TiktokClientSecret)
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", h.cfg.TiktokRedirectURI)

	resp, err := http.Post(tokenURL, "application/x-www-form-urlencoded", strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("TikTok token endpoint returned non-200 status")
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.ErrorCode != "" {
		return nil, fmt.Errorf("TikTok token error: %s", tokenResponse.ErrorMessage)
	}

	return &tokenResponse, nil
}

func (h *Handler) getUserInfo(accessToken string) (*transfer.TiktokUserInfo, error) {
	req, err := http.NewRequest("GET", userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Data struct {
			User transfer.TiktokUserInfo `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &result.Data.User, nil
}

func allPhotos(mediaURLs []string) bool {
	for _, mediaURL := range mediaURLs {
		lower := strings.ToLower(mediaURL)
		if strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".mov") {
			return false
		}
	}
	return len(mediaURLs) > 0
}
