package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/postpilot/postpilot/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	authURL = "https://accounts.google.com/o/oauth2/v2/auth"

	descriptionLimit = 5000
	titleLimit       = 100
	concurrentJobs   = 1
)

var oauthScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.force-ssl",
}

type Handler struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func New(cfg config.Config, sa repository.SocialAccountRepository) *Handler {
	return &Handler{cfg: cfg, sa: sa}
}

func (h *Handler) Platform() string       { return "youtube" }
func (h *Handler) MaxContentLength() int  { return descriptionLimit }
func (h *Handler) MaxConcurrentJobs() int { return concurrentJobs }

func (h *Handler) Validate(ctx context.Context, post *models.Post) []transfer.ValidationError {
	var errs []transfer.ValidationError

	if len(post.Content) > descriptionLimit {
		errs = append(errs, transfer.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("description exceeds youtube limit of %d characters", descriptionLimit),
		})
	}

	if len(post.MediaURLs) == 0 {
		errs = append(errs, transfer.ValidationError{
			Field:   "media_urls",
			Message: "youtube requires a video",
		})
	}
	for _, mediaURL := range post.MediaURLs {
		lower := strings.ToLower(mediaURL)
		if !strings.HasSuffix(lower, ".mp4") && !strings.HasSuffix(lower, ".mov") {
			errs = append(errs, transfer.ValidationError{
				Field:   "media_urls",
				Message: "youtube only accepts video files",
			})
			break
		}
	}

	if post.PostFormat == models.PostFormatStory {
		errs = append(errs, transfer.ValidationError{
			Field:   "post_format",
			Message: "youtube does not support the story format",
		})
	}

	return errs
}

func (h *Handler) Post(ctx context.Context, post *models.Post, comments []string, account *models.SocialAccount) (*transfer.PublishResponse, error) {
	service, err := h.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	tempFile, err := downloadVideo(post.MediaURLs[0])
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       videoTitle(post.Content),
			Description: post.Content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &transfer.PublishResponse{
		PlatformPostID: response.Id,
		URL:            "https://youtu.be/" + response.Id,
	}, nil
}

func (h *Handler) Update(ctx context.Context, post *models.Post, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	service, err := h.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	listResponse, err := service.Videos.List([]string{"snippet"}).Id(detail.PlatformPostID).Do()
	if err != nil {
		return nil, err
	}
	if len(listResponse.Items) == 0 {
		return nil, errors.New("video not found on YouTube")
	}

	video := listResponse.Items[0]
	video.Snippet.Title = videoTitle(post.Content)
	video.Snippet.Description = post.Content

	updated, err := service.Videos.Update([]string{"snippet"}, video).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &transfer.PublishResponse{
		PlatformPostID: updated.Id,
		URL:            "https://youtu.be/" + updated.Id,
	}, nil
}

func (h *Handler) AddComment(ctx context.Context, comment string, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error) {
	service, err := h.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	thread := &youtube.CommentThread{
		Snippet: &youtube.CommentThreadSnippet{
			VideoId: detail.PlatformPostID,
			TopLevelComment: &youtube.Comment{
				Snippet: &youtube.CommentSnippet{
					TextOriginal: comment,
				},
			},
		},
	}

	created, err := service.CommentThreads.Insert([]string{"snippet"}, thread).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &transfer.PublishResponse{PlatformPostID: created.Id}, nil
}

func (h *Handler) GetStatistic(ctx context.Context, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PostStatistic, error) {
	service, err := h.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	response, err := service.Videos.List([]string{"statistics"}).Id(detail.PlatformPostID).Do()
	if err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, errors.New("video not found on YouTube")
	}

	stats := response.Items[0].Statistics
	return &transfer.PostStatistic{
		Likes:    int64(stats.LikeCount),
		Comments: int64(stats.CommentCount),
		Views:    int64(stats.ViewCount),
	}, nil
}

func (h *Handler) serviceFor(ctx context.Context, account *models.SocialAccount) (*youtube.Service, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{AccessToken: accessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return service, nil
}

func (h *Handler) GetAuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", h.cfg.GoogleClientID)
	params.Add("redirect_uri", h.cfg.GoogleRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", strings.Join(oauthScopes, " "))
	params.Add("state", state)
	params.Add("access_type", "offline")

	return fmt.Sprintf("%s?%s", authURL, params.Encode())
}

func (h *Handler) HandleCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	oauth2Config := h.oauthConfig()
	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if token.RefreshToken == "" {
		err = errors.New("refresh token is empty")
		slog.Info(err.Error())
		return err
	}

	client := oauth2Config.Client(ctx, token)
	userInfo, err := getUserInfo(client)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        "youtube",
		AccountID:       userInfo.ID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Email,
		ProfilePicture:  userInfo.Picture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  token.Expiry,
	}

	_, err = h.sa.Create(ctx, nil, accountInfo)
	return err
}

func (h *Handler) RefreshToken(ctx context.Context, account *models.SocialAccount) error {
	refreshToken, err := utils.Decrypt(account.RefreshToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	tokenSource := h.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	return h.sa.SetToken(ctx, account.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   account.RefreshToken,
		TokenExpiresAt: token.Expiry,
	})
}

// RevokeAccess invalidates the Google token when the user disconnects the
// account.
func (h *Handler) RevokeAccess(ctx context.Context, account *models.SocialAccount) error {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}

	payload := strings.NewReader("token=" + accessToken)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://oauth2.googleapis.com/revoke", payload)
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

func (h *Handler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.GoogleClientID,
		ClientSecret: h.cfg.GoogleClientSecret,
		RedirectURL:  h.cfg.GoogleRedirectURI,
		Scopes:       oauthScopes,
		Endpoint:     google.Endpoint,
	}
}

func getUserInfo(client *http.Client) (*transfer.GoogleUserInfo, error) {
	response, err := client.Get("https://www.googleapis.com/oauth2/v1/userinfo")
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	var userInfo transfer.GoogleUserInfo
	if err := json.NewDecoder(response.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}

func downloadVideo(videoURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	response, err := http.Get(videoURL)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	_, err = io.Copy(tempFile, response.Body)
	if err != nil {
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}

	return tempFile.Name(), nil
}

// videoTitle derives the snippet title from the first line of the
// description, cut to YouTube's 100-character limit.
func videoTitle(content string) string {
	title := content
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	if len(title) > titleLimit {
		title = title[:titleLimit]
	}
	return title
}
