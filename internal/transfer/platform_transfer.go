package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PublishResponse is what a platform handler returns from a successful
// post/update/comment call.
type PublishResponse struct {
	PlatformPostID string `json:"platform_post_id"`
	URL            string `json:"url,omitempty"`
	Raw            string `json:"raw,omitempty"`
}

type PostStatistic struct {
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
	Shares   int64  `json:"shares"`
	Views    int64  `json:"views"`
	Raw      string `json:"raw,omitempty"`
}

// CommentResult is one entry of a multi-comment publish. Failed comments are
// recorded and do not stop the ones after them.
type CommentResult struct {
	Index    int              `json:"index"`
	Status   string           `json:"status"` // published, failed
	Response *PublishResponse `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type TiktokTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	OpenID       string `json:"open_id"`
	Scope        string `json:"scope"`
	ErrorCode    string `json:"error,omitempty"`
	ErrorMessage string `json:"error_description,omitempty"`
}

type TiktokUserInfo struct {
	OpenID      string `json:"open_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Username    string `json:"username"`
}

type InstagramUserInfo struct {
	UserID         string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture_url"`
}

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
