package plugin

import (
	"context"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
)

// Handler is the contract every platform implements. All five operations are
// mandatory; anything a platform cannot genuinely support returns an explicit
// error rather than pretending success.
type Handler interface {
	// Platform is the identifier the registry indexes by, e.g. "instagram".
	Platform() string

	// MaxContentLength is the platform's caption limit; the bulk service
	// trims content against it before persistence.
	MaxContentLength() int

	// MaxConcurrentJobs is the platform's dispatch-concurrency hint, used by
	// the queue worker to pace fanout under vendor rate limits.
	MaxConcurrentJobs() int

	Validate(ctx context.Context, post *models.Post) []transfer.ValidationError
	Post(ctx context.Context, post *models.Post, comments []string, account *models.SocialAccount) (*transfer.PublishResponse, error)
	Update(ctx context.Context, post *models.Post, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error)
	AddComment(ctx context.Context, comment string, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PublishResponse, error)
	GetStatistic(ctx context.Context, account *models.SocialAccount, detail *models.PublishDetail) (*transfer.PostStatistic, error)
}

// AuthCapable is implemented by handlers whose platform needs an OAuth
// handshake. Reached through the registry's typed accessor, never through
// dynamic dispatch.
type AuthCapable interface {
	GetAuthURL(state string) string
	HandleCallback(ctx context.Context, code string, userID int64) error
}

// TokenRefresher is implemented by handlers whose platform tokens expire and
// can be renewed without user interaction.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, account *models.SocialAccount) error
}

// Revoker is implemented by handlers whose platform expects stored tokens to
// be invalidated when the user disconnects the account.
type Revoker interface {
	RevokeAccess(ctx context.Context, account *models.SocialAccount) error
}
