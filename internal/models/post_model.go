package models

import "time"

type Post struct {
	ID               int64                      `db:"id" json:"id"`
	UserID           int64                      `db:"user_id" json:"user_id"`
	Content          string                     `db:"content" json:"content"`
	MediaURLs        []string                   `db:"media_urls" json:"media_urls"`
	TargetAccountIDs []int64                    `db:"target_account_ids" json:"target_account_ids"`
	ScheduledAt      *time.Time                 `db:"scheduled_at" json:"scheduled_at"`
	Status           string                     `db:"status" json:"status"` // pending, published, failed
	PostFormat       string                     `db:"post_format" json:"post_format"`
	BatchID          string                     `db:"batch_id" json:"batch_id"`
	PublishJobID     string                     `db:"publish_job_id" json:"-"`
	Overrides        map[string]PlatformContent `db:"overrides" json:"overrides"`
	CreatedAt        time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time                  `db:"updated_at" json:"updated_at"`
}

// PlatformContent is the per-account adaptation of a post: content trimmed to
// the platform's limit plus the comment thread to publish after it. Keyed by
// account id in Post.Overrides.
type PlatformContent struct {
	Content  string   `json:"content"`
	Comments []string `json:"comments,omitempty"`
}

type PlatformPost struct {
	ID           int64          `db:"id" json:"id"`
	PostID       int64          `db:"post_id" json:"post_id"`
	AccountID    int64          `db:"account_id" json:"account_id"`
	Platform     string         `db:"platform" json:"platform"`
	Status       string         `db:"status" json:"status"`
	Detail       *PublishDetail `db:"publish_detail" json:"publish_detail,omitempty"`
	ErrorMessage string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// PublishDetail is the destination-assigned identity of a published artifact.
// One platform can yield several artifacts over the life of a post (original
// publish, re-publish after edit), so repositories store these keyed by
// account id.
type PublishDetail struct {
	Platform       string `json:"platform"`
	PlatformPostID string `json:"platform_post_id"`
	URL            string `json:"url,omitempty"`
}

const (
	PostStatusPending   = "pending"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	PostFormatPost  = "post"
	PostFormatReel  = "reel"
	PostFormatStory = "story"
	PostFormatShort = "short"
)
