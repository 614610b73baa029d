package models

import "time"

type Notification struct {
	ID        int64             `db:"id" json:"id"`
	UserID    int64             `db:"user_id" json:"user_id"`
	Type      string            `db:"type" json:"type"` // success, warning, error
	Title     string            `db:"title" json:"title"`
	Message   string            `db:"message" json:"message"`
	Metadata  map[string]string `db:"metadata" json:"metadata,omitempty"`
	Read      bool              `db:"read" json:"read"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

const (
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)
