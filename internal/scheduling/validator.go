package scheduling

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/postpilot/postpilot/internal/transfer"
)

// MaxContentLength is the default cap on post content, independent of any
// platform limit. Deployments can lower or raise it through configuration.
const MaxContentLength = 10000

// Candidate is a post row awaiting batch validation and persistence.
type Candidate struct {
	UserID      int64
	Content     string
	AccountIDs  []int64
	ScheduledAt *time.Time
}

// ValidateBatch checks every row and collects every violation; it never stops
// at the first bad row. Row numbers in the returned errors are 1-based.
// A maxContentLength of zero or less falls back to MaxContentLength.
func ValidateBatch(rows []Candidate, now time.Time, maxContentLength int) []transfer.ValidationError {
	if maxContentLength <= 0 {
		maxContentLength = MaxContentLength
	}

	var errs []transfer.ValidationError
	for i, row := range rows {
		errs = append(errs, validateRow(row, now, i+1, maxContentLength)...)
	}
	return errs
}

func validateRow(row Candidate, now time.Time, rowNum, maxContentLength int) []transfer.ValidationError {
	var errs []transfer.ValidationError

	if row.Content == "" {
		errs = append(errs, transfer.ValidationError{
			Field:   "content",
			Message: "content is required",
			Row:     rowNum,
		})
	} else if utf8.RuneCountInString(row.Content) > maxContentLength {
		errs = append(errs, transfer.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("content exceeds %d characters", maxContentLength),
			Row:     rowNum,
		})
	}

	if len(row.AccountIDs) == 0 {
		errs = append(errs, transfer.ValidationError{
			Field:   "account_ids",
			Message: "at least one target account is required",
			Row:     rowNum,
		})
	}

	if row.UserID == 0 {
		errs = append(errs, transfer.ValidationError{
			Field:   "user_id",
			Message: "owning user is required",
			Row:     rowNum,
		})
	}

	if row.ScheduledAt != nil && row.ScheduledAt.Before(now) {
		errs = append(errs, transfer.ValidationError{
			Field:   "scheduled_at",
			Message: "scheduled time cannot be in the past",
			Row:     rowNum,
		})
	}

	return errs
}
