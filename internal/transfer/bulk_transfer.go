package transfer

// ImportRow is one row of a bulk import request. Comments arrive as a single
// `;`-separated field; empty segments are dropped after trimming.
type ImportRow struct {
	Content       string `json:"content"`
	ImageURL      string `json:"image_url,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	Comments      string `json:"comments,omitempty"`
}

type BulkImportRequest struct {
	Rows              []ImportRow `json:"rows"`
	AccountIDs        []int64     `json:"account_ids"`
	DistributeDates   bool        `json:"distribute_dates"`
	StartDate         string      `json:"start_date,omitempty"`
	EndDate           string      `json:"end_date,omitempty"`
	PostsPerDay       int         `json:"posts_per_day,omitempty"`
	SkipWeekends      bool        `json:"skip_weekends,omitempty"`
	BusinessHoursOnly bool        `json:"business_hours_only,omitempty"`
}

type BulkGenerateRequest struct {
	Template          string              `json:"template"`
	FirstComment      string              `json:"first_comment,omitempty"`
	Rows              []map[string]string `json:"rows"`
	AccountIDs        []int64             `json:"account_ids"`
	StartDate         string              `json:"start_date"`
	EndDate           string              `json:"end_date"`
	SkipWeekends      bool                `json:"skip_weekends,omitempty"`
	BusinessHoursOnly bool                `json:"business_hours_only,omitempty"`
	PostFormat        string              `json:"post_format,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Row     int    `json:"row,omitempty"` // 1-based; 0 when not a batch row error
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// BulkScheduleResult is the terminal summary of one bulk operation.
// Success is true only when zero per-row failures occurred.
type BulkScheduleResult struct {
	Success bool              `json:"success"`
	Created int               `json:"created"`
	Failed  int               `json:"failed"`
	Errors  []ValidationError `json:"errors,omitempty"`
	PostIDs []int64           `json:"post_ids,omitempty"`

	// posts created without a scheduled time; the caller dispatches these
	// immediately instead of leaving them to the due-posts sweep
	ImmediatePostIDs []int64 `json:"immediate_post_ids,omitempty"`
}
