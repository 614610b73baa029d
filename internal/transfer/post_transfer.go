package transfer

type PostCreation struct {
	Content       string  `json:"content"`
	ScheduledTime string  `json:"scheduled_time,omitempty"`
	AccountIDs    []int64 `json:"account_ids"`
	PostFormat    string  `json:"post_format,omitempty"`
}
