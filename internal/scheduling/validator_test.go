package scheduling

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBatch(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	rows := []Candidate{
		{UserID: 1, Content: "ok", AccountIDs: []int64{1}, ScheduledAt: &future},
		{UserID: 1, Content: "", AccountIDs: []int64{1}},
		{UserID: 1, Content: "no targets"},
		{UserID: 1, Content: "too late", AccountIDs: []int64{1}, ScheduledAt: &past},
	}

	errs := ValidateBatch(rows, now, 0)
	require.Len(t, errs, 3)

	assert.Equal(t, "content", errs[0].Field)
	assert.Equal(t, 2, errs[0].Row)

	assert.Equal(t, "account_ids", errs[1].Field)
	assert.Equal(t, 3, errs[1].Row)

	assert.Equal(t, "scheduled_at", errs[2].Field)
	assert.Equal(t, 4, errs[2].Row)
}

func TestValidateBatchCollectsAllViolationsPerRow(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	errs := ValidateBatch([]Candidate{{ScheduledAt: &past}}, now, 0)
	require.Len(t, errs, 4)
	for _, e := range errs {
		assert.Equal(t, 1, e.Row)
	}
}

func TestValidateBatchContentTooLong(t *testing.T) {
	errs := ValidateBatch([]Candidate{{
		UserID:     1,
		Content:    strings.Repeat("a", MaxContentLength+1),
		AccountIDs: []int64{1},
	}}, time.Now(), 0)

	require.Len(t, errs, 1)
	assert.Equal(t, "content", errs[0].Field)
	assert.Contains(t, errs[0].Message, "10000")
}

func TestValidateBatchConfiguredContentLimit(t *testing.T) {
	errs := ValidateBatch([]Candidate{{
		UserID:     1,
		Content:    strings.Repeat("a", 51),
		AccountIDs: []int64{1},
	}}, time.Now(), 50)

	require.Len(t, errs, 1)
	assert.Equal(t, "content", errs[0].Field)
	assert.Contains(t, errs[0].Message, "50")
}

func TestValidateBatchCountsCharactersNotBytes(t *testing.T) {
	// 50 characters, 100 bytes; must pass a 50-character limit.
	errs := ValidateBatch([]Candidate{{
		UserID:     1,
		Content:    strings.Repeat("é", 50),
		AccountIDs: []int64{1},
	}}, time.Now(), 50)

	assert.Empty(t, errs)
}

func TestValidateBatchEmpty(t *testing.T) {
	assert.Empty(t, ValidateBatch(nil, time.Now(), 0))
}
