package scheduling

import (
	"math/rand"
	"time"
)

// optimalHours are the engagement-favorable posting hours used when a day
// needs time slots.
var optimalHours = []int{9, 12, 15, 18, 21}

// DistributedDate is one assigned slot. Index is the 0-based position in the
// originally requested sequence, so a date can be re-associated with its
// source row after filtering.
type DistributedDate struct {
	Date  time.Time `json:"date"`
	Index int       `json:"index"`
}

type DistributionConfig struct {
	TotalPosts         int
	StartDate          time.Time
	EndDate            time.Time
	PostsPerDay        int
	SkipWeekends       bool
	BusinessHoursOnly  bool
	BusinessHoursStart int
	BusinessHoursEnd   int
}

// Engine assigns calendar slots to a sequence of posts. The random source is
// injected so callers that need reproducible output (tests, dry runs) can
// pass a fixed seed.
type Engine struct {
	rnd *rand.Rand
}

func NewEngine() *Engine {
	return &Engine{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func NewEngineWithSource(src rand.Source) *Engine {
	return &Engine{rnd: rand.New(src)}
}

// Distribute walks calendar days from StartDate to EndDate inclusive and
// assigns up to PostsPerDay slots per qualifying day until TotalPosts slots
// exist. Days past EndDate are never used: when the range is too small the
// result is short, and the caller detects that as len(result) < TotalPosts.
func (e *Engine) Distribute(cfg DistributionConfig) []DistributedDate {
	if cfg.TotalPosts <= 0 || cfg.EndDate.Before(cfg.StartDate) {
		return nil
	}

	perDay := cfg.PostsPerDay
	if perDay < 1 {
		perDay = 1
	}

	start := cfg.BusinessHoursStart
	end := cfg.BusinessHoursEnd
	if start == 0 && end == 0 {
		start, end = 9, 17
	}

	hours := optimalHours
	if cfg.BusinessHoursOnly {
		hours = filterHours(optimalHours, start, end)
		if len(hours) == 0 {
			hours = []int{start}
		}
	}

	out := make([]DistributedDate, 0, cfg.TotalPosts)
	day := truncateToDay(cfg.StartDate)
	endDay := truncateToDay(cfg.EndDate)

	index := 0
	for !day.After(endDay) && index < cfg.TotalPosts {
		if cfg.SkipWeekends && isWeekend(day) {
			day = day.AddDate(0, 0, 1)
			continue
		}

		remaining := cfg.TotalPosts - index
		postsForDay := perDay
		if remaining < postsForDay {
			postsForDay = remaining
		}

		if postsForDay == 1 {
			hour := hours[e.rnd.Intn(len(hours))]
			out = append(out, DistributedDate{
				Date:  day.Add(time.Duration(hour)*time.Hour + time.Duration(e.rnd.Intn(60))*time.Minute),
				Index: index,
			})
			index++
		} else {
			for i := 0; i < postsForDay; i++ {
				hour := hours[i%len(hours)]
				out = append(out, DistributedDate{
					Date:  day.Add(time.Duration(hour)*time.Hour + time.Duration(e.rnd.Intn(60))*time.Minute),
					Index: index,
				})
				index++
			}
		}

		day = day.AddDate(0, 0, 1)
	}

	return out
}

// QualifyingDays counts the days in [start, end] that can receive slots under
// the weekend rule. The bulk generate path uses this to derive posts-per-day.
func QualifyingDays(start, end time.Time, skipWeekends bool) int {
	day := truncateToDay(start)
	endDay := truncateToDay(end)

	count := 0
	for !day.After(endDay) {
		if !skipWeekends || !isWeekend(day) {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

func filterHours(hours []int, start, end int) []int {
	var out []int
	for _, h := range hours {
		if h >= start && h <= end {
			out = append(out, h)
		}
	}
	return out
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
