package dag

import (
	"sort"
	"time"
)

// StatusResult is the get_dag_status payload.
type StatusResult struct {
	DagInfo          Info      `json:"dagInfo"`
	RecentRuns       []RunInfo `json:"recentRuns"`
	NextScheduledRun string    `json:"nextScheduledRun,omitempty"`
}

// RecentRuns fabricates count runs, newest first. The most recent run may
// still be in flight; history skews toward success.
func (s *Store) RecentRuns(count int) []RunInfo {
	runs := make([]RunInfo, 0, count)
	for i := 0; i < count; i++ {
		states := []string{"success", "success", "success", "failed"}
		if i == 0 {
			states = []string{"running", "queued", "success", "failed"}
		}
		runs = append(runs, s.mockRun(i+1, states))
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartDate > runs[j].StartDate })
	return runs
}

// NextRun computes the next fire time for the well-known schedule presets.
// Unknown expressions fall back to this time tomorrow.
func NextRun(schedule string, now time.Time) time.Time {
	now = now.UTC()
	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	switch schedule {
	case "@daily", "0 0 * * *":
		return midnight(now.AddDate(0, 0, 1))
	case "@hourly", "0 * * * *":
		return now.Truncate(time.Hour).Add(time.Hour)
	case "@weekly", "0 0 * * 0":
		days := 7 - int(now.Weekday())
		return midnight(now.AddDate(0, 0, days))
	default:
		return now.AddDate(0, 0, 1)
	}
}
