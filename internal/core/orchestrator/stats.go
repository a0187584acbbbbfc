package orchestrator

import (
	"context"
	"time"

	"komoditas/internal/core/job"
	"komoditas/internal/core/scraper"
)

type SourceStats struct {
	SourceID          string               `json:"sourceId"`
	TotalJobs         int                  `json:"totalJobs"`
	CompletedJobs     int                  `json:"completedJobs"`
	FailedJobs        int                  `json:"failedJobs"`
	RecordsProcessed  int                  `json:"recordsProcessed"`
	AverageDurationMs int64                `json:"averageDurationMs"`
	LastRun           *time.Time           `json:"lastRun,omitempty"`
	Daily             []scraper.RunSummary `json:"daily"`
}

type StatsSummary struct {
	Days              int                    `json:"days"`
	TotalJobs         int                    `json:"totalJobs"`
	CompletedJobs     int                    `json:"completedJobs"`
	FailedJobs        int                    `json:"failedJobs"`
	RunningJobs       int                    `json:"runningJobs"`
	TotalRecords      int                    `json:"totalRecords"`
	AverageDurationMs int64                  `json:"averageDurationMs"`
	Sources           map[string]SourceStats `json:"sources"`
}

const defaultStatsDays = 7

// Stats summarizes the jobs started in the trailing window of days and
// attaches each source's cached per-day run summaries.
func (m *Manager) Stats(ctx context.Context, days int) StatsSummary {
	if days <= 0 {
		days = defaultStatsDays
	}
	since := m.now().AddDate(0, 0, -days)

	out := StatsSummary{Days: days, Sources: map[string]SourceStats{}}
	for _, id := range m.Sources() {
		out.Sources[id] = SourceStats{SourceID: id}
	}

	var totalDuration int64
	var timed int
	perSourceDuration := map[string]int64{}
	perSourceTimed := map[string]int{}

	for _, j := range m.ledger.List() {
		if j.StartTime != nil && j.StartTime.Before(since) {
			continue
		}
		s := out.Sources[j.SourceID]
		s.SourceID = j.SourceID
		s.TotalJobs++
		out.TotalJobs++

		switch j.Status {
		case job.StatusCompleted:
			s.CompletedJobs++
			out.CompletedJobs++
			s.RecordsProcessed += j.RecordsProcessed
			out.TotalRecords += j.RecordsProcessed
		case job.StatusFailed:
			s.FailedJobs++
			out.FailedJobs++
		default:
			out.RunningJobs++
		}
		if j.Status.Terminal() {
			totalDuration += j.DurationMs
			timed++
			perSourceDuration[j.SourceID] += j.DurationMs
			perSourceTimed[j.SourceID]++
		}
		if j.StartTime != nil && (s.LastRun == nil || j.StartTime.After(*s.LastRun)) {
			t := *j.StartTime
			s.LastRun = &t
		}
		out.Sources[j.SourceID] = s
	}

	if timed > 0 {
		out.AverageDurationMs = totalDuration / int64(timed)
	}
	for id, s := range out.Sources {
		if n := perSourceTimed[id]; n > 0 {
			s.AverageDurationMs = perSourceDuration[id] / int64(n)
		}
		if f, err := m.fetcher(id); err == nil {
			s.Daily = f.Stats(ctx, days)
		}
		out.Sources[id] = s
	}
	return out
}
