package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Unit outcomes within a batch job.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// RunReport aggregates the per-unit outcomes of one scheduled job run.
type RunReport struct {
	Job       string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	StartedAt time.Time
	Duration  time.Duration
}

type reportCollector struct {
	mu     sync.Mutex
	report RunReport
}

func newReportCollector(job string, startedAt time.Time) *reportCollector {
	return &reportCollector{report: RunReport{Job: job, StartedAt: startedAt}}
}

func (c *reportCollector) record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Total++
	switch o {
	case OutcomeSucceeded:
		c.report.Succeeded++
	case OutcomeFailed:
		c.report.Failed++
	default:
		c.report.Skipped++
	}
}

func (c *reportCollector) finish() RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Duration = time.Since(c.report.StartedAt)
	return c.report
}

// MarshalZerologObject lets a report be logged with Object("report", r).
func (r RunReport) MarshalZerologObject(e *zerolog.Event) {
	e.Str("job", r.Job).
		Int("total", r.Total).
		Int("succeeded", r.Succeeded).
		Int("failed", r.Failed).
		Int("skipped", r.Skipped).
		Dur("duration", r.Duration)
}
