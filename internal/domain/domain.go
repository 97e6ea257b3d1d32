package domain

import "time"

type Task string

const (
	TaskSummarize Task = "summarize"
	TaskTag       Task = "tag"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeCached  Outcome = "cached"
	OutcomeFailure Outcome = "failure"
)

// RequestRecord is one assistant call as stored in the request log.
// It carries a hash of the markdown, never the markdown itself.
type RequestRecord struct {
	Task        Task
	ContentHash string
	ContentLen  int
	Model       string
	Outcome     Outcome
	ErrorKind   string
	Duration    time.Duration
	CreatedAt   time.Time
}

type TaskStats struct {
	Task    Task
	Outcome Outcome
	Count   int64
}
