package model

import "time"

// StepOp names a backend mutation recorded in the journal.
type StepOp string

const (
	OpMarkRead    StepOp = "mark_read"
	OpMarkAllRead StepOp = "mark_all_read"
	OpDelete      StepOp = "delete"
)

// Step is one independent backend call of a read-state mutation. A
// cross-source mutation is a sequence of steps, one per source.
type Step struct {
	Op     StepOp
	Source Source
	IDs    []string
}

// StepStatus is the lifecycle state of a journaled step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepRetried   StepStatus = "retried"
)

// JournalEntry is a persisted Step with its outcome.
type JournalEntry struct {
	ID         string
	Step       Step
	Status     StepStatus
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}
