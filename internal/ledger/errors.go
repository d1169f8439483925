package ledger

import (
	"errors"
	"fmt"
)

// ErrOfflineDeleteNotSupported is returned when a delete is attempted
// while offline. The pending queue only supports append, not retraction,
// so deleting a possibly-unsynced transaction would make replay ambiguous.
var ErrOfflineDeleteNotSupported = errors.New("deleting transactions is not supported while offline")

// CommitStep names one sub-operation of a commit batch.
type CommitStep string

const (
	StepAccount     CommitStep = "account"
	StepCategory    CommitStep = "category"
	StepTransaction CommitStep = "transaction"
)

// PartialCommitError reports a commit batch that failed after one or
// more sub-operations had already been applied remotely. The remote
// store has no multi-record transaction primitive, so the engine does
// not roll back: it surfaces exactly what was applied and what was not,
// and the caller decides whether to retry.
type PartialCommitError struct {
	Completed []CommitStep
	Failed    CommitStep
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit: %s failed after %v: %v", e.Failed, e.Completed, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }
