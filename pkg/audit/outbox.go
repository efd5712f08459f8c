package audit

import (
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ForwardMaxAttempts bounds how often a forward job is retried before River
// discards it.
const ForwardMaxAttempts = 25

// ForwardArgs is the River job enqueued next to a stored audit record when the
// outbox is enabled. The worker publishes the record identified by ID.
type ForwardArgs struct {
	// ID is the decision ID of the stored audit record.
	ID string `json:"id" river:"unique"`
}

// Kind returns the River job kind used to register and dispatch the forward worker.
func (ForwardArgs) Kind() string { return "ForwardAuditRecord" }

// InsertOpts makes sure at most one live job exists per record.
func (ForwardArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: ForwardMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}
}
