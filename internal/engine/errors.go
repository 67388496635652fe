package engine

import "errors"

var (
	// ErrStoreUnavailable means an ephemeral or persistent store could not
	// be reached. Ingestion fails closed: the event is rejected and the
	// provider's redelivery is the retry mechanism.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSchedulerUnavailable means the drain for a newly opened window
	// could not be scheduled even after retries. Without it the batch would
	// silently never fire.
	ErrSchedulerUnavailable = errors.New("scheduler unavailable")

	// ErrReplyGeneration means a drained batch produced no delivered reply.
	// The batch is requeued and the window reopened before this is
	// returned.
	ErrReplyGeneration = errors.New("reply generation failed")
)
