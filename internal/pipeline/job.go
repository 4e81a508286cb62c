package pipeline

import "context"

// Job defines the interface for the pipeline's long-running background tasks
// (the flush scheduler and the history reaper)
type Job interface {
	// Start begins the job's main loop
	// This is a blocking call that runs until the context is canceled
	Start(ctx context.Context) error

	// Stop gracefully stops the job
	Stop(ctx context.Context) error

	// Name returns the job's name for logging and identification
	Name() string
}
