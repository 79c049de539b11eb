package core

import "time"

const (
	// PendingQueueKey holds notification jobs waiting for a worker.
	PendingQueueKey = "pending_notifications"
	// ProcessingQueueKey holds reserved jobs scored by visibility deadline.
	ProcessingQueueKey = "processing_notifications"
	// DefaultVisibilityTimeout bounds how long a worker may hold a job
	// before the reclaimer hands it to another worker.
	DefaultVisibilityTimeout = 30 * time.Second
)
