package bitmap

import "time"

const (
	Version = "v0.1.0"

	DefaultMemorySize      = 10_000
	DefaultTipPollInterval = 30 * time.Second

	// detectionBufferSize is the notification buffer of the processor subscription.
	detectionBufferSize = 256
)
