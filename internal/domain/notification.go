package domain

import (
	"context"
	"time"
)

// Notification is a push-mode wake-up for the pipeline. EventRef is the
// store record id to re-read; everything else in the original message is
// advisory and never trusted over a fresh store read.
type Notification struct {
	EventRef  string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
