package storage

import (
	"context"

	"brand-pipeline/models"
)

// RecordSource produces the raw listings of one run.
type RecordSource interface {
	Records(ctx context.Context) ([]models.RawRecord, error)
	Close() error
}

// PartitionWriter publishes the train/test partitions of both generations.
// Nothing staged is visible until Commit; Abort discards the staged run.
type PartitionWriter interface {
	Begin(runID string) error
	Stage(gen models.Generation, p models.Partition) error
	Commit() error
	Abort() error
}

// FrequencyPublisher shares a generation's brand counts with other consumers.
type FrequencyPublisher interface {
	Publish(ctx context.Context, runID string, gen models.Generation, counts map[string]int) error
	Close() error
}
