package models

import "time"

// DropReason explains why a record left the pipeline.
type DropReason string

const (
	DropDuplicate    DropReason = "duplicate"
	DropMissingBrand DropReason = "missing_brand"
	DropBadBrand     DropReason = "malformed_brand"
	DropInvalidBrand DropReason = "invalid_brand"
)

// BrandCount pairs a normalised brand with its frequency.
type BrandCount struct {
	Brand string
	Count int
}

// RunReport summarises a single pipeline run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	SourceRows int
	Dropped    map[DropReason]int
	Recovered  int

	RawCount     int
	CleanedCount int
	RawSplit     [2]int // train, test
	CleanedSplit [2]int

	DistinctRawBrands     int
	DistinctCleanedBrands int
}

// InsightReport holds the computed analytics over both generations.
type InsightReport struct {
	RawRecords        int
	CleanedRecords    int
	NoBrandRecords    int
	NoBrandShare      float64
	DistinctBrands    int
	BrandsAboveCutoff int
	TopBrands         []BrandCount
	RecordsByCategory map[string]int
}
