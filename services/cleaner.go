package services

import (
	"fmt"

	"brand-pipeline/models"
	"brand-pipeline/utils"
)

// CleanResult is the raw generation plus what was dropped on the way.
type CleanResult struct {
	Records   []models.Record
	Dropped   map[models.DropReason]int
	Recovered int
}

// Cleaner transforms RawRecords into the raw generation: deduplicated,
// titles normalised, brands classified.
type Cleaner struct {
	logger     *utils.Logger
	classifier *Classifier
	workers    int
	chunkSize  int
}

// NewCleaner creates a Cleaner that spreads per-record work over workers goroutines.
func NewCleaner(logger *utils.Logger, classifier *Classifier, workers, chunkSize int) *Cleaner {
	return &Cleaner{
		logger:     logger.With("cleaner"),
		classifier: classifier,
		workers:    workers,
		chunkSize:  chunkSize,
	}
}

// Dedup keeps the first record seen for every item id.
func (c *Cleaner) Dedup(raw []models.RawRecord) ([]models.RawRecord, int) {
	seen := make(map[string]struct{}, len(raw))
	result := make([]models.RawRecord, 0, len(raw))

	for _, r := range raw {
		if _, dup := seen[r.ItemID]; dup {
			continue
		}
		seen[r.ItemID] = struct{}{}
		result = append(result, r)
	}
	return result, len(raw) - len(result)
}

type cleanOutcome struct {
	record    models.Record
	class     Classification
	recovered bool
}

// Clean deduplicates raw records and classifies every survivor in parallel.
// Records whose brand cannot be classified are dropped.
func (c *Cleaner) Clean(raw []models.RawRecord) CleanResult {
	unique, duplicates := c.Dedup(raw)

	outcomes := utils.ParallelMap(unique, c.workers, c.chunkSize, c.cleanOne)

	res := CleanResult{
		Records: make([]models.Record, 0, len(outcomes)),
		Dropped: map[models.DropReason]int{models.DropDuplicate: duplicates},
	}
	for _, o := range outcomes {
		if o.recovered {
			res.Recovered++
			c.logger.Warn("Recovered from a failed transform on item %s", o.record.ItemID)
		}
		if !o.class.OK {
			res.Dropped[o.class.Reason]++
			continue
		}
		res.Records = append(res.Records, o.record)
	}

	c.logger.Info("Cleaned %d → %d records (duplicates %d, missing brand %d, malformed brand %d, invalid brand %d)",
		len(raw), len(res.Records), duplicates,
		res.Dropped[models.DropMissingBrand], res.Dropped[models.DropBadBrand], res.Dropped[models.DropInvalidBrand])
	return res
}

// cleanOne never panics: a failing title degrades to "", a failing brand
// to an invalid classification.
func (c *Cleaner) cleanOne(r models.RawRecord) cleanOutcome {
	title, titleRecovered := guard("", func() string { return NormalizeTitle(r.Title) })
	class, brandRecovered := guard(Classification{Reason: models.DropInvalidBrand}, func() Classification {
		return c.classifier.Classify(r.Brand)
	})

	return cleanOutcome{
		record: models.Record{
			ItemID:         r.ItemID,
			Title:          title,
			Brand:          class.Brand,
			CreatedAt:      r.CreatedAt,
			MainCategory:   r.MainCategory,
			SubCategory:    r.SubCategory,
			Level3Category: r.Level3Category,
			MainCat:        r.MainCat,
			SubCat:         r.SubCat,
			Level3Cat:      r.Level3Cat,
		},
		class:     class,
		recovered: titleRecovered || brandRecovered,
	}
}

func guard[T any](fallback T, fn func() T) (out T, recovered bool) {
	defer func() {
		if r := recover(); r != nil {
			out, recovered = fallback, true
		}
	}()
	return fn(), false
}

// String is used in debug logs.
func (r CleanResult) String() string {
	return fmt.Sprintf("%d records, %d recovered", len(r.Records), r.Recovered)
}
