package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"brand-pipeline/config"
	"brand-pipeline/metrics"
	"brand-pipeline/models"
	"brand-pipeline/storage"
	"brand-pipeline/utils"
)

// RunResult is everything a successful run produced.
type RunResult struct {
	Report             *models.RunReport
	Raw                []models.Record
	Cleaned            []models.Record
	RawFrequencies     FrequencyTable
	CleanedFrequencies FrequencyTable
}

// Pipeline sequences cleaning, frequency filtering and partitioning over one
// batch of listings and publishes both generations.
type Pipeline struct {
	cfg       config.Pipeline
	cleaner   *Cleaner
	logger    *utils.Logger
	metrics   *metrics.Metrics
	publisher storage.FrequencyPublisher
}

// NewPipeline creates a Pipeline. m may be nil.
func NewPipeline(cfg config.Pipeline, classifier *Classifier, logger *utils.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		cleaner: NewCleaner(logger, classifier, cfg.Workers, cfg.ChunkSize),
		logger:  logger.With("pipeline"),
		metrics: m,
	}
}

// WithPublisher sets where brand counts are shared after a successful commit.
func (p *Pipeline) WithPublisher(pub storage.FrequencyPublisher) *Pipeline {
	p.publisher = pub
	return p
}

// Run executes one full batch. On any error the writer is aborted so the
// previously published outputs stay untouched.
func (p *Pipeline) Run(ctx context.Context, src storage.RecordSource, out storage.PartitionWriter) (res *RunResult, err error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Dropped:   make(map[models.DropReason]int),
	}

	defer func() {
		report.FinishedAt = time.Now()
		if err != nil {
			if abortErr := out.Abort(); abortErr != nil {
				p.logger.Error("Abort after failure also failed: %v", abortErr)
			}
			p.logger.Error("Run %s failed: %v", report.RunID, err)
		}
		p.metrics.ObserveRun(report, err)
	}()

	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.logger.Info("Run %s starting (threshold %d, train ratio %.2f, workers %d)",
		report.RunID, p.cfg.FrequencyThreshold, p.cfg.TrainRatio, p.cfg.Workers)

	raw, err := src.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read source: %w", err)
	}
	report.SourceRows = len(raw)

	if err := out.Begin(report.RunID); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned := p.cleaner.Clean(raw)
	for reason, n := range cleaned.Dropped {
		report.Dropped[reason] = n
	}
	report.Recovered = cleaned.Recovered
	p.logger.Debug("Clean stage produced %s", cleaned)

	// The count is joined before the raw write so raw rows carry brand_count too.
	rawCounts := CountBrands(cleaned.Records, p.cfg.Workers, p.cfg.ChunkSize)
	rawGen := rawCounts.Annotate(cleaned.Records)
	report.RawCount = len(rawGen)
	report.DistinctRawBrands = len(rawCounts)

	rawSplit := Split(rawGen, p.cfg.TrainRatio)
	report.RawSplit = [2]int{len(rawSplit.Train), len(rawSplit.Test)}
	if err := out.Stage(models.GenerationRaw, rawSplit); err != nil {
		return nil, fmt.Errorf("pipeline: stage raw: %w", err)
	}
	p.logger.Info("Raw generation: %d records (train %d / test %d, %d brands)",
		report.RawCount, report.RawSplit[0], report.RawSplit[1], report.DistinctRawBrands)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleanedGen := FilterByFrequency(rawGen, p.cfg.FrequencyThreshold)
	cleanedCounts := CountBrands(cleanedGen, p.cfg.Workers, p.cfg.ChunkSize)
	report.CleanedCount = len(cleanedGen)
	report.DistinctCleanedBrands = len(cleanedCounts)

	cleanedSplit := Split(cleanedGen, p.cfg.TrainRatio)
	report.CleanedSplit = [2]int{len(cleanedSplit.Train), len(cleanedSplit.Test)}
	if err := out.Stage(models.GenerationCleaned, cleanedSplit); err != nil {
		return nil, fmt.Errorf("pipeline: stage cleaned: %w", err)
	}
	p.logger.Info("Cleaned generation: %d records (train %d / test %d, %d brands above %d)",
		report.CleanedCount, report.CleanedSplit[0], report.CleanedSplit[1],
		report.DistinctCleanedBrands, p.cfg.FrequencyThreshold)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, fmt.Errorf("pipeline: commit: %w", err)
	}

	p.publish(ctx, report.RunID, models.GenerationRaw, rawCounts)
	p.publish(ctx, report.RunID, models.GenerationCleaned, cleanedCounts)

	p.logger.Info("Run %s finished in %v", report.RunID, time.Since(report.StartedAt).Round(time.Millisecond))
	return &RunResult{
		Report:             report,
		Raw:                rawGen,
		Cleaned:            cleanedGen,
		RawFrequencies:     rawCounts,
		CleanedFrequencies: cleanedCounts,
	}, nil
}

// publish is best effort: the CSV outputs are already committed.
func (p *Pipeline) publish(ctx context.Context, runID string, gen models.Generation, counts FrequencyTable) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, runID, gen, counts); err != nil {
		p.logger.Warn("Could not publish %s brand counts: %v", gen, err)
	}
}
