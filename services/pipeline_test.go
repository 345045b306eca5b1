package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brand-pipeline/config"
	"brand-pipeline/metrics"
	"brand-pipeline/models"
	"brand-pipeline/storage"
)

type sliceSource struct {
	records []models.RawRecord
	err     error
}

func (s *sliceSource) Records(ctx context.Context) ([]models.RawRecord, error) {
	return s.records, s.err
}

func (s *sliceSource) Close() error { return nil }

// recordingWriter keeps staged partitions in memory.
type recordingWriter struct {
	staged    map[models.Generation]models.Partition
	stageErr  map[models.Generation]error
	began     bool
	committed bool
	aborted   bool
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{
		staged:   make(map[models.Generation]models.Partition),
		stageErr: make(map[models.Generation]error),
	}
}

func (w *recordingWriter) Begin(runID string) error { w.began = true; return nil }

func (w *recordingWriter) Stage(gen models.Generation, p models.Partition) error {
	if err := w.stageErr[gen]; err != nil {
		return err
	}
	w.staged[gen] = p
	return nil
}

func (w *recordingWriter) Commit() error { w.committed = true; return nil }
func (w *recordingWriter) Abort() error  { w.aborted = true; return nil }

type recordingPublisher struct {
	calls map[models.Generation]map[string]int
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, runID string, gen models.Generation, counts map[string]int) error {
	if p.calls == nil {
		p.calls = make(map[models.Generation]map[string]int)
	}
	p.calls[gen] = counts
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func testPipelineConfig() config.Pipeline {
	return config.Pipeline{FrequencyThreshold: 2, TrainRatio: 0.8, Workers: 3, ChunkSize: 2}
}

// sampleRaw yields 5 nike, 2 adidas, 3 no-brand listings plus one duplicate
// and one listing with an unusable brand.
func sampleRaw() []models.RawRecord {
	var raw []models.RawRecord
	add := func(brand models.Value, n int) {
		for i := 0; i < n; i++ {
			id := len(raw) + 1
			raw = append(raw, models.RawRecord{
				ItemID:       fmt.Sprintf("%03d", id),
				Title:        models.Text(fmt.Sprintf("Item %d!!", id)),
				Brand:        brand,
				CreatedAt:    int64(1000 + id),
				MainCategory: "Men Shoes",
			})
		}
	}
	add(models.Text("Nike"), 5)
	add(models.Text("Adidas"), 2)
	add(models.Text("no brand"), 3)
	add(models.Text("9"), 1)
	raw = append(raw, raw[0])
	return raw
}

func TestPipelineRun(t *testing.T) {
	m := metrics.New()
	pub := &recordingPublisher{}
	p := NewPipeline(testPipelineConfig(), NewClassifier(config.DefaultBrandRules()), newTestLogger(), m).WithPublisher(pub)
	w := newRecordingWriter()

	res, err := p.Run(context.Background(), &sliceSource{records: sampleRaw()}, w)
	require.NoError(t, err)
	require.True(t, w.committed)
	assert.False(t, w.aborted)

	rep := res.Report
	assert.Equal(t, 12, rep.SourceRows)
	assert.Equal(t, 1, rep.Dropped[models.DropDuplicate])
	assert.Equal(t, 1, rep.Dropped[models.DropInvalidBrand])
	assert.Equal(t, 10, rep.RawCount)
	assert.Equal(t, 8, rep.CleanedCount)
	assert.Equal(t, [2]int{8, 2}, rep.RawSplit)
	assert.Equal(t, [2]int{6, 2}, rep.CleanedSplit)

	raw := w.staged[models.GenerationRaw]
	cleaned := w.staged[models.GenerationCleaned]
	assert.Equal(t, 10, raw.Len())
	assert.Equal(t, 8, cleaned.Len())

	rawIDs := make(map[string]bool)
	for _, r := range append(append([]models.Record{}, raw.Train...), raw.Test...) {
		rawIDs[r.ItemID] = true
		assert.NotZero(t, r.BrandCount, "raw rows carry brand_count")
	}
	for _, r := range append(append([]models.Record{}, cleaned.Train...), cleaned.Test...) {
		assert.True(t, rawIDs[r.ItemID], "cleaned item %s missing from raw", r.ItemID)
		assert.Greater(t, r.BrandCount, 2)
		assert.NotEqual(t, "adidas", r.Brand)
	}

	assert.Equal(t, 3, pub.calls[models.GenerationRaw][NoBrand])
	assert.NotContains(t, pub.calls[models.GenerationCleaned], "adidas")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues("succeeded")))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.PartitionSize.WithLabelValues("raw", "train")))
}

func TestPipelineSourceFailureAborts(t *testing.T) {
	m := metrics.New()
	p := NewPipeline(testPipelineConfig(), NewClassifier(config.DefaultBrandRules()), newTestLogger(), m)
	w := newRecordingWriter()

	_, err := p.Run(context.Background(), &sliceSource{err: errors.New("connection refused")}, w)
	require.Error(t, err)
	assert.False(t, w.began)
	assert.False(t, w.committed)
	assert.True(t, w.aborted)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues("failed")))
}

func TestPipelineStageFailureAborts(t *testing.T) {
	p := NewPipeline(testPipelineConfig(), NewClassifier(config.DefaultBrandRules()), newTestLogger(), nil)
	w := newRecordingWriter()
	w.stageErr[models.GenerationCleaned] = errors.New("disk full")

	_, err := p.Run(context.Background(), &sliceSource{records: sampleRaw()}, w)
	require.Error(t, err)
	assert.False(t, w.committed)
	assert.True(t, w.aborted)
}

func TestPipelinePublisherFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	p := NewPipeline(testPipelineConfig(), NewClassifier(config.DefaultBrandRules()), newTestLogger(), nil).WithPublisher(pub)

	_, err := p.Run(context.Background(), &sliceSource{records: sampleRaw()}, newRecordingWriter())
	require.NoError(t, err)
	assert.Len(t, pub.calls, 2)
}

func TestPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.TrainRatio = 1.5
	p := NewPipeline(cfg, NewClassifier(config.DefaultBrandRules()), newTestLogger(), nil)

	_, err := p.Run(context.Background(), &sliceSource{records: sampleRaw()}, newRecordingWriter())
	assert.ErrorIs(t, err, config.ErrInvalidTrainRatio)
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(testPipelineConfig(), NewClassifier(config.DefaultBrandRules()), newTestLogger(), nil)
	w := newRecordingWriter()

	_, err := p.Run(ctx, &sliceSource{records: sampleRaw()}, w)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, w.committed)
	assert.True(t, w.aborted)
}

func TestPipelineWritesFourCSVFiles(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(testPipelineConfig(), NewClassifier(config.DefaultBrandRules()), newTestLogger(), nil)

	_, err := p.Run(context.Background(), &sliceSource{records: sampleRaw()}, storage.NewCSVPartitionWriter(dir, ','))
	require.NoError(t, err)

	want := map[string]int{
		storage.DestinationPath(dir, models.GenerationRaw, "train"):     8,
		storage.DestinationPath(dir, models.GenerationRaw, "test"):      2,
		storage.DestinationPath(dir, models.GenerationCleaned, "train"): 6,
		storage.DestinationPath(dir, models.GenerationCleaned, "test"):  2,
	}
	for path, rows := range want {
		f, err := os.Open(path)
		require.NoError(t, err)
		lines, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)
		require.NotEmpty(t, lines)
		assert.Equal(t, storage.Header, lines[0], path)
		assert.Len(t, lines[1:], rows, path)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".staging-", "staging dir left behind")
	}
}
