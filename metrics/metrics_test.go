package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"brand-pipeline/models"
)

func sampleReport() *models.RunReport {
	start := time.Unix(1700000000, 0)
	return &models.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		SourceRows: 10,
		Dropped: map[models.DropReason]int{
			models.DropDuplicate:    2,
			models.DropInvalidBrand: 1,
		},
		Recovered:             1,
		RawSplit:              [2]int{5, 2},
		CleanedSplit:          [2]int{3, 1},
		DistinctRawBrands:     4,
		DistinctCleanedBrands: 1,
	}
}

func TestObserveRunSuccess(t *testing.T) {
	m := New()
	m.ObserveRun(sampleReport(), nil)

	if got := testutil.ToFloat64(m.SourceRows); got != 10 {
		t.Errorf("source rows: got %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.DroppedRecords.WithLabelValues("duplicate")); got != 2 {
		t.Errorf("duplicates: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PartitionSize.WithLabelValues("cleaned", "train")); got != 3 {
		t.Errorf("cleaned train: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Runs.WithLabelValues("succeeded")); got != 1 {
		t.Errorf("succeeded runs: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RunDuration); got != 3 {
		t.Errorf("duration: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != 1700000003 {
		t.Errorf("last success: got %v", got)
	}
}

func TestObserveRunFailure(t *testing.T) {
	m := New()
	m.ObserveRun(sampleReport(), errors.New("source down"))

	if got := testutil.ToFloat64(m.Runs.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed runs: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != 0 {
		t.Errorf("last success should stay unset, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(sampleReport(), nil)
	if err := m.Push("http://127.0.0.1:1", "job"); err != nil {
		t.Errorf("nil Push: %v", err)
	}
}

func TestPushToGateway(t *testing.T) {
	var gotPath string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	m := New()
	m.ObserveRun(sampleReport(), nil)
	if err := m.Push(gw.URL, "brand_pipeline"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotPath != "/metrics/job/brand_pipeline" {
		t.Errorf("push path: got %q", gotPath)
	}
}
