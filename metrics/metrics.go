// Package metrics exposes per-run pipeline counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"brand-pipeline/models"
	"brand-pipeline/utils"
)

const namespace = "brand_pipeline"

// Metrics groups the collectors of the brand pipeline on a private registry.
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	SourceRows      prometheus.Counter
	DroppedRecords  *prometheus.CounterVec
	RecoveredPanics prometheus.Counter
	Runs            *prometheus.CounterVec

	PartitionSize  *prometheus.GaugeVec
	DistinctBrands *prometheus.GaugeVec
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SourceRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_total",
			Help:      "Listings read from the source.",
		}),
		DroppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_records_total",
			Help:      "Listings removed before the raw generation, by reason.",
		}, []string{"reason"}),
		RecoveredPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_transforms_total",
			Help:      "Per-record transforms that failed and fell back to their default.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"status"}),
		PartitionSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partition_records",
			Help:      "Records written per generation and split in the last run.",
		}, []string{"generation", "split"}),
		DistinctBrands: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distinct_brands",
			Help:      "Distinct normalised brands per generation in the last run.",
		}, []string{"generation"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
	}

	m.Registry.MustRegister(
		m.SourceRows, m.DroppedRecords, m.RecoveredPanics, m.Runs,
		m.PartitionSize, m.DistinctBrands, m.RunDuration, m.LastSuccess,
	)
	return m
}

// ObserveRun records the counts of a finished run; err marks it failed.
func (m *Metrics) ObserveRun(r *models.RunReport, err error) {
	if m == nil || r == nil {
		return
	}

	m.SourceRows.Add(float64(r.SourceRows))
	for reason, n := range r.Dropped {
		m.DroppedRecords.WithLabelValues(string(reason)).Add(float64(n))
	}
	m.RecoveredPanics.Add(float64(r.Recovered))

	if !r.FinishedAt.IsZero() {
		m.RunDuration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}

	if err != nil {
		m.Runs.WithLabelValues("failed").Inc()
		return
	}
	m.Runs.WithLabelValues("succeeded").Inc()
	m.LastSuccess.Set(float64(r.FinishedAt.Unix()))

	m.PartitionSize.WithLabelValues(string(models.GenerationRaw), "train").Set(float64(r.RawSplit[0]))
	m.PartitionSize.WithLabelValues(string(models.GenerationRaw), "test").Set(float64(r.RawSplit[1]))
	m.PartitionSize.WithLabelValues(string(models.GenerationCleaned), "train").Set(float64(r.CleanedSplit[0]))
	m.PartitionSize.WithLabelValues(string(models.GenerationCleaned), "test").Set(float64(r.CleanedSplit[1]))
	m.DistinctBrands.WithLabelValues(string(models.GenerationRaw)).Set(float64(r.DistinctRawBrands))
	m.DistinctBrands.WithLabelValues(string(models.GenerationCleaned)).Set(float64(r.DistinctCleanedBrands))
}

// Serve exposes /metrics on port in the background.
func (m *Metrics) Serve(port string, logger *utils.Logger) *http.Server {
	logger = logger.With("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
		}
	}()
	logger.Info("Serving /metrics on :%s", port)
	return srv
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (m *Metrics) Push(url, job string) error {
	if m == nil {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
