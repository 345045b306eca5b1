package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"brand-pipeline/config"
	"brand-pipeline/metrics"
	"brand-pipeline/services"
	"brand-pipeline/storage"
	"brand-pipeline/utils"
)

const pushJobName = "brand_pipeline"

func main() {
	os.Exit(run())
}

// run wires everything up and returns the process exit code, so deferred
// cleanup runs before the process exits.
func run() int {
	cfg := config.Load()
	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 1
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("Failed to load brand rules: %v", err)
		return 1
	}

	logger.Info("=== Brand cleaning pipeline starting ===")
	logger.Info("Config: source %s/%s | categories %d | threshold %d | train ratio %.2f | workers %d",
		cfg.Source.Driver, cfg.Source.Table, len(cfg.Source.Categories),
		cfg.Pipeline.FrequencyThreshold, cfg.Pipeline.TrainRatio, cfg.Pipeline.Workers)

	m := metrics.New()
	if cfg.MetricsPort != "" {
		srv := m.Serve(cfg.MetricsPort, logger)
		defer srv.Close()
	}

	pipeline := services.NewPipeline(cfg.Pipeline, services.NewClassifier(rules), logger, m)
	if cfg.RedisURL != "" {
		pub, err := storage.NewRedisPublisher(cfg.RedisURL, time.Duration(cfg.RedisTTLHours)*time.Hour)
		if err != nil {
			logger.Error("Failed to configure Redis publisher: %v", err)
			return 1
		}
		defer pub.Close()
		pipeline.WithPublisher(pub)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule == "" {
		if err := runOnce(ctx, cfg, pipeline, m, logger); err != nil {
			return 1
		}
		return 0
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(cfg.Schedule, func() {
		_ = runOnce(ctx, cfg, pipeline, m, logger)
	}); err != nil {
		logger.Error("Invalid SCHEDULE %q: %v", cfg.Schedule, err)
		return 1
	}
	c.Start()
	logger.Info("Scheduled with %q, waiting for signal", cfg.Schedule)

	<-ctx.Done()
	logger.Info("Shutting down, waiting for a running job to finish")
	<-c.Stop().Done()
	return 0
}

// runOnce reads the source, runs the pipeline and reports. Errors are
// logged here and returned so the caller can pick an exit code.
func runOnce(ctx context.Context, cfg *config.Config, pipeline *services.Pipeline, m *metrics.Metrics, logger *utils.Logger) error {
	src, err := storage.OpenSQLSource(ctx, cfg.Source, logger)
	if err != nil {
		logger.Error("Failed to connect to the listing source: %v", err)
		return err
	}
	defer src.Close()

	writer := storage.NewCSVPartitionWriter(cfg.OutputDir, cfg.OutputDelimiter)
	res, err := pipeline.Run(ctx, src, writer)

	if cfg.PushgatewayURL != "" {
		if pushErr := m.Push(cfg.PushgatewayURL, pushJobName); pushErr != nil {
			logger.Warn("Metrics push failed: %v", pushErr)
		}
	}
	if err != nil {
		return err
	}

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(res.Raw, res.Cleaned, res.RawFrequencies, cfg.Pipeline.FrequencyThreshold))

	fmt.Printf("  Done. Run %s → %s/{raw,cleaned}/{train,test}.csv\n\n", res.Report.RunID, cfg.OutputDir)
	return nil
}
