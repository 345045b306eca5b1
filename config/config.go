package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Configuration validation errors.
var (
	ErrInvalidThreshold  = errors.New("FREQUENCY_THRESHOLD must be non-negative")
	ErrInvalidTrainRatio = errors.New("TRAIN_RATIO must be in (0, 1)")
	ErrInvalidWorkers    = errors.New("MAX_CONCURRENCY must be at least 1")
	ErrInvalidChunkSize  = errors.New("CHUNK_SIZE must be at least 1")
	ErrNoCategories      = errors.New("CATEGORIES must name at least one category")
	ErrUnknownDriver     = errors.New("SOURCE_DRIVER must be one of: postgres, pgx, sqlite")
	ErrUnknownEncoding   = errors.New("BRAND_ENCODING must be 'base64' or 'plain'")
	ErrInvalidTable      = errors.New("SOURCE_TABLE must be a plain SQL identifier")
	ErrMissingOutputDir  = errors.New("OUTPUT_DIR is required")
	ErrInvalidDelimiter  = errors.New("OUTPUT_DELIMITER must be a single character other than quote or newline")
	ErrInvalidRetries    = errors.New("MAX_RETRIES must be at least 1")
)

// DefaultCategories is the main-category allow-list of the brand dataset.
var DefaultCategories = []string{
	"Women Shoes", "Men Shoes", "Health & Beauty", "Women Clothes", "Men Clothes",
}

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Pipeline is the run-time configuration handed to the orchestrator.
type Pipeline struct {
	FrequencyThreshold int
	TrainRatio         float64
	Workers            int
	ChunkSize          int
}

// DefaultPipeline returns the production constants.
func DefaultPipeline() Pipeline {
	return Pipeline{
		FrequencyThreshold: 500,
		TrainRatio:         0.8,
		Workers:            4,
		ChunkSize:          1024,
	}
}

// Validate checks every field against its allowed range.
func (p Pipeline) Validate() error {
	switch {
	case p.FrequencyThreshold < 0:
		return ErrInvalidThreshold
	case p.TrainRatio <= 0 || p.TrainRatio >= 1:
		return ErrInvalidTrainRatio
	case p.Workers < 1:
		return ErrInvalidWorkers
	case p.ChunkSize < 1:
		return ErrInvalidChunkSize
	}
	return nil
}

// Source describes where listings are read from.
type Source struct {
	Driver        string
	DSN           string
	Table         string
	Country       string
	ItemStatus    int
	Categories    []string
	BrandEncoding string
	MaxRetries    int
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	Source   Source
	Pipeline Pipeline

	OutputDir       string
	OutputDelimiter rune
	RulesFile       string

	LogLevel       string
	MetricsPort    string
	PushgatewayURL string
	RedisURL       string
	RedisTTLHours  int
	Schedule       string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	def := DefaultPipeline()
	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "brand"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "shopee"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/item_profile.sqlite"),

		Source: Source{
			Driver:        getEnv("SOURCE_DRIVER", "postgres"),
			DSN:           getEnv("SOURCE_DSN", ""),
			Table:         getEnv("SOURCE_TABLE", "item_profile"),
			Country:       getEnv("SOURCE_COUNTRY", "ID"),
			ItemStatus:    getEnvInt("SOURCE_ITEM_STATUS", 1),
			Categories:    getEnvList("CATEGORIES", DefaultCategories),
			BrandEncoding: getEnv("BRAND_ENCODING", "base64"),
			MaxRetries:    getEnvInt("MAX_RETRIES", 3),
		},
		Pipeline: Pipeline{
			FrequencyThreshold: getEnvInt("FREQUENCY_THRESHOLD", def.FrequencyThreshold),
			TrainRatio:         getEnvFloat("TRAIN_RATIO", def.TrainRatio),
			Workers:            getEnvInt("MAX_CONCURRENCY", def.Workers),
			ChunkSize:          getEnvInt("CHUNK_SIZE", def.ChunkSize),
		},

		OutputDir:       getEnv("OUTPUT_DIR", "./output/brand_classification"),
		OutputDelimiter: getEnvRune("OUTPUT_DELIMITER", ','),
		RulesFile:       getEnv("RULES_FILE", ""),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MetricsPort:    getEnv("METRICS_PORT", ""),
		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		RedisTTLHours:  getEnvInt("REDIS_TTL_HOURS", 72),
		Schedule:       getEnv("SCHEDULE", ""),
	}

	if cfg.Source.DSN == "" {
		cfg.Source.DSN = cfg.defaultDSN()
	}
	return cfg
}

// Validate reports the first configuration value that is out of range.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	switch c.Source.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("%w (got %q)", ErrUnknownDriver, c.Source.Driver)
	}
	switch c.Source.BrandEncoding {
	case "base64", "plain":
	default:
		return fmt.Errorf("%w (got %q)", ErrUnknownEncoding, c.Source.BrandEncoding)
	}
	if !identRegexp.MatchString(c.Source.Table) {
		return fmt.Errorf("%w (got %q)", ErrInvalidTable, c.Source.Table)
	}
	if len(c.Source.Categories) == 0 {
		return ErrNoCategories
	}
	if c.Source.MaxRetries < 1 {
		return ErrInvalidRetries
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrMissingOutputDir
	}
	if c.OutputDelimiter == 0 || c.OutputDelimiter == '"' || c.OutputDelimiter == '\n' || c.OutputDelimiter == '\r' {
		return ErrInvalidDelimiter
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func (c *Config) defaultDSN() string {
	if c.Source.Driver == "sqlite" {
		return c.SQLitePath
	}
	return c.DSN()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

// getEnvList splits a comma separated value; "Health & Beauty" style names keep their spaces.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvRune(key string, fallback rune) rune {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if val == `\t` {
		return '\t'
	}
	r := []rune(val)
	if len(r) != 1 {
		return 0
	}
	return r[0]
}
