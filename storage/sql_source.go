package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/spf13/cast"
	_ "modernc.org/sqlite"

	"brand-pipeline/config"
	"brand-pipeline/models"
	"brand-pipeline/utils"
)

// sourceColumns are selected in this order from the listing table.
var sourceColumns = []string{
	"itemid", "item_name", "brand", "item_ctime",
	"main_category", "sub_category", "level3_category",
	"main_cat", "sub_cat", "level3_cat",
}

// SQLSource reads listings from a PostgreSQL (lib/pq or pgx) or SQLite table.
type SQLSource struct {
	db      *sql.DB
	cfg     config.Source
	logger  *utils.Logger
	skipped int
}

// OpenSQLSource opens the configured database and pings it with retries.
func OpenSQLSource(ctx context.Context, cfg config.Source, logger *utils.Logger) (*SQLSource, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", cfg.Driver, err)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger.With("source"),
	}
	if err := retry.Do(ctx, "source ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("source: %w", err)
	}

	return NewSQLSource(db, cfg, logger), nil
}

// NewSQLSource wraps an already opened database.
func NewSQLSource(db *sql.DB, cfg config.Source, logger *utils.Logger) *SQLSource {
	return &SQLSource{db: db, cfg: cfg, logger: logger.With("source")}
}

// Query builds the filtered listing query and its arguments.
func (s *SQLSource) Query() (string, []any) {
	args := []any{s.cfg.Country, s.cfg.ItemStatus}
	marks := make([]string, 0, len(s.cfg.Categories))
	for _, c := range s.cfg.Categories {
		args = append(args, c)
		marks = append(marks, s.placeholder(len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE country = %s AND item_status = %s AND main_category IN (%s)
		ORDER BY itemid, item_ctime
	`, strings.Join(sourceColumns, ", "), s.cfg.Table,
		s.placeholder(1), s.placeholder(2), strings.Join(marks, ", "))
	return query, args
}

func (s *SQLSource) placeholder(n int) string {
	if s.cfg.Driver == "sqlite" {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// Records runs the listing query. Rows without an item id or with an
// unreadable creation time are skipped and counted.
func (s *SQLSource) Records(ctx context.Context) ([]models.RawRecord, error) {
	query, args := s.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("source: query %s: %w", s.cfg.Table, err)
	}
	defer rows.Close()

	s.skipped = 0
	var records []models.RawRecord
	vals := make([]any, len(sourceColumns))
	ptrs := make([]any, len(sourceColumns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("source: scan row: %w", err)
		}
		rec, err := s.toRecord(vals)
		if err != nil {
			s.skipped++
			s.logger.Debug("Skipping row: %v", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: iterate rows: %w", err)
	}

	if s.skipped > 0 {
		s.logger.Warn("Skipped %d rows without item id or creation time", s.skipped)
	}
	s.logger.Info("Read %d rows from %s", len(records), s.cfg.Table)
	return records, nil
}

// Skipped returns how many rows the last Records call dropped.
func (s *SQLSource) Skipped() int {
	return s.skipped
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

func (s *SQLSource) toRecord(vals []any) (models.RawRecord, error) {
	id, err := cast.ToStringE(scalar(vals[0]))
	if err != nil || id == "" {
		return models.RawRecord{}, fmt.Errorf("bad itemid %v", vals[0])
	}
	ctime, err := toUnix(vals[3])
	if err != nil {
		return models.RawRecord{}, fmt.Errorf("item %s: bad item_ctime: %w", id, err)
	}

	return models.RawRecord{
		ItemID:         id,
		Title:          TitleValue(vals[1]),
		Brand:          BrandValue(vals[2], s.cfg.BrandEncoding),
		CreatedAt:      ctime,
		MainCategory:   cast.ToString(scalar(vals[4])),
		SubCategory:    cast.ToString(scalar(vals[5])),
		Level3Category: cast.ToString(scalar(vals[6])),
		MainCat:        cast.ToString(scalar(vals[7])),
		SubCat:         cast.ToString(scalar(vals[8])),
		Level3Cat:      cast.ToString(scalar(vals[9])),
	}, nil
}

// BrandValue classifies a scanned brand column. With encoding "base64" the
// column holds base64 of UTF-8 text; a failed decode is Malformed.
func BrandValue(v any, encoding string) models.Value {
	var raw []byte
	switch b := v.(type) {
	case nil:
		return models.Missing()
	case string:
		raw = []byte(b)
	case []byte:
		raw = b
	default:
		return models.Malformed()
	}

	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return models.Malformed()
		}
		raw = decoded
	}
	if !utf8.Valid(raw) {
		return models.Malformed()
	}
	return models.Text(string(raw))
}

// TitleValue classifies a scanned title column. Non-string scalars are
// stringified; invalid UTF-8 is Malformed.
func TitleValue(v any) models.Value {
	switch t := v.(type) {
	case nil:
		return models.Missing()
	case []byte:
		if !utf8.Valid(t) {
			return models.Malformed()
		}
		return models.Text(string(t))
	case string:
		if !utf8.ValidString(t) {
			return models.Malformed()
		}
		return models.Text(t)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return models.Malformed()
	}
	return models.Text(s)
}

func toUnix(v any) (int64, error) {
	if t, ok := v.(time.Time); ok {
		return t.Unix(), nil
	}
	if v == nil {
		return 0, errors.New("null")
	}
	return cast.ToInt64E(scalar(v))
}

// scalar turns driver byte slices into strings so cast can parse them.
func scalar(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
