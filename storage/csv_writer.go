package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"brand-pipeline/models"
)

// Header is the column layout of every output file.
var Header = []string{
	"itemid", "item_name", "brand", "item_ctime",
	"main_category", "sub_category", "level3_category",
	"main_cat", "sub_cat", "level3_cat", "brand_count",
}

var (
	ErrNoRun          = errors.New("csv: no run in progress")
	ErrRunInProgress  = errors.New("csv: a run is already in progress")
	ErrIncompleteRun  = errors.New("csv: both generations must be staged before commit")
	ErrAlreadyStaged  = errors.New("csv: generation already staged")
	generationsNeeded = []models.Generation{models.GenerationRaw, models.GenerationCleaned}
	splits            = []string{"train", "test"}
)

// CSVPartitionWriter writes each generation's train/test split to
// <base>/<generation>/{train,test}.csv. Files are first written under a
// per-run staging directory and renamed into place on Commit, replacing
// the previous run's output.
// It is safe for concurrent use.
type CSVPartitionWriter struct {
	mu      sync.Mutex
	baseDir string
	comma   rune
	staging string
	staged  map[models.Generation]bool
}

// NewCSVPartitionWriter creates a writer rooted at baseDir using comma as the delimiter.
func NewCSVPartitionWriter(baseDir string, comma rune) *CSVPartitionWriter {
	return &CSVPartitionWriter{baseDir: baseDir, comma: comma}
}

// DestinationPath returns where a committed split of gen lives.
func DestinationPath(baseDir string, gen models.Generation, split string) string {
	return filepath.Join(baseDir, string(gen), split+".csv")
}

// Begin creates the staging directory for runID.
func (w *CSVPartitionWriter) Begin(runID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staging != "" {
		return ErrRunInProgress
	}

	dir := filepath.Join(w.baseDir, ".staging-"+runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("csv: create staging dir: %w", err)
	}
	w.staging = dir
	w.staged = make(map[models.Generation]bool, 2)
	return nil
}

// Stage writes both splits of gen into the staging directory.
func (w *CSVPartitionWriter) Stage(gen models.Generation, p models.Partition) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staging == "" {
		return ErrNoRun
	}
	if w.staged[gen] {
		return fmt.Errorf("%w: %s", ErrAlreadyStaged, gen)
	}

	if err := w.writeFile(DestinationPath(w.staging, gen, splits[0]), p.Train); err != nil {
		return err
	}
	if err := w.writeFile(DestinationPath(w.staging, gen, splits[1]), p.Test); err != nil {
		return err
	}
	w.staged[gen] = true
	return nil
}

// Commit moves every staged file over its destination and removes the staging
// directory. Replaced files are parked under the staging directory first; if
// any destination cannot be published, every file already moved is put back
// so the output shows either the whole run or the previous one.
func (w *CSVPartitionWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staging == "" {
		return ErrNoRun
	}
	for _, gen := range generationsNeeded {
		if !w.staged[gen] {
			return ErrIncompleteRun
		}
	}

	backupDir := filepath.Join(w.staging, "previous")
	var done []publishedFile
	for _, gen := range generationsNeeded {
		for _, split := range splits {
			pf, err := w.publish(gen, split, backupDir)
			if err != nil {
				err = fmt.Errorf("csv: publish %s/%s: %w", gen, split, err)
				if rbErr := rollback(done); rbErr != nil {
					return errors.Join(err, fmt.Errorf("csv: rollback: %w", rbErr))
				}
				return err
			}
			done = append(done, pf)
		}
	}

	err := os.RemoveAll(w.staging)
	w.staging, w.staged = "", nil
	if err != nil {
		return fmt.Errorf("csv: remove staging dir: %w", err)
	}
	return nil
}

// publishedFile records one destination swapped in by Commit.
type publishedFile struct {
	dst      string
	backup   string
	replaced bool
}

func (w *CSVPartitionWriter) publish(gen models.Generation, split, backupDir string) (publishedFile, error) {
	pf := publishedFile{
		dst:    DestinationPath(w.baseDir, gen, split),
		backup: DestinationPath(backupDir, gen, split),
	}
	if err := os.MkdirAll(filepath.Dir(pf.dst), 0755); err != nil {
		return pf, err
	}

	if _, err := os.Lstat(pf.dst); err == nil {
		if err := os.MkdirAll(filepath.Dir(pf.backup), 0755); err != nil {
			return pf, err
		}
		if err := os.Rename(pf.dst, pf.backup); err != nil {
			return pf, err
		}
		pf.replaced = true
	} else if !os.IsNotExist(err) {
		return pf, err
	}

	if err := os.Rename(DestinationPath(w.staging, gen, split), pf.dst); err != nil {
		if pf.replaced {
			_ = os.Rename(pf.backup, pf.dst)
		}
		return pf, err
	}
	return pf, nil
}

// rollback undoes published files in reverse order.
func rollback(done []publishedFile) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		pf := done[i]
		if err := os.RemoveAll(pf.dst); err != nil {
			errs = append(errs, err)
			continue
		}
		if pf.replaced {
			if err := os.Rename(pf.backup, pf.dst); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Abort discards the staged run. It is a no-op when no run is in progress.
func (w *CSVPartitionWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staging == "" {
		return nil
	}
	err := os.RemoveAll(w.staging)
	w.staging, w.staged = "", nil
	if err != nil {
		return fmt.Errorf("csv: remove staging dir: %w", err)
	}
	return nil
}

func (w *CSVPartitionWriter) writeFile(path string, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = w.comma

	if err := cw.Write(Header); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush %q: %w", path, err)
	}
	return f.Close()
}

func row(r models.Record) []string {
	return []string{
		r.ItemID,
		r.Title,
		r.Brand,
		strconv.FormatInt(r.CreatedAt, 10),
		r.MainCategory,
		r.SubCategory,
		r.Level3Category,
		r.MainCat,
		r.SubCat,
		r.Level3Cat,
		strconv.Itoa(r.BrandCount),
	}
}
