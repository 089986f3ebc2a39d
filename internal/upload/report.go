package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/xuri/excelize/v2"

	"github.com/Annany2002/nebula-insights/internal/domain"
)

var ErrReportNotFound = errors.New("error report not found")

const reportExt = ".xlsx"

// ReportStore keeps error-report workbooks on disk until they expire.
type ReportStore struct {
	dir       string
	retention time.Duration
	now       func() time.Time
}

// NewReportStore creates dir when missing.
func NewReportStore(dir string, retention time.Duration) (*ReportStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &ReportStore{dir: dir, retention: retention, now: time.Now}, nil
}

// Save writes the rejected rows with the upload's header and an Error column, and returns the
// report's file name. rows are the uploaded rows, header first, so a rejection's row number
// indexes them directly.
func (s *ReportStore) Save(rows [][]string, rejected []domain.RowRejection) (string, error) {
	if len(rows) == 0 || len(rejected) == 0 {
		return "", errors.New("nothing to report")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			customLog.Warnf("Upload: failed to close report workbook: %v", err)
		}
	}()
	sheet := f.GetSheetName(0)

	header := trimTrailingBlanks(rows[0])
	width := len(header)
	if err := writeRow(f, sheet, 1, append(toCells(header), ErrorColumn)); err != nil {
		return "", err
	}

	for i, rej := range rejected {
		cells := make([]any, width+1)
		for c := 0; c < width; c++ {
			cells[c] = ""
		}
		if rej.Row-1 < len(rows) {
			for c, value := range rows[rej.Row-1] {
				if c < width {
					cells[c] = value
				}
			}
		}
		cells[width] = rej.Reason
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return "", err
		}
	}

	name := uuid.NewString() + reportExt
	if err := f.SaveAs(filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to save error report: %w", err)
	}
	customLog.Infof("Upload: Error report %s written with %d rows", name, len(rejected))
	return name, nil
}

func writeRow(f *excelize.File, sheet string, rowNumber int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write report row %d: %w", rowNumber, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// Path resolves a report name to its file. Only names produced by Save resolve.
func (s *ReportStore) Path(name string) (string, error) {
	id, ok := strings.CutSuffix(name, reportExt)
	if !ok {
		return "", ErrReportNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrReportNotFound
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrReportNotFound
	}
	return path, nil
}

// Purge deletes reports older than the retention period and returns how many were removed.
func (s *ReportStore) Purge() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list reports: %w", err)
	}
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != reportExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				customLog.Warnf("Upload: failed to remove expired report %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// SchedulePurge registers Purge on c with a cron spec such as "@every 1h".
func (s *ReportStore) SchedulePurge(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		removed, err := s.Purge()
		if err != nil {
			customLog.Errorf("Upload: report purge failed: %v", err)
			return
		}
		if removed > 0 {
			customLog.Infof("Upload: purged %d expired error reports", removed)
		}
	})
}
