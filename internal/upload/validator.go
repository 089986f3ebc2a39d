// Package upload validates spreadsheet rows against the template and inserts the accepted ones.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/Annany2002/nebula-insights/internal/template"
)

var (
	ErrHeaderMismatch  = errors.New("uploaded file columns do not match template")
	ErrAnnotatedReport = errors.New("uploaded file contains an Error column; remove it before re-uploading a corrected error report")

	customLog = logger.NewLogger()
)

// ErrorColumn is the column appended to error reports.
const ErrorColumn = "Error"

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"01-02-06",
	"1/2/06",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// RowInserter writes one validated record.
type RowInserter interface {
	InsertRow(ctx context.Context, columns []string, values []any) error
}

// Validator checks uploaded rows against a template definition.
type Validator struct {
	def      *template.Definition
	inserter RowInserter
}

// NewValidator returns a validator for def inserting through inserter.
func NewValidator(def *template.Definition, inserter RowInserter) *Validator {
	return &Validator{def: def, inserter: inserter}
}

// Process validates and inserts rows. rows[0] is the header; the rest are numbered as spreadsheet
// rows, header being row 1. Structural problems fail the whole upload before any insert. Row-level
// problems are recorded and the remaining rows still processed, one at a time in order.
func (v *Validator) Process(ctx context.Context, rows [][]string) (*domain.UploadOutcome, error) {
	if err := v.checkHeader(rows); err != nil {
		return nil, err
	}

	names := v.def.Names()
	outcome := &domain.UploadOutcome{Rejected: make([]domain.RowRejection, 0)}

	for i, row := range rows[1:] {
		rowNumber := i + 2
		if isBlank(row) {
			continue
		}

		values, reason := v.convertRow(rowNumber, row)
		if reason != "" {
			outcome.Rejected = append(outcome.Rejected, domain.RowRejection{Row: rowNumber, Reason: reason})
			continue
		}

		if err := v.inserter.InsertRow(ctx, names, values); err != nil {
			customLog.Warnf("Upload: Row %d insert failed: %v", rowNumber, err)
			outcome.Rejected = append(outcome.Rejected, domain.RowRejection{
				Row:    rowNumber,
				Reason: fmt.Sprintf("Row %d: failed to insert: %v", rowNumber, err),
			})
			continue
		}
		outcome.InsertedCount++
	}

	customLog.Infof("Upload: %d rows inserted, %d rejected", outcome.InsertedCount, len(outcome.Rejected))
	return outcome, nil
}

func (v *Validator) checkHeader(rows [][]string) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: file has no header row", ErrHeaderMismatch)
	}
	header := trimTrailingBlanks(rows[0])
	for _, cell := range header {
		if strings.TrimSpace(cell) == ErrorColumn {
			return ErrAnnotatedReport
		}
	}

	expected := v.def.Names()
	mismatch := len(header) != len(expected)
	for i := 0; !mismatch && i < len(header); i++ {
		mismatch = strings.TrimSpace(header[i]) != expected[i]
	}
	if mismatch {
		return fmt.Errorf("%w: expected [%s], got [%s]", ErrHeaderMismatch, strings.Join(expected, ", "), strings.Join(header, ", "))
	}
	return nil
}

// convertRow applies the allowed-value checks and type coercion of every column in order.
// It stops at the first violation and returns its message.
func (v *Validator) convertRow(rowNumber int, row []string) ([]any, string) {
	values := make([]any, len(v.def.Columns))
	for i, col := range v.def.Columns {
		raw := ""
		if i < len(row) {
			raw = strings.TrimSpace(row[i])
		}
		lowered := strings.ToLower(raw)
		sentinel := lowered == template.SentinelOptional || lowered == template.SentinelNone

		if allowed := v.def.Allowed[col.Name]; len(allowed) > 0 && !sentinel {
			if _, ok := allowed[lowered]; !ok {
				return nil, fmt.Sprintf("Row %d: invalid value %q for column %q. Allowed values: %s",
					rowNumber, raw, col.Name, strings.Join(v.def.AllowedList(col.Name), ", "))
			}
		}

		if sentinel && col.DeclaredType != domain.TypeText {
			values[i] = nil
			continue
		}
		value, err := coerce(raw, col.DeclaredType)
		if err != nil {
			return nil, fmt.Sprintf("Row %d: invalid value %q for column %q: %v", rowNumber, raw, col.Name, err)
		}
		values[i] = value
	}
	return values, ""
}

// coerce converts a trimmed cell into the value stored for a declared type. Blank cells are NULL.
func coerce(raw string, t domain.DeclaredType) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch t {
	case domain.TypeInt:
		cleaned := strings.ReplaceAll(raw, ",", "")
		if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return n, nil
		}
		// Spreadsheets store whole numbers as floats.
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f == float64(int64(f)) {
			return int64(f), nil
		}
		return nil, errors.New("expected an integer")
	case domain.TypeFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return nil, errors.New("expected a number")
		}
		return f, nil
	case domain.TypeDate:
		d, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		return d.Format("2006-01-02"), nil
	default:
		return raw, nil
	}
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		if d, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return d, nil
		}
	}
	return time.Time{}, errors.New("expected a date")
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlanks(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
