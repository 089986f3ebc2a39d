// Package template reads the upload template workbook: the column header row, the declared type row
// and the allowed-value rows that constrain uploads.
package template

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/logger"
)

var (
	ErrTemplateMissing    = errors.New("template file not found")
	ErrTemplateMalformed  = errors.New("template file is malformed")
	ErrWorkbookUnreadable = errors.New("spreadsheet could not be read")

	customLog = logger.NewLogger()
)

// Sentinel tokens of the allowed-value rows. They never enter an allowed set but are always accepted.
const (
	SentinelOptional = "optional"
	SentinelNone     = "none"
)

// Definition is the parsed template.
type Definition struct {
	Path    string
	Columns []domain.ColumnDefinition
	// Allowed maps a column name to its lower-cased allowed values. Columns without constraints are absent.
	Allowed map[string]map[string]struct{}
}

// Names returns the column names in template order.
func (d *Definition) Names() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

// AllowedList returns the sorted allowed values of a column, or nil when it is unconstrained.
func (d *Definition) AllowedList(column string) []string {
	set := d.Allowed[column]
	if len(set) == 0 {
		return nil
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Source loads the template from a workbook on disk.
type Source struct {
	Path string
}

// NewSource returns a Source reading path.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Load reads and parses the template workbook.
func (s *Source) Load() (*Definition, error) {
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrTemplateMissing, s.Path)
		}
		return nil, fmt.Errorf("failed to stat template %s: %w", s.Path, err)
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", s.Path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		if errors.Is(err, ErrWorkbookUnreadable) {
			return nil, fmt.Errorf("%w: %v", ErrTemplateMalformed, err)
		}
		return nil, err
	}

	def, err := Parse(rows)
	if err != nil {
		return nil, err
	}
	def.Path = s.Path
	customLog.Debugf("Template: loaded %d columns from %s", len(def.Columns), s.Path)
	return def, nil
}

// ReadRows returns the cell values of the first sheet of an xlsx workbook.
func ReadRows(r io.Reader) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			customLog.Warnf("Template: failed to close workbook: %v", cerr)
		}
	}()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrWorkbookUnreadable)
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}
	return rows, nil
}

// Parse builds a Definition from raw sheet rows: row 1 names, row 2 declared types (TEXT when absent),
// rows 3+ comma-separated allowed values per column.
func Parse(rows [][]string) (*Definition, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrTemplateMalformed)
	}

	header := rows[0]
	var types []string
	if len(rows) > 1 {
		types = rows[1]
	}

	def := &Definition{
		Columns: make([]domain.ColumnDefinition, 0, len(header)),
		Allowed: make(map[string]map[string]struct{}),
	}
	seen := make(map[string]bool, len(header))

	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if !core.IsValidColumnName(name) {
			return nil, fmt.Errorf("%w: invalid column name %q at position %d", ErrTemplateMalformed, cell, i+1)
		}
		// Stores differ on identifier case, so names must stay distinct without it.
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrTemplateMalformed, name)
		}
		seen[strings.ToLower(name)] = true

		declared := ""
		if i < len(types) {
			declared = strings.ToUpper(strings.TrimSpace(types[i]))
		}
		def.Columns = append(def.Columns, domain.ColumnDefinition{
			Name:         name,
			DeclaredType: domain.ParseDeclaredType(declared),
			Position:     i,
		})
	}

	for _, row := range rows[min(2, len(rows)):] {
		for i, cell := range row {
			if i >= len(def.Columns) {
				break
			}
			for _, token := range strings.Split(cell, ",") {
				value := strings.ToLower(strings.TrimSpace(token))
				if value == "" || value == SentinelOptional || value == SentinelNone {
					continue
				}
				column := def.Columns[i].Name
				if def.Allowed[column] == nil {
					def.Allowed[column] = make(map[string]struct{})
				}
				def.Allowed[column][value] = struct{}{}
			}
		}
	}

	return def, nil
}
