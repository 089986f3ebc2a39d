// Package schema keeps the physical data table a projection of the template's columns.
package schema

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/Annany2002/nebula-insights/internal/metrics"
	"github.com/Annany2002/nebula-insights/internal/template"
)

var (
	customLog = logger.NewLogger()
)

// TemplateLoader supplies the current template definition.
type TemplateLoader interface {
	Load() (*template.Definition, error)
}

// Store is the schema surface of the relational store.
type Store interface {
	EnsureDataTable(ctx context.Context) (bool, error)
	DataColumns(ctx context.Context) ([]domain.PhysicalColumn, error)
	SameType(physical string, t domain.DeclaredType) bool
	AddColumn(ctx context.Context, column string, t domain.DeclaredType) error
	ModifyColumn(ctx context.Context, column string, t domain.DeclaredType) error
	RenameColumn(ctx context.Context, from, to string) error
	DropColumn(ctx context.Context, column string) error
}

// Rename records a column whose name changed only in case.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Report lists the columns one synchronization pass changed.
type Report struct {
	TableCreated bool     `json:"table_created"`
	Added        []string `json:"added"`
	Renamed      []Rename `json:"renamed"`
	Modified     []string `json:"modified"`
	Dropped      []string `json:"dropped"`
}

// Operations counts the ALTER operations issued.
func (r *Report) Operations() int {
	return len(r.Added) + len(r.Renamed) + len(r.Modified) + len(r.Dropped)
}

// Synchronizer converges the data table onto the template.
type Synchronizer struct {
	loader  TemplateLoader
	store   Store
	metrics *metrics.Collector

	current atomic.Pointer[template.Definition]
}

// NewSynchronizer wires a synchronizer. collector may be nil.
func NewSynchronizer(loader TemplateLoader, store Store, collector *metrics.Collector) *Synchronizer {
	return &Synchronizer{loader: loader, store: store, metrics: collector}
}

// Current returns the template applied by the last successful pass, or nil before the first one.
func (s *Synchronizer) Current() *template.Definition {
	return s.current.Load()
}

// Synchronize loads the template and converges the data table onto it: missing columns are added
// nullable, columns differing only in name case renamed, mismatched types altered, then columns absent
// from the template dropped. The first failing
// ALTER aborts the pass. Passes are idempotent; an unchanged template yields an empty report.
func (s *Synchronizer) Synchronize(ctx context.Context) (*Report, error) {
	report, err := s.synchronize(ctx)
	if report != nil {
		s.metrics.SchemaSynced(len(report.Added), len(report.Modified), len(report.Dropped), err)
	} else {
		s.metrics.SchemaSynced(0, 0, 0, err)
	}
	return report, err
}

func (s *Synchronizer) synchronize(ctx context.Context) (*Report, error) {
	def, err := s.loader.Load()
	if err != nil {
		customLog.Errorf("Schema: Failed to load template: %v", err)
		return nil, err
	}

	report := &Report{Added: []string{}, Renamed: []Rename{}, Modified: []string{}, Dropped: []string{}}
	if report.TableCreated, err = s.store.EnsureDataTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure data table: %w", err)
	}

	physical, err := s.store.DataColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect data table: %w", err)
	}
	existing := make(map[string]string, len(physical))
	for _, col := range physical {
		if col.Name == core.SystemColumn {
			continue
		}
		existing[col.Name] = col.Type
	}

	declared := make(map[string]bool, len(def.Columns))
	for _, col := range def.Columns {
		declared[col.Name] = true
	}

	for _, col := range def.Columns {
		physicalType, ok := existing[col.Name]
		if !ok {
			if from := caseVariant(physical, col.Name, declared, existing); from != "" {
				customLog.Infof("Schema: Renaming column %q to %q", from, col.Name)
				if err := s.store.RenameColumn(ctx, from, col.Name); err != nil {
					return report, err
				}
				report.Renamed = append(report.Renamed, Rename{From: from, To: col.Name})
				physicalType, ok = existing[from], true
				delete(existing, from)
				existing[col.Name] = physicalType
			}
		}
		switch {
		case !ok:
			customLog.Infof("Schema: Adding column %q (%s)", col.Name, col.DeclaredType)
			if err := s.store.AddColumn(ctx, col.Name, col.DeclaredType); err != nil {
				return report, err
			}
			report.Added = append(report.Added, col.Name)
		case !s.store.SameType(physicalType, col.DeclaredType):
			customLog.Infof("Schema: Changing column %q from %s to %s", col.Name, physicalType, col.DeclaredType)
			if err := s.store.ModifyColumn(ctx, col.Name, col.DeclaredType); err != nil {
				return report, err
			}
			report.Modified = append(report.Modified, col.Name)
		}
	}

	for _, col := range physical {
		if _, kept := existing[col.Name]; col.Name == core.SystemColumn || declared[col.Name] || !kept {
			continue
		}
		customLog.Infof("Schema: Dropping column %q", col.Name)
		if err := s.store.DropColumn(ctx, col.Name); err != nil {
			return report, err
		}
		report.Dropped = append(report.Dropped, col.Name)
	}

	s.current.Store(def)
	customLog.Infof("Schema: Synchronized %d columns (%d added, %d renamed, %d modified, %d dropped)",
		len(def.Columns), len(report.Added), len(report.Renamed), len(report.Modified), len(report.Dropped))
	return report, nil
}

// caseVariant returns the physical column spelling name in another case, provided the template does not
// declare that spelling itself and no earlier rename claimed it.
func caseVariant(physical []domain.PhysicalColumn, name string, declared map[string]bool, existing map[string]string) string {
	for _, col := range physical {
		if col.Name == core.SystemColumn || declared[col.Name] || !strings.EqualFold(col.Name, name) {
			continue
		}
		if _, unclaimed := existing[col.Name]; unclaimed {
			return col.Name
		}
	}
	return ""
}
