package upload

import (
	"context"
	"io"

	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/metrics"
	"github.com/Annany2002/nebula-insights/internal/template"
)

// DefinitionSource returns the template currently applied to the data table.
type DefinitionSource interface {
	Current() *template.Definition
}

// Result is the outcome of one upload and the name of its error report, if any.
type Result struct {
	Outcome    *domain.UploadOutcome
	ReportName string
}

// Service reads an uploaded workbook and runs it through the validator.
type Service struct {
	defs     DefinitionSource
	inserter RowInserter
	reports  *ReportStore
	metrics  *metrics.Collector
}

// NewService wires the upload pipeline. collector may be nil.
func NewService(defs DefinitionSource, inserter RowInserter, reports *ReportStore, collector *metrics.Collector) *Service {
	return &Service{defs: defs, inserter: inserter, reports: reports, metrics: collector}
}

// Upload processes the first sheet of an xlsx workbook.
func (s *Service) Upload(ctx context.Context, r io.Reader) (*Result, error) {
	def := s.defs.Current()
	if def == nil {
		return nil, template.ErrTemplateMissing
	}

	rows, err := template.ReadRows(r)
	if err != nil {
		s.metrics.UploadRefused()
		return nil, err
	}

	outcome, err := NewValidator(def, s.inserter).Process(ctx, rows)
	if err != nil {
		s.metrics.UploadRefused()
		return nil, err
	}
	s.metrics.UploadProcessed(outcome.InsertedCount, len(outcome.Rejected))

	result := &Result{Outcome: outcome}
	if len(outcome.Rejected) > 0 && s.reports != nil {
		name, err := s.reports.Save(rows, outcome.Rejected)
		if err != nil {
			// The rows are already committed; a missing report must not fail the upload.
			customLog.Errorf("Upload: error report not written: %v", err)
		} else {
			result.ReportName = name
		}
	}
	return result, nil
}
