// api/models/data_models.go
package models

import (
	"time"

	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/query"
)

// Export formats accepted by the download endpoint.
const (
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Message        string                `json:"message"`
	RowsInserted   int                   `json:"rowsInserted"`
	Errors         []domain.RowRejection `json:"errors"`
	ErrorReportURL string                `json:"errorReportUrl,omitempty"`
}

// TemplateResponse describes the columns of the active template.
type TemplateResponse struct {
	Columns []TemplateColumn `json:"columns"`
}

// TemplateColumn is one template column with its allowed values, if constrained.
type TemplateColumn struct {
	domain.ColumnDefinition
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// DataPage is a page of stored rows.
type DataPage struct {
	Data       []map[string]any `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination describes a paged listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}

// FilterRequest is the body of POST /data/count.
type FilterRequest struct {
	Filters []query.Filter `json:"filters"`
}

// CountResponse is returned by POST /data/count.
type CountResponse struct {
	Count          int64          `json:"count"`
	FiltersApplied []query.Filter `json:"filters_applied"`
}

// DownloadRequest is the body of POST /data/download.
type DownloadRequest struct {
	Filters  []query.Filter `json:"filters"`
	Format   string         `json:"format" binding:"omitempty,oneof=xlsx json"`
	Filename string         `json:"filename" binding:"omitempty,max=100"`
}

// DownloadResponse is the JSON export of filtered rows.
type DownloadResponse struct {
	Data           []map[string]any `json:"data"`
	Count          int              `json:"count"`
	FiltersApplied []query.Filter   `json:"filters_applied"`
	ExportedAt     time.Time        `json:"exported_at"`
}

// DataSummary describes the stored data set.
type DataSummary struct {
	TotalRecords     int64                   `json:"total_records"`
	AvailableColumns []domain.PhysicalColumn `json:"available_columns"`
	UniqueValues     map[string][]any        `json:"unique_values"`
	LastUpdated      time.Time               `json:"last_updated"`
}
