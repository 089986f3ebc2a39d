// api/handlers/data_handler.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/Annany2002/nebula-insights/api/middleware"
	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/metrics"
	"github.com/Annany2002/nebula-insights/internal/query"
	"github.com/Annany2002/nebula-insights/internal/storage"
)

const (
	summaryColumns     = 10
	summaryUniqueLimit = 100
	exportSheet        = "Data"
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DataHandler serves filtered counts and exports of the data table.
type DataHandler struct {
	Store           *storage.Store
	StrictOperators bool
	Metrics         *metrics.Collector
}

// NewDataHandler creates a DataHandler. collector may be nil.
func NewDataHandler(store *storage.Store, strictOperators bool, collector *metrics.Collector) *DataHandler {
	return &DataHandler{Store: store, StrictOperators: strictOperators, Metrics: collector}
}

// GetSummary describes the data table for building filter screens.
func (h *DataHandler) GetSummary(c *gin.Context) {
	ctx := c.Request.Context()

	builder, err := newBuilder(c, h.Store, h.StrictOperators)
	if err != nil {
		_ = c.Error(err)
		return
	}
	countSQL, args, err := builder.BuildCount(nil, true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	total, err := h.Store.QueryCount(ctx, countSQL, args...)
	if err != nil {
		_ = c.Error(err)
		return
	}

	physical, err := h.Store.DataColumns(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	available := make([]domain.PhysicalColumn, 0, len(physical))
	for _, col := range physical {
		if col.Name != core.SystemColumn {
			available = append(available, col)
		}
	}

	unique := make(map[string][]any)
	for i, col := range available {
		if i == summaryColumns {
			break
		}
		values, err := h.Store.DistinctValues(ctx, col.Name, summaryUniqueLimit)
		if err != nil {
			customLog.Warnf("Could not get unique values for column %s: %v", col.Name, err)
			continue
		}
		unique[col.Name] = values
	}

	c.JSON(http.StatusOK, models.DataSummary{
		TotalRecords:     total,
		AvailableColumns: available,
		UniqueValues:     unique,
		LastUpdated:      time.Now().UTC(),
	})
}

// GetFilteredCount counts the rows matching the request's filters.
func (h *DataHandler) GetFilteredCount(c *gin.Context) {
	var req models.FilterRequest
	if !bindJSON(c, &req) {
		return
	}
	builder, err := newBuilder(c, h.Store, h.StrictOperators)
	if err != nil {
		_ = c.Error(err)
		return
	}
	countSQL, args, err := builder.BuildCount(req.Filters, true)
	h.Metrics.QueryBuilt(err)
	if err != nil {
		_ = c.Error(err)
		return
	}
	count, err := h.Store.QueryCount(c.Request.Context(), countSQL, args...)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.CountResponse{Count: count, FiltersApplied: filtersOrEmpty(req.Filters)})
}

// Download exports the rows matching the request's filters as xlsx or JSON.
func (h *DataHandler) Download(c *gin.Context) {
	var req models.DownloadRequest
	if !bindJSON(c, &req) {
		return
	}
	format := strings.ToLower(req.Format)
	if format == "" {
		format = models.FormatXLSX
	}

	builder, err := newBuilder(c, h.Store, h.StrictOperators)
	if err != nil {
		_ = c.Error(err)
		return
	}
	selectSQL, args, err := builder.BuildSelect(req.Filters, true)
	h.Metrics.QueryBuilt(err)
	if err != nil {
		_ = c.Error(err)
		return
	}
	rows, err := h.Store.QueryRows(c.Request.Context(), selectSQL, args...)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(rows) == 0 {
		_ = c.Error(fmt.Errorf("%w: no data found matching the filters", middleware.ErrNotFound))
		return
	}

	if format == models.FormatJSON {
		c.JSON(http.StatusOK, models.DownloadResponse{
			Data:           rows,
			Count:          len(rows),
			FiltersApplied: filtersOrEmpty(req.Filters),
			ExportedAt:     time.Now().UTC(),
		})
		return
	}

	columns, err := h.Store.DataColumns(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	content, err := exportWorkbook(names, rows)
	if err != nil {
		_ = c.Error(err)
		return
	}
	filename := safeFilename(req.Filename, "data_export") + ".xlsx"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, content)
}

// exportWorkbook writes rows under a header of columns to a single-sheet workbook.
func exportWorkbook(columns []string, rows []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}

	header := make([]any, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}
	for r, row := range rows {
		cells := make([]any, len(columns))
		for i, name := range columns {
			cells[i] = row[name]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &cells); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write export workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func filtersOrEmpty(filters []query.Filter) []query.Filter {
	if filters == nil {
		return make([]query.Filter, 0)
	}
	return filters
}
