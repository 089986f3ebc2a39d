// api/handlers/analysis_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/metrics"
	"github.com/Annany2002/nebula-insights/internal/query"
	"github.com/Annany2002/nebula-insights/internal/storage"
)

// AnalysisHandler serves raw rows and aggregate summaries of the data table.
type AnalysisHandler struct {
	Store           *storage.Store
	StrictOperators bool
	Metrics         *metrics.Collector
}

// NewAnalysisHandler creates an AnalysisHandler. collector may be nil.
func NewAnalysisHandler(store *storage.Store, strictOperators bool, collector *metrics.Collector) *AnalysisHandler {
	return &AnalysisHandler{Store: store, StrictOperators: strictOperators, Metrics: collector}
}

// GetData returns one page of stored rows, newest first.
func (h *AnalysisHandler) GetData(c *gin.Context) {
	opts, err := core.ParseListQueryOptions(c.Request.URL.Query(), core.DefaultLimit)
	if err != nil {
		_ = c.Error(badRequest(err))
		return
	}
	rows, total, err := h.Store.ListData(c.Request.Context(), opts.Limit, opts.Offset())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.DataPage{
		Data:       rows,
		Pagination: models.NewPagination(opts.Page, opts.Limit, total),
	})
}

// GetSummary runs an aggregate query described by the request body.
func (h *AnalysisHandler) GetSummary(c *gin.Context) {
	var req query.Request
	if !bindJSON(c, &req) {
		return
	}

	builder, err := newBuilder(c, h.Store, h.StrictOperators)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sql, args, err := builder.Build(req)
	h.Metrics.QueryBuilt(err)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rows, err := h.Store.QueryRows(c.Request.Context(), sql, args...)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": rows})
}

// newBuilder returns a query builder restricted to the data table's current columns.
func newBuilder(c *gin.Context, store *storage.Store, strict bool) (*query.Builder, error) {
	columns, err := store.DataColumnNames(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return query.NewBuilder(store.DataTable,
		query.WithColumns(append(columns, core.SystemColumn)),
		query.WithStrictOperators(strict),
	), nil
}
