// api/handlers/template_handler.go
package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/internal/template"
	"github.com/Annany2002/nebula-insights/internal/upload"
)

// TemplateHandler serves the active template definition and file.
type TemplateHandler struct {
	Defs upload.DefinitionSource
	Path string
}

// NewTemplateHandler creates a TemplateHandler. path is the template file on disk.
func NewTemplateHandler(defs upload.DefinitionSource, path string) *TemplateHandler {
	return &TemplateHandler{Defs: defs, Path: path}
}

// GetTemplate lists the template's columns in order with any allowed values.
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	def := h.Defs.Current()
	if def == nil {
		_ = c.Error(template.ErrTemplateMissing)
		return
	}
	columns := make([]models.TemplateColumn, 0, len(def.Columns))
	for _, col := range def.Columns {
		columns = append(columns, models.TemplateColumn{
			ColumnDefinition: col,
			AllowedValues:    def.AllowedList(col.Name),
		})
	}
	c.JSON(http.StatusOK, models.TemplateResponse{Columns: columns})
}

// DownloadTemplate sends the template workbook.
func (h *TemplateHandler) DownloadTemplate(c *gin.Context) {
	if _, err := os.Stat(h.Path); err != nil {
		customLog.Warnf("Template download failed: %v", err)
		_ = c.Error(template.ErrTemplateMissing)
		return
	}
	c.FileAttachment(h.Path, filepath.Base(h.Path))
}
