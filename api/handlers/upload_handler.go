// api/handlers/upload_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/middleware"
	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/internal/upload"
)

const uploadField = "file"

// UploadHandler accepts data workbooks and serves their error reports.
type UploadHandler struct {
	Service  *upload.Service
	Reports  *upload.ReportStore
	MaxBytes int64
}

// NewUploadHandler creates an UploadHandler. maxBytes bounds the request body.
func NewUploadHandler(service *upload.Service, reports *upload.ReportStore, maxBytes int64) *UploadHandler {
	return &UploadHandler{Service: service, Reports: reports, MaxBytes: maxBytes}
}

// Upload validates the rows of an uploaded xlsx file and inserts the valid ones.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)
	}

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(fmt.Errorf("%w: limit is %d bytes", middleware.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		_ = c.Error(fmt.Errorf("%w: no file uploaded", middleware.ErrBadRequest))
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		_ = c.Error(fmt.Errorf("%w: only .xlsx files are accepted", middleware.ErrBadRequest))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer file.Close()

	userID, _ := middleware.CurrentUserID(c)
	customLog.Printf("Upload: user %d uploading %s (%d bytes)", userID, fileHeader.Filename, fileHeader.Size)

	result, err := h.Service.Upload(c.Request.Context(), file)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := models.UploadResponse{
		Message:      "File validated and uploaded successfully",
		RowsInserted: result.Outcome.InsertedCount,
		Errors:       result.Outcome.Rejected,
	}
	if len(resp.Errors) > 0 {
		resp.Message = fmt.Sprintf("File processed: %d rows inserted, %d rows rejected", resp.RowsInserted, len(resp.Errors))
	}
	if result.ReportName != "" {
		resp.ErrorReportURL = "/api/v1/upload/reports/" + result.ReportName
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadReport sends a previously generated error report.
func (h *UploadHandler) DownloadReport(c *gin.Context) {
	path, err := h.Reports.Path(c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.FileAttachment(path, "upload_errors.xlsx")
}
