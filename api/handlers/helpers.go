package handlers

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/middleware"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s '%s'", middleware.ErrBadRequest, name, raw)
	}
	return id, nil
}

// safeFilename reduces a client-supplied name to characters safe in Content-Disposition.
func safeFilename(name, fallback string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "_" {
		return fallback
	}
	return name
}

// bindJSON binds the request body, attaching a bad-request error on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		customLog.Warnf("Binding error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(fmt.Errorf("%w: %w", middleware.ErrBadRequest, err))
		return false
	}
	return true
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", middleware.ErrBadRequest, err)
}
