package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRegistersAndCounts(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	c.UploadProcessed(9, 1)
	c.UploadRefused()
	c.SchemaSynced(2, 1, 0, nil)
	c.SchemaSynced(0, 0, 0, errors.New("alter failed"))
	c.QueryBuilt(nil)
	c.QueryBuilt(errors.New("bad"))
	c.PermissionDenied("data.upload")

	assert.Equal(t, 9.0, testutil.ToFloat64(c.uploadRows.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploadRows.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploads.WithLabelValues("refused")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.schemaOperations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.schemaSyncs.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queryBuilds.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.permissionDenials.WithLabelValues("data.upload")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.UploadProcessed(1, 1)
		c.UploadRefused()
		c.SchemaSynced(1, 1, 1, nil)
		c.QueryBuilt(nil)
		c.PermissionDenied("x")
	})
}
