// Package metrics exposes service counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "nebula_insights"

// Collector is a prometheus.Collector for upload, schema and query activity.
// A nil *Collector records nothing.
type Collector struct {
	uploads           *prometheus.CounterVec
	uploadRows        *prometheus.CounterVec
	schemaSyncs       *prometheus.CounterVec
	schemaOperations  *prometheus.CounterVec
	queryBuilds       *prometheus.CounterVec
	permissionDenials *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "uploads_total",
				Help:      "Uploads processed, by outcome.",
			}, []string{"outcome"},
		),
		uploadRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upload_rows_total",
				Help:      "Uploaded rows, by result.",
			}, []string{"result"},
		),
		schemaSyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "schema_syncs_total",
				Help:      "Schema synchronization passes, by result.",
			}, []string{"result"},
		),
		schemaOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "schema_operations_total",
				Help:      "Column alterations applied by schema synchronization.",
			}, []string{"operation"},
		),
		queryBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "query_builds_total",
				Help:      "Analysis queries built, by result.",
			}, []string{"result"},
		),
		permissionDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "permission_denials_total",
				Help:      "Requests refused for a missing capability.",
			}, []string{"permission"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.uploads.Describe(ch)
	c.uploadRows.Describe(ch)
	c.schemaSyncs.Describe(ch)
	c.schemaOperations.Describe(ch)
	c.queryBuilds.Describe(ch)
	c.permissionDenials.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.uploads.Collect(ch)
	c.uploadRows.Collect(ch)
	c.schemaSyncs.Collect(ch)
	c.schemaOperations.Collect(ch)
	c.queryBuilds.Collect(ch)
	c.permissionDenials.Collect(ch)
}

// UploadProcessed records a processed upload and its row counts.
func (c *Collector) UploadProcessed(inserted, rejected int) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues("processed").Inc()
	c.uploadRows.WithLabelValues("inserted").Add(float64(inserted))
	c.uploadRows.WithLabelValues("rejected").Add(float64(rejected))
}

// UploadRefused records an upload refused before any row was processed.
func (c *Collector) UploadRefused() {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues("refused").Inc()
}

// SchemaSynced records one synchronization pass.
func (c *Collector) SchemaSynced(added, modified, dropped int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.schemaSyncs.WithLabelValues("failure").Inc()
		return
	}
	c.schemaSyncs.WithLabelValues("success").Inc()
	c.schemaOperations.WithLabelValues("add").Add(float64(added))
	c.schemaOperations.WithLabelValues("modify").Add(float64(modified))
	c.schemaOperations.WithLabelValues("drop").Add(float64(dropped))
}

// QueryBuilt records a query build attempt.
func (c *Collector) QueryBuilt(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "invalid"
	}
	c.queryBuilds.WithLabelValues(result).Inc()
}

// PermissionDenied records a refused capability check.
func (c *Collector) PermissionDenied(permission string) {
	if c == nil {
		return
	}
	c.permissionDenials.WithLabelValues(permission).Inc()
}
