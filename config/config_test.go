package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "unit-test-secret")
	t.Setenv("IDP_SHARED_SECRET", "unit-test-idp")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "uploaded_data", cfg.DataTable)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.StrictOperators)
	assert.True(t, cfg.IsProduction())
	assert.Contains(t, cfg.DatabaseDSN(), "_foreign_keys=on")
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("JWT_EXPIRATION_HOURS", "-3")
	t.Setenv("QUERY_STRICT_OPERATORS", "true")
	t.Setenv("REPORT_RETENTION", "90m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration, "non-positive hours fall back to the default")
	assert.True(t, cfg.StrictOperators)
	assert.Equal(t, 90*time.Minute, cfg.ReportRetention)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("IDP_SHARED_SECRET", "x")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigPostgresNeedsURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/insights?sslmode=disable")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/insights?sslmode=disable", cfg.DatabaseDSN())
}
