package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/joho/godotenv"
)

var (
	customLog = logger.NewLogger()
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds application configuration values
type Config struct {
	AppEnv     string
	ServerPort string

	JWTSecret       string
	JWTExpiration   time.Duration
	IDPSharedSecret string
	IDPIssuer       string

	DBDriver     string
	DatabaseDir  string
	DatabaseFile string
	DatabaseURL  string
	DataTable    string

	TemplatePath  string
	WatchTemplate bool

	UploadDir           string
	MaxUploadBytes      int64
	ReportDir           string
	ReportRetention     time.Duration
	ReportPurgeSchedule string

	DefaultRole         string
	BootstrapAdminEmail string

	StrictOperators bool
	CORSOrigins     []string
	AuthRateLimit   int
	AuthRateWindow  time.Duration
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	appEnv := getEnv("APP_ENV", "development")
	if appEnv != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		AppEnv:              appEnv,
		ServerPort:          strings.TrimPrefix(getEnv("SERVER_PORT", "8080"), ":"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		IDPSharedSecret:     getEnv("IDP_SHARED_SECRET", ""),
		IDPIssuer:           getEnv("IDP_ISSUER", ""),
		DBDriver:            strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DatabaseDir:         getEnv("DATABASE_DIRECTORY", "data"),
		DatabaseFile:        getEnv("DATABASE_FILE", "insights.db"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DataTable:           getEnv("DATA_TABLE", "uploaded_data"),
		TemplatePath:        getEnv("TEMPLATE_PATH", "template.xlsx"),
		WatchTemplate:       getBool("WATCH_TEMPLATE", true),
		UploadDir:           getEnv("UPLOAD_DIRECTORY", "uploads"),
		ReportDir:           getEnv("REPORT_DIRECTORY", filepath.Join("uploads", "reports")),
		ReportPurgeSchedule: getEnv("REPORT_PURGE_SCHEDULE", "@every 1h"),
		DefaultRole:         getEnv("DEFAULT_ROLE", "admin"),
		BootstrapAdminEmail: strings.ToLower(getEnv("BOOTSTRAP_ADMIN_EMAIL", "")),
		StrictOperators:     getBool("QUERY_STRICT_OPERATORS", false),
		AuthRateLimit:       getInt("AUTH_RATE_LIMIT", 20),
	}

	// --- Validation and Parsing ---
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable must be set")
	}
	if cfg.IDPSharedSecret == "" {
		return nil, errors.New("IDP_SHARED_SECRET environment variable must be set")
	}
	if cfg.JWTSecret == "!!replace_this_with_a_real_secret_key!!" {
		customLog.Warnln("WARNING: JWT_SECRET is set to the default placeholder!")
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER '%s'", cfg.DBDriver)
	}

	jwtExpHours := getInt("JWT_EXPIRATION_HOURS", 24)
	if jwtExpHours <= 0 {
		customLog.Warnf("Invalid JWT_EXPIRATION_HOURS '%d'. Using default 24h.", jwtExpHours)
		jwtExpHours = 24
	}
	cfg.JWTExpiration = time.Hour * time.Duration(jwtExpHours)

	maxUploadMB := getInt("MAX_UPLOAD_MB", 20)
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	cfg.ReportRetention = getDuration("REPORT_RETENTION", 24*time.Hour)
	cfg.AuthRateWindow = getDuration("AUTH_RATE_WINDOW", time.Minute)

	for _, origin := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, Driver: %s, Template: %s, JWT Exp: %v",
		cfg.ServerPort, cfg.DBDriver, cfg.TemplatePath, cfg.JWTExpiration)
	return cfg, nil
}

// DatabaseDSN returns the data source name handed to sql.Open for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.DBDriver == DriverPostgres {
		return c.DatabaseURL
	}
	dbPath := filepath.Join(c.DatabaseDir, c.DatabaseFile)
	return dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// IsProduction reports whether internal error details must be withheld from clients.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		customLog.Warnf("Invalid %s '%s'. Using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		customLog.Warnf("Invalid %s '%s'. Using default %v.", key, raw, fallback)
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		customLog.Warnf("Invalid %s '%s'. Using default %v.", key, raw, fallback)
		return fallback
	}
	return value
}
