package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"discotrack/internal/cache"
	"discotrack/internal/eventlog"
	"discotrack/internal/jira"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// CacheConfig selects the derived-record store.
type CacheConfig struct {
	Backend cache.Backend
	Connect string
}

// IngestConfig tunes the batch driver.
type IngestConfig struct {
	Workers         int
	FetchRetries    int
	RetryBackoff    time.Duration
	PageSize        int
	IncludeArchived bool
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira         jira.Config
	Fields       eventlog.FieldMap
	Cache        CacheConfig
	Ingest       IngestConfig
	DataPath     string
	LogDir       string
	CacheDir     string
	PipelineFile string
	DefaultJQL   string
	// JiraLocation is the Jira profile timezone used for JQL date literals.
	JiraLocation *time.Location
	// SourceID names the issue-log partition a sync writes to.
	SourceID     string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	fields := eventlog.DefaultFieldMap()
	fields.Health = getEnv("JIRA_HEALTH_FIELD", fields.Health)
	fields.Complexity = getEnv("JIRA_COMPLEXITY_FIELD", "")
	fields.Archived = getEnv("JIRA_ARCHIVED_FIELD", "")

	backend, err := cache.ParseBackend(getEnv("CACHE_BACKEND", string(cache.SQLiteBackend)))
	if err != nil {
		return nil, err
	}
	connect := getEnv("CACHE_DB_CONNECT", "")
	if backend == cache.SQLiteBackend && connect == "" {
		connect = filepath.Join(cacheDir, "discotrack.db")
	}
	if (backend == cache.PostgreSQLBackend || backend == cache.MySQLBackend) && connect == "" {
		return nil, fmt.Errorf("CACHE_DB_CONNECT is required for the %s backend", backend)
	}

	jiraLoc := time.Local
	if tz := getEnv("JIRA_TIMEZONE", ""); tz != "" {
		if jiraLoc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("JIRA_TIMEZONE: %w", err)
		}
	}

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:      getEnv("JIRA_URL", ""),
			Email:        getEnv("JIRA_EMAIL", ""),
			Token:        getEnv("JIRA_TOKEN", ""),
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			GCILB:        getEnv("JIRA_GCILB", ""),
			GCLB:         getEnv("JIRA_GCLB", ""),
			ExtraFields:  customFieldIDs(fields),
			RequestDelay: time.Duration(getEnvInt("JIRA_REQUEST_DELAY_MS", 250)) * time.Millisecond,
		},
		Fields: fields,
		Cache: CacheConfig{
			Backend: backend,
			Connect: connect,
		},
		Ingest: IngestConfig{
			Workers:         max(1, getEnvInt("WORKERS", 4)),
			FetchRetries:    max(0, getEnvInt("FETCH_RETRIES", 3)),
			RetryBackoff:    time.Duration(getEnvInt("FETCH_RETRY_BACKOFF_MS", 1000)) * time.Millisecond,
			PageSize:        max(1, getEnvInt("JIRA_PAGE_SIZE", 100)),
			IncludeArchived: getEnvBool("INCLUDE_ARCHIVED", false),
		},
		DataPath:     dataPath,
		LogDir:       logDir,
		CacheDir:     cacheDir,
		PipelineFile: getEnv("PIPELINE_CONFIG", filepath.Join(dataPath, "pipeline.yaml")),
		DefaultJQL:   getEnv("JIRA_JQL", ""),
		JiraLocation: jiraLoc,
		SourceID:     getEnv("SOURCE_ID", "default"),
	}

	return cfg, nil
}

// customFieldIDs returns the configured fields that must be requested explicitly.
func customFieldIDs(fields eventlog.FieldMap) []string {
	var ids []string
	for _, f := range []string{fields.Health, fields.Complexity, fields.Archived} {
		if strings.HasPrefix(f, "customfield_") {
			ids = append(ids, f)
		}
	}
	return ids
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
