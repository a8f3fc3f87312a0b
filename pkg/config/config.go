// Package config loads process-wide settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/datamesa/assistant/pkg/contracts"
)

// Settings is the immutable process configuration, initialized once.
type Settings struct {
	// Metadata search
	SearchEndpoint         string
	SearchAPIKey           string
	SearchIndexField       string
	SearchIndexTable       string
	SearchIndexRelation    string
	SearchCacheTTLSeconds  int

	// LLM
	AnthropicModel string
	MaxTokens      int64

	// Database
	DBBackend         contracts.Backend
	SQLServerConnStr  string
	DuckDBPath        string

	// Available data
	DataDir string

	// Turn defaults (hard caps; the host may lower but not raise them)
	DefaultMaxRows        int
	DefaultMaxCols        int
	DefaultTimeoutSeconds int
	DefaultDebug          bool

	// Orchestration
	MaxRetryAttempts  int
	TemplateThreshold float64
	SandboxTimeoutSec int

	// Server
	ListenAddr  string
	MetricsAddr string
}

// Load reads settings from the environment. A .env file in the working
// directory is merged in when present.
func Load() Settings {
	_ = godotenv.Load()

	return Settings{
		SearchEndpoint:        getEnv("SEARCH_ENDPOINT", ""),
		SearchAPIKey:          getEnv("SEARCH_API_KEY", ""),
		SearchIndexField:      getEnv("SEARCH_INDEX_FIELD", "meta_data_field"),
		SearchIndexTable:      getEnv("SEARCH_INDEX_TABLE", "meta_data_table"),
		SearchIndexRelation:   getEnv("SEARCH_INDEX_RELATIONSHIP", "meta_data_relationship"),
		SearchCacheTTLSeconds: getEnvInt("SEARCH_CACHE_TTL_SECONDS", 300),

		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		MaxTokens:      int64(getEnvInt("LLM_MAX_TOKENS", 4096)),

		DBBackend:        contracts.Backend(getEnv("DB_BACKEND", string(contracts.BackendSQLServer))),
		SQLServerConnStr: getEnv("SQLSERVER_CONN_STR", ""),
		DuckDBPath:       getEnv("DUCKDB_PATH", "data/app.duckdb"),

		DataDir: getEnv("AVAILABLE_DATA_DIR", "data/available_json"),

		DefaultMaxRows:        getEnvInt("UI_DEFAULT_MAX_ROWS", 50),
		DefaultMaxCols:        getEnvInt("UI_DEFAULT_MAX_COLS", 20),
		DefaultTimeoutSeconds: getEnvInt("UI_DEFAULT_TIMEOUT_SECONDS", 20),
		DefaultDebug:          getEnvBool("UI_DEFAULT_DEBUG", false),

		MaxRetryAttempts:  getEnvInt("MAX_RETRY_ATTEMPTS", 5),
		TemplateThreshold: getEnvFloat("TEMPLATE_MATCH_THRESHOLD", 0.72),
		SandboxTimeoutSec: getEnvInt("SANDBOX_TIMEOUT_SECONDS", 5),

		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:3020"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:8080"),
	}
}

// Validate reports fatal configuration problems before any turn starts.
func (s Settings) Validate() error {
	switch s.DBBackend {
	case contracts.BackendSQLServer:
		if s.SQLServerConnStr == "" {
			return fmt.Errorf("%w: SQLSERVER_CONN_STR is required for the sqlserver backend", contracts.ErrConfig)
		}
	case contracts.BackendDuckDB:
		if s.DuckDBPath == "" {
			return fmt.Errorf("%w: DUCKDB_PATH is required for the duckdb backend", contracts.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown DB_BACKEND %q", contracts.ErrConfig, s.DBBackend)
	}
	if s.MaxRetryAttempts < 1 {
		return fmt.Errorf("%w: MAX_RETRY_ATTEMPTS must be >= 1", contracts.ErrConfig)
	}
	if s.DefaultMaxRows < 1 || s.DefaultMaxCols < 1 {
		return fmt.Errorf("%w: row/column caps must be >= 1", contracts.ErrConfig)
	}
	if s.TemplateThreshold <= 0 || s.TemplateThreshold > 1 {
		return fmt.Errorf("%w: TEMPLATE_MATCH_THRESHOLD must be in (0,1]", contracts.ErrConfig)
	}
	return nil
}

// DefaultUI builds the per-turn settings from the process defaults.
func (s Settings) DefaultUI() contracts.UISettings {
	return contracts.UISettings{
		Debug:          s.DefaultDebug,
		MaxRows:        s.DefaultMaxRows,
		MaxCols:        s.DefaultMaxCols,
		MaxExecSeconds: s.DefaultTimeoutSeconds,
		Backend:        s.DBBackend,
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
