// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for databases and the default NAV file (always absolute)
	NavsCSV   string // CSV file imported into the NAV store
	LogLevel  string
	Port      int
	DevMode   bool
	CacheTTL  time.Duration
	Analysis  AnalysisConfig
	Schedule  ScheduleConfig
	Publisher PublisherConfig
}

// AnalysisConfig holds the parameters of a report run.
type AnalysisConfig struct {
	TradingDays int      `yaml:"trading_days_per_year" json:"trading_days_per_year"`
	ShortWindow int      `yaml:"rolling_window_short" json:"rolling_window_short"`
	LongWindow  int      `yaml:"rolling_window_long" json:"rolling_window_long"`
	Benchmark   string   `yaml:"benchmark_instrument_name" json:"benchmark_instrument_name"`
	Selected    []string `yaml:"selected_instruments" json:"selected_instruments"`
	DateColumn  string   `yaml:"date_column" json:"date_column,omitempty"`
}

// ScheduleConfig holds cron expressions for background jobs. Empty disables a job.
type ScheduleConfig struct {
	ImportCron      string
	PublishCron     string
	BackupCron      string
	MaintenanceCron string
}

// PublisherConfig holds S3-compatible object storage settings for report publishing.
type PublisherConfig struct {
	Endpoint        string // Empty uses AWS; set for R2/MinIO
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // Backup retention; 0 keeps every backup
}

// Enabled reports whether a bucket is configured.
func (p PublisherConfig) Enabled() bool {
	return p.Bucket != ""
}

// DefaultAnalysis returns the standard report parameters.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		TradingDays: 252,
		ShortWindow: 21,
		LongWindow:  60,
		Benchmark:   "S&P 500",
		Selected:    []string{"BERKSHIRE HATHAWAY INC", "TIGER GLOBAL MANAGEMENT LLC"},
	}
}

// Validate checks the analysis parameters.
func (a AnalysisConfig) Validate() error {
	if a.TradingDays <= 0 {
		return fmt.Errorf("trading days per year must be positive, got %d", a.TradingDays)
	}
	if a.ShortWindow <= 0 || a.LongWindow <= 0 {
		return fmt.Errorf("rolling windows must be positive, got %d and %d", a.ShortWindow, a.LongWindow)
	}
	if a.ShortWindow > a.LongWindow {
		return fmt.Errorf("short window %d exceeds long window %d", a.ShortWindow, a.LongWindow)
	}
	if strings.TrimSpace(a.Benchmark) == "" {
		return fmt.Errorf("benchmark instrument name is required")
	}
	if slices.Contains(a.Selected, a.Benchmark) {
		return fmt.Errorf("benchmark %q cannot be a selected instrument", a.Benchmark)
	}
	return nil
}

// LoadAnalysisFile overlays the analysis parameters found in a YAML file onto base.
// Keys missing from the file keep their base value.
func LoadAnalysisFile(path string, base AnalysisConfig) (AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AnalysisConfig{}, fmt.Errorf("failed to read analysis config: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AnalysisConfig{}, fmt.Errorf("failed to parse analysis config %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads configuration from .env, environment variables and the optional
// YAML analysis file named by ANALYSIS_CONFIG. Environment variables win over the file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("WHALEWATCH_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	analysis := DefaultAnalysis()
	if path := getEnv("ANALYSIS_CONFIG", ""); path != "" {
		analysis, err = LoadAnalysisFile(path, analysis)
		if err != nil {
			return nil, err
		}
	}
	analysis.TradingDays = getEnvAsInt("TRADING_DAYS_PER_YEAR", analysis.TradingDays)
	analysis.ShortWindow = getEnvAsInt("ROLLING_WINDOW_SHORT", analysis.ShortWindow)
	analysis.LongWindow = getEnvAsInt("ROLLING_WINDOW_LONG", analysis.LongWindow)
	analysis.Benchmark = getEnv("BENCHMARK_INSTRUMENT", analysis.Benchmark)
	analysis.Selected = getEnvAsList("SELECTED_INSTRUMENTS", analysis.Selected)
	analysis.DateColumn = getEnv("NAVS_DATE_COLUMN", analysis.DateColumn)

	navsCSV := getEnv("NAVS_CSV", filepath.Join(absDataDir, "whale_navs.csv"))
	if navsCSV, err = filepath.Abs(navsCSV); err != nil {
		return nil, fmt.Errorf("failed to resolve NAV file path: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		NavsCSV:  navsCSV,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		CacheTTL: getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		Analysis: analysis,
		Schedule: ScheduleConfig{
			ImportCron:      getEnv("IMPORT_CRON", "0 30 6 * * *"),
			PublishCron:     getEnv("PUBLISH_CRON", ""),
			BackupCron:      getEnv("BACKUP_CRON", ""),
			MaintenanceCron: getEnv("MAINTENANCE_CRON", "0 0 4 * * SUN"),
		},
		Publisher: PublisherConfig{
			Endpoint:        getEnv("PUBLISH_ENDPOINT", ""),
			Region:          getEnv("PUBLISH_REGION", "auto"),
			Bucket:          getEnv("PUBLISH_BUCKET", ""),
			Prefix:          getEnv("PUBLISH_PREFIX", "reports"),
			AccessKeyID:     getEnv("PUBLISH_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("PUBLISH_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("invalid analysis config: %w", err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}
	if c.Publisher.RetentionDays < 0 {
		return fmt.Errorf("backup retention days cannot be negative")
	}
	if c.Publisher.Enabled() && (c.Publisher.AccessKeyID == "") != (c.Publisher.SecretAccessKey == "") {
		return fmt.Errorf("publisher credentials need both an access key id and a secret")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits on ";" since fund names may contain commas.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
