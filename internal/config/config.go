package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FUTURES_SERVER_PORT.
const EnvPrefix = "FUTURES"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Databento DatabentoConfig `yaml:"databento" envconfig:"DATABENTO"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
}

// SecurityConfig contains request admission configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig overrides the directory layout under the executable.
// Relative paths resolve against the executable directory.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	CacheDir   string `yaml:"cache_dir" envconfig:"CACHE_DIR"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// DatabentoConfig configures the historical market data client.
type DatabentoConfig struct {
	BaseURL       string        `yaml:"base_url" envconfig:"BASE_URL"`
	Dataset       string        `yaml:"dataset" envconfig:"DATASET"`
	APIKey        Secret        `yaml:"api_key" envconfig:"API_KEY"`
	APIKeyFile    string        `yaml:"api_key_file" envconfig:"API_KEY_FILE"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RetryCount    int           `yaml:"retry_count" envconfig:"RETRY_COUNT"`
	MaxConcurrent int           `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT"`
	UseCache      bool          `yaml:"use_cache" envconfig:"USE_CACHE"`
}

// AnalyticsConfig holds defaults for analytics requests that omit them.
type AnalyticsConfig struct {
	AdjustBy       string        `yaml:"adjust_by" envconfig:"ADJUST_BY"`
	MaturityDays   int           `yaml:"maturity_days" envconfig:"MATURITY_DAYS"`
	RiskFreeRate   float64       `yaml:"risk_free_rate" envconfig:"RISK_FREE_RATE"`
	DaysPerYear    float64       `yaml:"days_per_year" envconfig:"DAYS_PER_YEAR"`
	SplineFraction float64       `yaml:"spline_fraction" envconfig:"SPLINE_FRACTION"`
	ATMWeight      float64       `yaml:"atm_weight" envconfig:"ATM_WEIGHT"`
	BarInterval    string        `yaml:"bar_interval" envconfig:"BAR_INTERVAL"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracesExporter string `yaml:"traces_exporter" envconfig:"TRACES_EXPORTER"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, then the first config file
// found, then FUTURES_* environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file; an empty path skips the
// file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override; envconfig leaves the rest alone.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ResolvePaths returns the directory layout with the configured overrides
// applied.
func (c *Config) ResolvePaths() (*Paths, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	return paths.WithOverrides(c.Paths), nil
}

// APIKey returns the configured Databento key, falling back to the key file
// and DATABENTO_API_KEY.
func (c *Config) APIKey() (Secret, error) {
	if c.Databento.APIKey != "" {
		return c.Databento.APIKey, nil
	}
	return LoadAPIKey(c.Databento.APIKeyFile)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive")
	}

	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}

	switch c.Telemetry.TracesExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("invalid traces exporter: %q", c.Telemetry.TracesExporter)
	}

	if c.Analytics.MaturityDays <= 0 {
		return fmt.Errorf("analytics maturity days must be positive")
	}

	if c.Analytics.DaysPerYear <= 0 {
		return fmt.Errorf("analytics days per year must be positive")
	}

	if c.Databento.MaxConcurrent <= 0 {
		return fmt.Errorf("databento max concurrent must be positive")
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		filepath.Join("..", "configs", "config.yaml"),
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20, // 1MB
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 5 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Output:   "stdout",
			FilePath: filepath.Join(DefaultLogsDir, "futures.log"),
		},
		Paths: PathsConfig{
			DataDir:    DefaultDataDir,
			CacheDir:   DefaultCacheDir,
			ExportsDir: DefaultExportsDir,
			LogsDir:    DefaultLogsDir,
		},
		Databento: DatabentoConfig{
			BaseURL:       DefaultDatabentoURL,
			Dataset:       DefaultDataset,
			Timeout:       DefaultHTTPTimeout,
			RetryCount:    3,
			MaxConcurrent: 4,
			UseCache:      true,
		},
		Analytics: AnalyticsConfig{
			AdjustBy:       "close",
			MaturityDays:   DefaultMaturityDays,
			RiskFreeRate:   0.045,
			DaysPerYear:    365,
			SplineFraction: 0.1,
			ATMWeight:      1e6,
			BarInterval:    "1m",
			RequestTimeout: DefaultOperationTimeout,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TracesExporter: "none",
			MetricsEnabled: true,
		},
	}
}
