package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "futurescli"
	AppVersion = "1.0.0"

	// Market data
	DefaultDatabentoURL = "https://hist.databento.com"
	DefaultDataset      = "GLBX.MDP3"
	APIKeyFileName      = ".databento_api_key"
	APIKeyEnvVar        = "DATABENTO_API_KEY"

	// Analytics
	DefaultMaturityDays = 91

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout      = 5 * time.Minute
	DefaultOperationTimeout = 2 * time.Minute

	// File Paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultCacheDir   = "data/cache"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"

	// Log Settings
	DefaultLogLevel = "info"
)
