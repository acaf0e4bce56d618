// Package config provides centralized configuration management for futurescli.
// It loads configuration from multiple sources, validates it, and exposes a
// type-safe API used by the server and the command-line tools.
//
// # Configuration Sources
//
// Configuration is layered in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. A YAML file (FUTURES_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Environment variables (highest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern FUTURES_<SECTION>_<KEY>:
//
//	FUTURES_SERVER_PORT=8080
//	FUTURES_LOGGING_LEVEL=debug
//	FUTURES_DATABENTO_DATASET=GLBX.MDP3
//	FUTURES_ANALYTICS_MATURITY_DAYS=91
//
// # API Key
//
// The Databento key is never written to logs. It is read, in order, from
// FUTURES_DATABENTO_API_KEY, the first line of ~/.databento_api_key and
// DATABENTO_API_KEY:
//
//	key, err := cfg.APIKey()
//	client, err := marketdata.NewClient(marketdata.Config{APIKey: key.Reveal()}, logger)
//
// # Paths
//
// All directories resolve relative to the executable, never the working
// directory:
//
//	paths, err := cfg.ResolvePaths()
//	if err := paths.EnsureDirectories(); err != nil {
//	    return err
//	}
//	out := paths.GetExportPathForRun("continuous", "ES", time.Now(), "csv")
package config
