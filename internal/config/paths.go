package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths contains all the application paths
type Paths struct {
	ExecutableDir string
	DataDir       string
	CacheDir      string
	ExportsDir    string
	LogsDir       string
}

// GetPaths returns the application paths relative to the executable location.
// Paths never depend on the current working directory.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths lays out the default directories under root:
//
//	root/
//	  data/
//	    cache/     (downloaded market data)
//	    exports/   (CSV and XLSX outputs)
//	  logs/
func NewPaths(root string) *Paths {
	dataDir := filepath.Join(root, DefaultDataDir)
	return &Paths{
		ExecutableDir: root,
		DataDir:       dataDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		ExportsDir:    filepath.Join(dataDir, "exports"),
		LogsDir:       filepath.Join(root, DefaultLogsDir),
	}
}

// WithOverrides returns a copy of p with the non-empty directories of cfg.
// Relative overrides resolve against the executable directory.
func (p *Paths) WithOverrides(cfg PathsConfig) *Paths {
	out := *p
	resolve := func(dir, fallback string) string {
		if dir == "" {
			return fallback
		}
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(p.ExecutableDir, filepath.FromSlash(dir))
	}
	out.DataDir = resolve(cfg.DataDir, p.DataDir)
	out.CacheDir = resolve(cfg.CacheDir, p.CacheDir)
	out.ExportsDir = resolve(cfg.ExportsDir, p.ExportsDir)
	out.LogsDir = resolve(cfg.LogsDir, p.LogsDir)
	return &out
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.CacheDir,
		p.ExportsDir,
		p.LogsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetExportPath returns the path for an exported file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetExportPathForRun names an export after its kind, symbol and run date,
// e.g. continuous_ES_20250314.csv.
func (p *Paths) GetExportPathForRun(kind, symbol string, date time.Time, ext string) string {
	return filepath.Join(p.ExportsDir, ExportFilename(kind, symbol, date, ext))
}

// ExportFilename is the base name GetExportPathForRun uses. It also names
// HTTP downloads.
func ExportFilename(kind, symbol string, date time.Time, ext string) string {
	symbol = strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_").Replace(symbol)
	return fmt.Sprintf("%s_%s_%s.%s", kind, symbol, date.Format("20060102"), strings.TrimPrefix(ext, "."))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved directories for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("cache", p.CacheDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		))
}
