package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrNoAPIKey is returned when no Databento API key can be found.
var ErrNoAPIKey = errors.New("no databento API key: set " + APIKeyEnvVar + " or write it to ~/" + APIKeyFileName)

// Secret is a string that never prints its value. Use Reveal to get it.
type Secret string

// String replaces every non-space rune with '*'.
func (s Secret) String() string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		return '*'
	}, string(s))
}

// GoString masks %#v as well.
func (s Secret) GoString() string {
	return s.String()
}

// LogValue masks the secret in structured logs.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// Reveal returns the actual value.
func (s Secret) Reveal() string {
	return string(s)
}

// DefaultAPIKeyPath is ~/.databento_api_key.
func DefaultAPIKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, APIKeyFileName), nil
}

// LoadAPIKey reads the key from the first line of path (the default key
// file when empty). A missing file falls back to DATABENTO_API_KEY. Keep
// the file readable only by its owner.
func LoadAPIKey(path string) (Secret, error) {
	if path == "" {
		p, err := DefaultAPIKeyPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	key, err := readFirstLine(path)
	switch {
	case err == nil && key != "":
		return Secret(key), nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read API key file: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); key != "" {
		return Secret(key), nil
	}
	return "", ErrNoAPIKey
}

// SaveAPIKey writes key to path (the default key file when empty),
// readable only by its owner, and returns the path written.
func SaveAPIKey(path string, key Secret) (string, error) {
	if strings.TrimSpace(key.Reveal()) == "" {
		return "", errors.New("empty API key")
	}
	if path == "" {
		p, err := DefaultAPIKeyPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(key.Reveal())+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write API key file: %w", err)
	}
	return path, nil
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", scanner.Err()
}

// TempEnv sets the given environment variables and returns a func that
// restores their previous values, unsetting those that did not exist.
func TempEnv(vars map[string]string) (restore func()) {
	type previous struct {
		value  string
		exists bool
	}
	saved := make(map[string]previous, len(vars))
	for k, v := range vars {
		old, ok := os.LookupEnv(k)
		saved[k] = previous{value: old, exists: ok}
		os.Setenv(k, v)
	}
	return func() {
		for k, p := range saved {
			if p.exists {
				os.Setenv(k, p.value)
			} else {
				os.Unsetenv(k)
			}
		}
	}
}
