// Package config loads auxiliary data tables (site selectors and the like) from local
// files, remote URLs or embedded defaults.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	httputil "github.com/lepinkainen/recipe-forge/pkg/http"
)

// Source names where a table was loaded from
type Source string

// Load sources
const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceEmbedded Source = "embedded"
)

// RemoteTimeout bounds fetching a table from a URL
const RemoteTimeout = 10 * time.Second

// LoadWithEmbedded tries location first and falls back to the named file in fsys.
// location is either a local path or an http(s) URL. It reports which source was used.
func LoadWithEmbedded(location string, fsys fs.FS, name string, target any) (Source, error) {
	switch {
	case location == "":
	case isRemote(location):
		err := loadFromURL(location, RemoteTimeout, target)
		if err == nil {
			return SourceRemote, nil
		}
		slog.Warn("Failed to fetch remote table, falling back to embedded copy", "url", location, "error", err)
	default:
		err := loadFromFile(location, target)
		if err == nil {
			return SourceLocal, nil
		}
		slog.Warn("Failed to load local file, falling back to embedded copy", "path", location, "error", err)
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded %s: %w", name, err)
	}
	if err := decode(name, data, target); err != nil {
		return "", err
	}
	return SourceEmbedded, nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// detectFormat returns "json" or "yaml". The file extension wins; otherwise content that
// starts with an object or array is treated as JSON.
func detectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json"
	}
	return "yaml"
}

func decode(path string, data []byte, target any) error {
	if detectFormat(path, data) == "json" {
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromURL loads configuration from a remote URL using shared HTTP utilities
func loadFromURL(url string, timeout time.Duration, target any) error {
	httpConfig := httputil.DefaultConfig()
	httpConfig.Timeout = timeout
	httpConfig.MaxRetries = 0

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := httputil.NewClient(httpConfig)
	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch config from URL: %w", err)
	}

	if err := httputil.EnsureStatusOK(resp); err != nil {
		resp.Body.Close()
		return fmt.Errorf("HTTP error fetching config: %w", err)
	}

	data, _, err := httputil.ReadBody(resp, 0)
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := decode(url, data, target); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// loadFromFile loads a JSON or YAML file into target
func loadFromFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read file: %w", err)
		}
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return decode(path, data, target)
}
