package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

type testTable struct {
	Name  string   `json:"name" yaml:"name"`
	Hosts []string `json:"hosts" yaml:"hosts"`
	Delay int      `json:"delay" yaml:"delay"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		data     []byte
		expected string
	}{
		{name: "JSON file extension", path: "sites.json", data: []byte(`{"test": true}`), expected: "json"},
		{name: "YAML file extension", path: "sites.yaml", data: []byte(`test: true`), expected: "yaml"},
		{name: "YML file extension", path: "sites.YML", data: []byte(`test: true`), expected: "yaml"},
		{name: "JSON content detection", path: "sites", data: []byte(`{"test": true}`), expected: "json"},
		{name: "JSON array content detection", path: "sites", data: []byte(`[{"test": true}]`), expected: "json"},
		{name: "YAML content fallback", path: "sites", data: []byte(`test: true`), expected: "yaml"},
		{name: "extension wins over content", path: "sites.json", data: []byte(`test: true`), expected: "json"},
		{name: "leading whitespace", path: "sites", data: []byte("  \n{\"test\": true}"), expected: "json"},
		{name: "empty content defaults to YAML", path: "sites", data: nil, expected: "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := detectFormat(tt.path, tt.data); result != tt.expected {
				t.Errorf("detectFormat(%q, %q) = %q, want %q", tt.path, string(tt.data), result, tt.expected)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		filename    string
		content     string
		wantName    string
		errorSubstr string
	}{
		{
			name:     "JSON",
			filename: "sites.json",
			content:  `{"name": "json-table", "hosts": ["a.com", "b.com"], "delay": 2}`,
			wantName: "json-table",
		},
		{
			name:     "YAML",
			filename: "sites.yaml",
			content:  "name: yaml-table\nhosts:\n  - a.com\n  - b.com\ndelay: 2\n",
			wantName: "yaml-table",
		},
		{
			name:        "invalid JSON",
			filename:    "invalid.json",
			content:     `{"name": "test", invalid}`,
			errorSubstr: "failed to parse JSON",
		},
		{
			name:        "invalid YAML",
			filename:    "invalid.yaml",
			content:     "name: test\n  invalid: : yaml",
			errorSubstr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.filename, tt.content)

			var table testTable
			err := loadFromFile(path, &table)
			if tt.errorSubstr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("loadFromFile() error = %v, should contain %q", err, tt.errorSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadFromFile() error = %v", err)
			}
			if table.Name != tt.wantName || len(table.Hosts) != 2 || table.Delay != 2 {
				t.Errorf("loadFromFile() = %+v", table)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		var table testTable
		err := loadFromFile(filepath.Join(dir, "nope.yaml"), &table)
		if err == nil || !strings.Contains(err.Error(), "failed to read file") {
			t.Errorf("loadFromFile() error = %v", err)
		}
	})
}

func TestLoadFromURL(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errorSubstr string
	}{
		{name: "JSON body", status: http.StatusOK, body: `{"name": "remote", "hosts": ["x.com"]}`},
		{name: "YAML body", status: http.StatusOK, body: "name: remote\nhosts: [x.com]\n"},
		{name: "HTTP 404", status: http.StatusNotFound, errorSubstr: "HTTP error"},
		{name: "broken body", status: http.StatusOK, body: `{invalid json}`, errorSubstr: "failed to decode configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var table testTable
			err := loadFromURL(server.URL, 5*time.Second, &table)
			if tt.errorSubstr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("loadFromURL() error = %v, should contain %q", err, tt.errorSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadFromURL() error = %v", err)
			}
			if table.Name != "remote" || len(table.Hosts) != 1 {
				t.Errorf("loadFromURL() = %+v", table)
			}
		})
	}
}

func TestLoadWithEmbedded(t *testing.T) {
	fsys := fstest.MapFS{
		"sites.yaml": &fstest.MapFile{Data: []byte("name: embedded\nhosts: [e.com]\n")},
	}
	localFile := writeFile(t, t.TempDir(), "override.yaml", "name: override\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "remote"}`))
	}))
	defer server.Close()

	tests := []struct {
		name       string
		localPath  string
		wantSource Source
		wantName   string
	}{
		{name: "no override", wantSource: SourceEmbedded, wantName: "embedded"},
		{name: "override present", localPath: localFile, wantSource: SourceLocal, wantName: "override"},
		{name: "override missing", localPath: "/nonexistent/sites.yaml", wantSource: SourceEmbedded, wantName: "embedded"},
		{name: "remote override", localPath: server.URL + "/sites.json", wantSource: SourceRemote, wantName: "remote"},
		{name: "remote unreachable", localPath: "http://127.0.0.1:1/sites.yaml", wantSource: SourceEmbedded, wantName: "embedded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var table testTable
			source, err := LoadWithEmbedded(tt.localPath, fsys, "sites.yaml", &table)
			if err != nil {
				t.Fatalf("LoadWithEmbedded() error = %v", err)
			}
			if source != tt.wantSource || table.Name != tt.wantName {
				t.Errorf("LoadWithEmbedded() = %q/%q, want %q/%q", source, table.Name, tt.wantSource, tt.wantName)
			}
		})
	}

	var table testTable
	if _, err := LoadWithEmbedded("", fsys, "missing.yaml", &table); err == nil {
		t.Error("expected error for missing embedded file")
	}
}
