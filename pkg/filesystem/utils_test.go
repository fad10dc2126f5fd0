package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDirectoryExists(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		filePath string
		checkDir string
	}{
		{name: "current directory", filePath: "recipes.db"},
		{name: "single level", filePath: filepath.Join(tempDir, "data", "recipes.db"), checkDir: filepath.Join(tempDir, "data")},
		{name: "nested", filePath: filepath.Join(tempDir, "a", "b", "c", "cache.db"), checkDir: filepath.Join(tempDir, "a", "b", "c")},
		{name: "already exists", filePath: filepath.Join(tempDir, "data", "other.db"), checkDir: filepath.Join(tempDir, "data")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := EnsureDirectoryExists(tt.filePath); err != nil {
				t.Fatalf("EnsureDirectoryExists(%q) error = %v", tt.filePath, err)
			}
			if tt.checkDir == "" {
				return
			}
			info, err := os.Stat(tt.checkDir)
			if err != nil || !info.IsDir() {
				t.Errorf("directory %q was not created", tt.checkDir)
			}
		})
	}
}

func TestEnsureDirectoryExistsBlockedByFile(t *testing.T) {
	tempDir := t.TempDir()
	blocker := filepath.Join(tempDir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EnsureDirectoryExists(filepath.Join(blocker, "sub", "file.db")); err == nil {
		t.Error("expected an error when a file is in the way")
	}
}

func TestResolvePath(t *testing.T) {
	tempDir := t.TempDir()
	existing := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(existing, []byte("environment: staging\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := ResolvePath(existing); got != existing {
		t.Errorf("ResolvePath(absolute) = %q, expected %q", got, existing)
	}
	if got := ResolvePath(""); got != "" {
		t.Errorf("ResolvePath(\"\") = %q, expected empty", got)
	}
	if got := ResolvePath("definitely-missing-config.yaml"); got != "definitely-missing-config.yaml" {
		t.Errorf("ResolvePath(missing) = %q, expected the name unchanged", got)
	}
}

func TestGetDefaultPath(t *testing.T) {
	got, err := GetDefaultPath("recipe-forge.db")
	if err != nil {
		t.Fatalf("GetDefaultPath() error = %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "recipe-forge.db" {
		t.Errorf("GetDefaultPath() = %q", got)
	}
}
