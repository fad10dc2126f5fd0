// Package testutil provides golden file helpers for extractor tests.
package testutil

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// CompareGoldenJSON encodes actual as indented JSON and compares it structurally with the
// golden file, so key order and whitespace in the file do not matter. With -update the
// golden file is rewritten instead.
func CompareGoldenJSON(t *testing.T, goldenPath string, actual any) {
	t.Helper()

	encoded, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		t.Fatalf("Failed to encode actual value: %v", err)
	}

	if *update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			t.Fatalf("Failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, append(encoded, '\n'), 0o644); err != nil {
			t.Fatalf("Failed to update golden file %s: %v", goldenPath, err)
		}
		return
	}

	content, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("Failed to read golden file %s: %v", goldenPath, err)
	}

	var want, got any
	if err := json.Unmarshal(content, &want); err != nil {
		t.Fatalf("Golden file %s is not valid JSON: %v", goldenPath, err)
	}
	if err := json.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("Failed to decode actual value: %v", err)
	}

	if !reflect.DeepEqual(want, got) {
		t.Errorf("Golden file mismatch for %s\nExpected:\n%s\nActual:\n%s", goldenPath, content, encoded)
	}
}
