package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/cache"
	"github.com/lepinkainen/recipe-forge/pkg/database"
	"github.com/lepinkainen/recipe-forge/pkg/pipeline"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

func TestNewImportOutput(t *testing.T) {
	res := &pipeline.Result{
		ID:         "id-1",
		URL:        "https://example.com/soup",
		Status:     recipe.StatusComplete,
		Method:     recipe.MethodJSONLD,
		Confidence: 0.9,
		Recipe:     &recipe.ScrapedRecipe{Title: "Soup"},
	}

	out := newImportOutput("https://example.com/soup?utm=1", res, nil)
	if out.Error != nil {
		t.Fatalf("unexpected error field: %+v", out.Error)
	}
	if out.URL != res.URL || out.Recipe.Title != "Soup" || out.Method != recipe.MethodJSONLD {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestNewImportOutputCarriesPartial(t *testing.T) {
	partial := &pipeline.Result{URL: "https://example.com/x", Recipe: &recipe.ScrapedRecipe{Title: "Half"}}
	err := &pipeline.ImportError{Code: pipeline.CodeAITimeout, Partial: partial, Err: ai.ErrModelTimeout}

	out := newImportOutput("https://example.com/x", nil, err)
	if out.Error == nil || out.Error.Code != pipeline.CodeAITimeout {
		t.Fatalf("expected ai_timeout description, got %+v", out.Error)
	}
	if out.Recipe == nil || out.Recipe.Title != "Half" {
		t.Errorf("expected partial recipe, got %+v", out.Recipe)
	}

	out = newImportOutput("https://example.com/y", nil, errors.New("boom"))
	if out.URL != "https://example.com/y" || out.Recipe != nil {
		t.Errorf("unexpected output for plain error: %+v", out)
	}
}

func TestWrite(t *testing.T) {
	out := importOutput{URL: "https://example.com/soup", Recipe: &recipe.ScrapedRecipe{Title: "Soup", Servings: 2}}

	var buf bytes.Buffer
	if err := write(&buf, "json", out); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["url"] != "https://example.com/soup" {
		t.Errorf("unexpected url: %v", decoded["url"])
	}

	buf.Reset()
	if err := write(&buf, "yaml", out); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	for _, want := range []string{"url: https://example.com/soup", "title: Soup", "servings: 2"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("YAML missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunCacheCleanupRemovesExpiredRateLimits(t *testing.T) {
	ctx := context.Background()
	dbConfig := database.Config{Path: filepath.Join(t.TempDir(), "recipe-forge.db")}

	cacheDB, err := database.NewDatabase(dbConfig)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	cacheStore, err := cache.NewSQLiteStore(cacheDB)
	if err != nil {
		t.Fatalf("cache.NewSQLiteStore() error = %v", err)
	}
	limitDB, err := database.NewDatabase(dbConfig)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	limitStore, err := ratelimit.NewSQLiteStore(limitDB)
	if err != nil {
		t.Fatalf("ratelimit.NewSQLiteStore() error = %v", err)
	}

	a := &app{db: cacheDB, cache: cache.New(cacheStore, 24*time.Hour), store: limitStore}
	t.Cleanup(a.Close)

	records := []struct {
		key       ratelimit.Key
		expiresAt time.Time
	}{
		{ratelimit.Key{UserID: "gone", Action: ratelimit.ActionImport}, time.Now().Add(-time.Hour)},
		{ratelimit.Key{UserID: "active", Action: ratelimit.ActionConversion}, time.Now().Add(7 * 24 * time.Hour)},
	}
	for _, r := range records {
		err := limitStore.Update(ctx, r.key, func(info *ratelimit.Info) error {
			info.DailyCount = 3
			info.ExpiresAt = r.expiresAt
			return nil
		})
		if err != nil {
			t.Fatalf("Update(%s) error = %v", r.key.UserID, err)
		}
	}

	var buf bytes.Buffer
	if err := runCacheCleanup(ctx, a, &buf); err != nil {
		t.Fatalf("runCacheCleanup() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Removed 1 expired rate limit records") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	for _, r := range records {
		expected := 3
		if r.key.UserID == "gone" {
			expected = 0
		}
		err := limitStore.Update(ctx, r.key, func(info *ratelimit.Info) error {
			if info.DailyCount != expected {
				t.Errorf("%s: DailyCount = %d, expected %d", r.key.UserID, info.DailyCount, expected)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update(%s) error = %v", r.key.UserID, err)
		}
	}
}
