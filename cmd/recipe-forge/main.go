// Package main provides the CLI entry point for recipe-forge.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/recipe-forge/internal/config"
	"github.com/lepinkainen/recipe-forge/pkg/database"
	"github.com/lepinkainen/recipe-forge/pkg/metrics"
	"github.com/lepinkainen/recipe-forge/pkg/pipeline"
	"github.com/lepinkainen/recipe-forge/pkg/preview"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/server"
)

var version = "dev"

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Import struct {
		URL      string `arg:"" help:"Recipe page URL"`
		HTMLFile string `help:"Use already fetched HTML from this file instead of downloading the page" type:"existingfile"`
		Format   string `help:"Output format" enum:"json,yaml" default:"json" short:"f"`
		User     string `help:"User ID the import is attributed to"`
	} `cmd:"import" help:"Import a recipe from a URL."`

	Convert struct {
		File   string `arg:"" help:"Recipe JSON file" type:"existingfile"`
		User   string `help:"User ID charged for the conversion" required:""`
		Format string `help:"Output format" enum:"json,yaml" default:"json" short:"f"`
	} `cmd:"convert" help:"Rewrite a recipe in a kid-friendly form."`

	Serve struct {
		Addr string `help:"Listen address, overrides server.addr"`
	} `cmd:"serve" help:"Run the HTTP API."`

	Preview struct {
		Limit int `help:"Maximum number of cached recipes" default:"50"`
		Index int `help:"Output YAML for specific item index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Browse cached recipes interactively."`

	Cache struct {
		Stats   struct{} `cmd:"stats" help:"Show recipe cache statistics."`
		Cleanup struct{} `cmd:"cleanup" help:"Delete expired cache entries and rate limit records."`
	} `cmd:"cache" help:"Recipe cache maintenance."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("recipe-forge"),
		kong.Description("Import recipes from web pages with structured data, site scrapers and an AI fallback."),
	)

	// Configure logging level based on debug flag
	if CLI.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else if ctx.Command() == "serve" {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	} else {
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(sigCtx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	switch ctx.Command() {
	case "import <url>":
		err = runImport(sigCtx, a, os.Stdout)
	case "convert <file>":
		err = runConvert(sigCtx, a, os.Stdout)
	case "serve":
		err = runServe(sigCtx, a)
	case "preview":
		err = runPreview(sigCtx, a)
	case "cache stats":
		err = runCacheStats(sigCtx, a, os.Stdout)
	case "cache cleanup":
		err = runCacheCleanup(sigCtx, a, os.Stdout)
	default:
		panic(ctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		a.Close()
		os.Exit(1)
	}
}

// importOutput is the import result as written to stdout
type importOutput struct {
	ID         string                `json:"id,omitempty" yaml:"id,omitempty"`
	URL        string                `json:"url" yaml:"url"`
	Status     recipe.Status         `json:"status,omitempty" yaml:"status,omitempty"`
	Method     recipe.Method         `json:"method,omitempty" yaml:"method,omitempty"`
	Confidence float64               `json:"confidence" yaml:"confidence"`
	Cached     bool                  `json:"cached" yaml:"cached"`
	Issues     []string              `json:"issues,omitempty" yaml:"issues,omitempty"`
	Recipe     *recipe.ScrapedRecipe `json:"recipe,omitempty" yaml:"recipe,omitempty"`
	Error      *pipeline.Description `json:"error,omitempty" yaml:"error,omitempty"`
}

func newImportOutput(rawURL string, res *pipeline.Result, err error) importOutput {
	out := importOutput{URL: rawURL}
	if err != nil {
		desc := pipeline.Describe(err)
		out.Error = &desc
		var importErr *pipeline.ImportError
		if errors.As(err, &importErr) && importErr.Partial != nil {
			res = importErr.Partial
		}
	}
	if res != nil {
		out.ID = res.ID
		out.URL = res.URL
		out.Status = res.Status
		out.Method = res.Method
		out.Confidence = res.Confidence
		out.Cached = res.Cached
		out.Issues = res.Issues
		out.Recipe = res.Recipe
	}
	return out
}

func runImport(ctx context.Context, a *app, w io.Writer) error {
	req := pipeline.Request{URL: CLI.Import.URL, UserID: CLI.Import.User}
	if CLI.Import.HTMLFile != "" {
		content, err := os.ReadFile(CLI.Import.HTMLFile)
		if err != nil {
			return fmt.Errorf("failed to read HTML file: %w", err)
		}
		req.HTML = string(content)
	}

	res, err := a.importer.Import(ctx, req)
	if writeErr := write(w, CLI.Import.Format, newImportOutput(req.URL, res, err)); writeErr != nil {
		return writeErr
	}
	return err
}

func runConvert(ctx context.Context, a *app, w io.Writer) error {
	content, err := os.ReadFile(CLI.Convert.File)
	if err != nil {
		return fmt.Errorf("failed to read recipe file: %w", err)
	}

	var r recipe.ScrapedRecipe
	if err := json.Unmarshal(content, &r); err != nil {
		return fmt.Errorf("failed to decode recipe file: %w", err)
	}

	converted, err := a.converter.Convert(ctx, CLI.Convert.User, r)
	if err != nil {
		desc := pipeline.Describe(err)
		if writeErr := write(w, CLI.Convert.Format, map[string]any{"error": desc}); writeErr != nil {
			return writeErr
		}
		return err
	}
	return write(w, CLI.Convert.Format, converted)
}

func runServe(ctx context.Context, a *app) error {
	metrics.Init(version, a.cfg.Environment)

	addr := a.cfg.Server.Addr
	if CLI.Serve.Addr != "" {
		addr = CLI.Serve.Addr
	}

	srv := server.New(a.importer, a.converter, a.limiter)
	return srv.Run(ctx, addr)
}

func runPreview(ctx context.Context, a *app) error {
	entries, err := a.cache.List(ctx, CLI.Preview.Limit)
	if err != nil {
		return fmt.Errorf("failed to list cached recipes: %w", err)
	}

	// If index is specified, output YAML directly to stdout
	if CLI.Preview.Index >= 0 {
		if CLI.Preview.Index >= len(entries) {
			return fmt.Errorf("index %d out of range, %d cached recipes", CLI.Preview.Index, len(entries))
		}
		fmt.Print(preview.FormatYAMLItem(entries[CLI.Preview.Index]))
		return nil
	}

	return preview.Run(entries, a.cfg.Cache.Backend)
}

func runCacheStats(ctx context.Context, a *app, w io.Writer) error {
	stats, err := a.cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	out := map[string]any{"cache": stats}
	if a.db != nil {
		info, err := database.GetDatabaseInfo(a.db)
		if err != nil {
			slog.Warn("Failed to read database info", "error", err)
		} else {
			out["database"] = info
		}
	}
	return write(w, "json", out)
}

func runCacheCleanup(ctx context.Context, a *app, w io.Writer) error {
	removed, err := a.cache.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up cache: %w", err)
	}
	fmt.Fprintf(w, "Removed %d expired recipes\n", removed)

	if cleaner, ok := a.store.(ratelimit.Cleaner); ok {
		expired, err := cleaner.CleanupExpired(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("failed to clean up rate limit records: %w", err)
		}
		fmt.Fprintf(w, "Removed %d expired rate limit records\n", expired)
	}

	if a.db != nil {
		if err := database.VacuumDatabase(a.db); err != nil {
			slog.Warn("Failed to vacuum database", "error", err)
		}
	}
	return nil
}

// write encodes v as indented JSON or YAML
func write(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
