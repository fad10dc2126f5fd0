package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	httputil "github.com/lepinkainen/recipe-forge/pkg/http"
	"github.com/lepinkainen/recipe-forge/pkg/metrics"
)

// ProberConfig configures image probing
type ProberConfig struct {
	Timeout     time.Duration
	MinBytes    int64
	Concurrency int
	UserAgent   string
}

// DefaultProberConfig returns the stock probe settings: 8s per probe, no retries,
// four probes in flight and a 15KB size floor.
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Timeout:     8 * time.Second,
		MinBytes:    15 * 1024,
		Concurrency: 4,
		UserAgent:   "Mozilla/5.0 (compatible; recipe-forge/1.0; image probe)",
	}
}

// ProbeResult is what a probe learned about a remote image
type ProbeResult struct {
	ContentType string
	Size        int64
}

// Prober checks candidate URLs with cheap HEAD or single-byte ranged requests
type Prober struct {
	client *httputil.Client
	config ProberConfig
}

// NewProber creates a prober
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	httpConfig := httputil.DefaultConfig()
	httpConfig.Timeout = cfg.Timeout
	httpConfig.MaxRetries = 0
	if cfg.UserAgent != "" {
		httpConfig.UserAgent = cfg.UserAgent
	}

	return &Prober{
		client: httputil.NewClient(httpConfig),
		config: cfg,
	}
}

// Probe fetches the content type and size of rawURL. A HEAD request is tried first;
// when it is refused or carries no Content-Length a ranged GET for byte 0 is used.
func (p *Prober) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	result := ProbeResult{Size: -1}
	resp, headErr := p.client.Head(ctx, rawURL)
	if headErr == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result.ContentType = resp.Header.Get("Content-Type")
			result.Size = resp.ContentLength
		}
	}

	if result.ContentType != "" && result.Size >= 0 {
		return result, nil
	}

	ranged, err := p.rangedProbe(ctx, rawURL)
	if err != nil {
		if headErr != nil {
			return result, fmt.Errorf("image probe failed: %w", headErr)
		}
		return result, err
	}
	if result.ContentType == "" {
		result.ContentType = ranged.ContentType
	}
	result.Size = ranged.Size
	return result, nil
}

func (p *Prober) rangedProbe(ctx context.Context, rawURL string) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("failed to create ranged request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ranged request failed: %w", err)
	}
	resp.Body.Close()

	result := ProbeResult{ContentType: resp.Header.Get("Content-Type"), Size: -1}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.Size = contentRangeTotal(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		result.Size = resp.ContentLength
	default:
		return result, fmt.Errorf("ranged request returned status %d", resp.StatusCode)
	}
	return result, nil
}

// contentRangeTotal reads the complete length from "bytes 0-0/12345"; -1 when unknown
func contentRangeTotal(header string) int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(strings.TrimSpace(header[idx+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return total
}

// Valid probes rawURL and reports whether it is a large enough image
func (p *Prober) Valid(ctx context.Context, rawURL string) bool {
	result, err := p.Probe(ctx, rawURL)
	switch {
	case err != nil:
		slog.Debug("Image probe failed", "url", rawURL, "error", err)
		metrics.ImageProbesTotal.WithLabelValues("error").Inc()
		return false
	case !strings.HasPrefix(strings.ToLower(result.ContentType), "image/"):
		slog.Debug("Image candidate is not an image", "url", rawURL, "content_type", result.ContentType)
		metrics.ImageProbesTotal.WithLabelValues("not_image").Inc()
		return false
	case result.Size < p.config.MinBytes:
		slog.Debug("Image candidate too small", "url", rawURL, "size", result.Size)
		metrics.ImageProbesTotal.WithLabelValues("too_small").Inc()
		return false
	}
	metrics.ImageProbesTotal.WithLabelValues("ok").Inc()
	return true
}

// First probes candidates with bounded concurrency and returns the first one, in the
// given order, that passes. Outstanding probes are canceled once the winner is known.
func (p *Prober) First(ctx context.Context, candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		index int
		ok    bool
	}

	results := make(chan outcome, len(candidates))
	semaphore := make(chan struct{}, p.config.Concurrency)
	var wg sync.WaitGroup

	for i, c := range candidates {
		wg.Add(1)
		go func(index int, url string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results <- outcome{index: index}
				return
			}
			results <- outcome{index: index, ok: p.Valid(ctx, url)}
		}(i, c.URL)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	done := make([]bool, len(candidates))
	passed := make([]bool, len(candidates))
	next := 0
	for res := range results {
		done[res.index] = true
		passed[res.index] = res.ok

		for next < len(candidates) && done[next] {
			if passed[next] {
				cancel()
				return candidates[next], true
			}
			next++
		}
	}
	return Candidate{}, false
}
