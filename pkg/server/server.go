// Package server exposes the import pipeline and the conversion gate over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lepinkainen/recipe-forge/pkg/convert"
	"github.com/lepinkainen/recipe-forge/pkg/metrics"
	"github.com/lepinkainen/recipe-forge/pkg/pipeline"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 6 << 20
	shutdownTimeout = 10 * time.Second
)

// Importer runs recipe imports
type Importer interface {
	Import(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Converter runs kid-friendly conversions
type Converter interface {
	Convert(ctx context.Context, userID string, r recipe.ScrapedRecipe) (*convert.Converted, error)
}

// Server is the HTTP front end
type Server struct {
	importer  Importer
	converter Converter
	limiter   *ratelimit.Limiter
	engine    *gin.Engine
}

// New builds the router. limiter may be nil to leave imports unmetered.
func New(importer Importer, converter Converter, limiter *ratelimit.Limiter) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		importer:  importer,
		converter: converter,
		limiter:   limiter,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), metrics.GinMiddleware(), requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1/recipes")
	v1.POST("/import", s.handleImport)
	v1.POST("/convert", s.handleConvert)

	s.engine = r
	return s
}

// Handler returns the router for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "recipe-forge"})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"))
	}
}
