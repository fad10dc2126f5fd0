package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/convert"
	"github.com/lepinkainen/recipe-forge/pkg/fetch"
	"github.com/lepinkainen/recipe-forge/pkg/jsonsafe"
	"github.com/lepinkainen/recipe-forge/pkg/pipeline"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

type importRequest struct {
	URL    string `json:"url" binding:"required"`
	HTML   string `json:"html"`
	UserID string `json:"user_id"`
}

type convertRequest struct {
	UserID string               `json:"user_id" binding:"required"`
	Recipe recipe.ScrapedRecipe `json:"recipe"`
}

// errorResponse is the body of every failed request
type errorResponse struct {
	pipeline.Description
	RequestID string           `json:"request_id,omitempty"`
	Partial   *pipeline.Result `json:"partial,omitempty"`
}

func (s *Server) handleImport(c *gin.Context) {
	var req importRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "a JSON body with a url is required")
		return
	}

	if s.limiter != nil {
		user := req.UserID
		if user == "" {
			user = "ip:" + c.ClientIP()
		}
		decision, err := s.limiter.Check(c.Request.Context(), user, ratelimit.ActionImport)
		if err != nil {
			s.fail(c, err)
			return
		}
		if !decision.Allowed {
			c.Header("Retry-After", retryAfterSeconds(decision.RetryAfter))
			s.fail(c, decision.Err())
			return
		}
	}

	res, err := s.importer.Import(c.Request.Context(), pipeline.Request{
		URL:    req.URL,
		HTML:   req.HTML,
		UserID: req.UserID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleConvert(c *gin.Context) {
	var req convertRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "a JSON body with user_id and recipe is required")
		return
	}

	out, err := s.converter.Convert(c.Request.Context(), req.UserID, req.Recipe)
	if err != nil {
		var rle *convert.RateLimitError
		if errors.As(err, &rle) {
			c.Header("Retry-After", retryAfterSeconds(rle.RetryAfter))
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Description: pipeline.Description{Code: pipeline.CodeInvalidRequest, Message: message},
		RequestID:   c.GetString("request_id"),
	})
}

// fail writes the described error with a status derived from its type
func (s *Server) fail(c *gin.Context, err error) {
	body := errorResponse{
		Description: pipeline.Describe(err),
		RequestID:   c.GetString("request_id"),
	}

	var importErr *pipeline.ImportError
	if errors.As(err, &importErr) {
		body.Partial = importErr.Partial
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.FullPath(), "code", body.Code, "error", err, "request_id", body.RequestID)
	} else {
		slog.Debug("Request rejected", "path", c.FullPath(), "code", body.Code, "error", err)
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var (
		fetchErr  *fetch.FetchError
		importErr *pipeline.ImportError
	)
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, convert.ErrUserRequired):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrAIUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrModelTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr):
		switch fetchErr.Code {
		case fetch.CodeInvalidURL:
			return http.StatusBadRequest
		case fetch.CodeNotHTML:
			return http.StatusUnprocessableEntity
		case fetch.CodeTimeout:
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &importErr):
		if importErr.Code == pipeline.CodeInvalidRequest {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}

	var (
		validationErr *validate.ValidationError
		schemaErr     *ai.SchemaError
		parseErr      *jsonsafe.ParseError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &schemaErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
