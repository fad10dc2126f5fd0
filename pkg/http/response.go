package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// StatusError reports an unexpected HTTP status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %s", e.Status)
}

// EnsureStatusOK returns a *StatusError unless the response is 200 OK
func EnsureStatusOK(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// ReadBody reads at most limit bytes and closes the body. The returned flag reports
// whether the body was longer than limit. A limit of zero or less reads everything.
func ReadBody(resp *http.Response, limit int64) ([]byte, bool, error) {
	defer closeBody(resp)

	if limit <= 0 {
		data, err := io.ReadAll(resp.Body)
		return data, false, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

func closeBody(resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		slog.Debug("Failed to close response body", "error", closeErr)
	}
}
