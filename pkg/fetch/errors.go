package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Code classifies a fetch failure
type Code string

// Fetch error codes
const (
	CodeDNS         Code = "dns"
	CodeForbidden   Code = "forbidden"
	CodeNotFound    Code = "not_found"
	CodeRateLimited Code = "rate_limited"
	CodeServer      Code = "server"
	CodeTimeout     Code = "timeout"
	CodeConnection  Code = "connection"
	CodeInvalidURL  Code = "invalid_url"
	CodeNotHTML     Code = "not_html"
	CodeUnknown     Code = "unknown"
)

// FetchError is a structured, caller-facing page fetch failure
type FetchError struct {
	Code       Code
	Message    string
	Suggestion string
	Retryable  bool
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying transport error, if any
func (e *FetchError) Unwrap() error {
	return e.Err
}

var suggestions = map[Code]string{
	CodeDNS:         "Check the spelling of the website address.",
	CodeForbidden:   "This site blocks automated access. Try pasting the recipe page contents instead.",
	CodeNotFound:    "The page no longer exists. Check that the link is complete.",
	CodeRateLimited: "The site is limiting requests. Wait a few minutes and try again.",
	CodeServer:      "The website is having problems. Try again later.",
	CodeTimeout:     "The website took too long to respond. Try again later.",
	CodeConnection:  "Could not connect to the website. Check your connection and try again.",
	CodeInvalidURL:  "Enter a full web address starting with http:// or https://.",
	CodeNotHTML:     "The link does not point to a web page. Use the recipe page address.",
	CodeUnknown:     "Something went wrong while loading the page. Try again.",
}

func newError(code Code, message string, retryable bool) *FetchError {
	return &FetchError{
		Code:       code,
		Message:    message,
		Suggestion: suggestions[code],
		Retryable:  retryable,
	}
}

// statusError maps a non-success HTTP status to a FetchError
func statusError(status int) *FetchError {
	var e *FetchError
	switch {
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		e = newError(CodeForbidden, "access to the page was denied", false)
	case status == http.StatusNotFound || status == http.StatusGone:
		e = newError(CodeNotFound, "page not found", false)
	case status == http.StatusTooManyRequests:
		e = newError(CodeRateLimited, "too many requests to the site", true)
	case status >= 500:
		e = newError(CodeServer, "the site returned a server error", true)
	default:
		e = newError(CodeUnknown, fmt.Sprintf("unexpected HTTP status %d", status), false)
	}
	e.StatusCode = status
	return e
}

// classify maps a transport error to a FetchError
func classify(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	var (
		e      *FetchError
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.As(err, &dnsErr):
		e = newError(CodeDNS, "could not resolve the site address", false)
	case errors.Is(err, context.DeadlineExceeded):
		e = newError(CodeTimeout, "the request timed out", true)
	case errors.As(err, &netErr) && netErr.Timeout():
		e = newError(CodeTimeout, "the request timed out", true)
	case errors.Is(err, context.Canceled):
		e = newError(CodeUnknown, "the request was canceled", false)
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		e = newError(CodeConnection, "the connection to the site failed", true)
	case errors.As(err, new(*net.OpError)):
		e = newError(CodeConnection, "the connection to the site failed", true)
	default:
		e = newError(CodeUnknown, "the page could not be loaded", false)
	}
	e.Err = err
	return e
}
