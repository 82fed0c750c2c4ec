package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme (only https is accepted)")
	ErrFetchTimeout      = errors.New("fetch timed out")
	ErrTransport         = errors.New("transport error") // Wraps DNS/TLS/connection failures
	ErrClientHTTPError   = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError   = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError    = errors.New("other HTTP error (non-2xx)")
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrResponseBodyRead  = errors.New("failed to read response body")
	ErrParsing           = errors.New("parsing error")
	ErrAlreadyExists     = errors.New("entry already exists")
	ErrAlreadyRunning    = errors.New("crawl already running")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrDatabase          = errors.New("database error") // Wraps sql/badger errors
	ErrConfigValidation  = errors.New("configuration validation error")
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrUnsupportedScheme):
		return "Policy_Scheme"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrFetchTimeout):
		return "Network_Timeout"
	case errors.Is(err, ErrTransport):
		return categorizeTransport(err)
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrAlreadyExists):
		return "Ingest_AlreadyExists"
	case errors.Is(err, ErrAlreadyRunning):
		return "Crawl_AlreadyRunning"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrValidation):
		return "Validation"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	return "Unknown"
}

// categorizeTransport narrows an ErrTransport down using the wrapped cause's message.
func categorizeTransport(err error) string {
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	}
	return "Network_Other"
}
