package result

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
)

// ErrorCategory groups branch failures in reports.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	CategoryThrottled         ErrorCategory = "throttled"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryRedirectLoop      ErrorCategory = "redirect_loop"
	CategoryDisallowed        ErrorCategory = "robots_disallowed"
	CategoryCanceled          ErrorCategory = "canceled"
	CategoryMalformed         ErrorCategory = "malformed_page"
	CategoryUnknown           ErrorCategory = "unknown"
)

// ClassifyError maps a failed page fetch to a category. statusCode is the
// last HTTP status received, 0 when no response arrived; it takes precedence
// over err.
func ClassifyError(err error, statusCode int) ErrorCategory {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return CategoryThrottled
	case statusCode >= 500:
		return Category5xx
	case statusCode >= 400:
		return Category4xx
	case err == nil:
		return CategoryUnknown
	}
	return classifyTransport(err)
}

func classifyTransport(err error) ErrorCategory {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.Is(err, context.DeadlineExceeded), os.IsTimeout(err):
		return CategoryTimeout
	case errors.As(err, &dnsErr):
		return CategoryDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		return CategoryConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	return CategoryUnknown
}

var categoryLabels = map[ErrorCategory]string{
	CategoryTimeout:           "Timeouts",
	CategoryDNSFailure:        "DNS failures",
	CategoryConnectionRefused: "Connection refused",
	CategoryThrottled:         "Throttled (429)",
	Category4xx:               "Client errors (4xx)",
	Category5xx:               "Server errors (5xx)",
	CategoryRedirectLoop:      "Redirect loops",
	CategoryDisallowed:        "Blocked by robots.txt",
	CategoryCanceled:          "Canceled",
	CategoryMalformed:         "Malformed pages",
}

// FormatCategory returns the report label of cat.
func FormatCategory(cat ErrorCategory) string {
	if label, ok := categoryLabels[cat]; ok {
		return label
	}
	return "Other errors"
}
