package result

import (
	"context"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestClassifyError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name       string
		err        error
		statusCode int
		want       ErrorCategory
	}{
		{"throttled", nil, 429, CategoryThrottled},
		{"not found", nil, 404, Category4xx},
		{"forbidden", nil, 403, Category4xx},
		{"server error", nil, 503, Category5xx},
		{"status wins over error", context.DeadlineExceeded, 502, Category5xx},
		{"timeout", context.DeadlineExceeded, 0, CategoryTimeout},
		{"wrapped timeout", fmt.Errorf("fetch search page: %w", context.DeadlineExceeded), 0, CategoryTimeout},
		{"canceled crawl", fmt.Errorf("rate limiter wait: %w", context.Canceled), 0, CategoryCanceled},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "hh.invalid"}, 0, CategoryDNSFailure},
		{"connection refused", refused, 0, CategoryConnectionRefused},
		{"no error no status", nil, 0, CategoryUnknown},
		{"redirect status alone", nil, 301, CategoryUnknown},
		{"plain error", fmt.Errorf("boom"), 0, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err, tt.statusCode); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatCategory(t *testing.T) {
	tests := []struct {
		cat  ErrorCategory
		want string
	}{
		{CategoryThrottled, "Throttled (429)"},
		{Category5xx, "Server errors (5xx)"},
		{CategoryDisallowed, "Blocked by robots.txt"},
		{CategoryMalformed, "Malformed pages"},
		{CategoryUnknown, "Other errors"},
		{ErrorCategory("novel"), "Other errors"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			if got := FormatCategory(tt.cat); got != tt.want {
				t.Errorf("FormatCategory(%v) = %v, want %v", tt.cat, got, tt.want)
			}
		})
	}
}
