// Package aierr classifies failures of remote HTTP services such as AI
// providers and vector databases so callers can retry the transient ones.
package aierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// maxBodyInError bounds how much of a response body is quoted in errors.
const maxBodyInError = 512

// Status converts a non-2xx response into an error. Rate limiting, request
// timeouts and server errors are marked transient.
func Status(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxBodyInError {
		msg = msg[:maxBodyInError] + "..."
	}
	if IsTransientStatus(status) {
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrTransient, provider, status, msg)
	}
	return fmt.Errorf("%s: status %d: %s", provider, status, msg)
}

// Transport wraps a failure to reach the provider. Connection failures are
// transient; cancellation by the caller is not.
func Transport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransient, provider, err)
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= http.StatusInternalServerError:
		return status != http.StatusNotImplemented
	default:
		return false
	}
}
