// Package retry runs collaborator calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/logger"
)

// Policy bounds the retries of one operation.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Base is the delay before the first retry. It doubles per retry.
	Base time.Duration

	// Max caps the delay between tries.
	Max time.Duration
}

// Default policies per collaborator.
var (
	Embedding  = Policy{Attempts: 3, Base: 200 * time.Millisecond, Max: 5 * time.Second}
	Store      = Policy{Attempts: 3, Base: 200 * time.Millisecond, Max: 5 * time.Second}
	Generation = Policy{Attempts: 2, Base: 500 * time.Millisecond, Max: 5 * time.Second}
)

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return p.Max
	}
	d := p.Base << attempt
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Do calls fn until it succeeds, returns a non-transient error, or the
// policy's attempts are used up. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !domain.IsTransient(err) || attempt == attempts-1 {
			return err
		}

		delay := p.Delay(attempt)
		logger.Debug("%s: attempt %d/%d failed, retrying in %s: %v", op, attempt+1, attempts, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
