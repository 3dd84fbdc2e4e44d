package services

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
	"github.com/custodia-labs/lectern/internal/metrics"
)

// errStreamPending is returned by Response before the stream finished.
var errStreamPending = errors.New("stream not finished")

var (
	_ driving.AnswerStream = (*answerStream)(nil)
	_ driving.AnswerStream = (*staticStream)(nil)
)

// answerStream relays model fragments and derives citations once the
// model is done.
type answerStream struct {
	mu      sync.Mutex
	inner   driven.FragmentStream
	context domain.AssembledContext
	text    strings.Builder
	started time.Time

	done     bool
	closed   bool
	released bool
	resp     *domain.AIResponse
	err      error
}

func newAnswerStream(inner driven.FragmentStream, assembled domain.AssembledContext) *answerStream {
	return &answerStream{inner: inner, context: assembled, started: time.Now()}
}

// Next returns the next fragment, io.EOF once the answer is complete, or a
// *domain.GenerationError carrying the text emitted so far.
func (s *answerStream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.ErrStreamClosed
	}
	if s.done {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}

	for {
		fragment, err := s.inner.Next()
		if errors.Is(err, io.EOF) {
			s.finish(nil)
			return "", io.EOF
		}
		if err != nil {
			s.finish(err)
			return "", s.err
		}
		if fragment == "" {
			continue
		}
		s.text.WriteString(fragment)
		return fragment, nil
	}
}

// finish records the outcome and releases the model connection.
func (s *answerStream) finish(cause error) {
	s.done = true
	s.release()

	answer := strings.TrimSpace(s.text.String())
	s.resp = buildResponse(answer, s.context)
	metrics.GenerationDuration.WithLabelValues(modeStream).Observe(time.Since(s.started).Seconds())

	if cause != nil {
		s.resp.Truncated = true
		s.err = &domain.GenerationError{Op: "stream", Err: cause, Partial: s.text.String()}
		metrics.GenerationCallsTotal.WithLabelValues(modeStream, metrics.StatusError).Inc()
		logger.Warn("stream failed after %d chars: %v", s.text.Len(), cause)
		return
	}
	metrics.GenerationCallsTotal.WithLabelValues(modeStream, metrics.StatusOK).Inc()
}

// Response returns the final answer. A failed stream returns the partial
// answer marked Truncated together with the failure.
func (s *answerStream) Response() (*domain.AIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.done {
		return nil, errStreamPending
	}
	return s.resp, s.err
}

// Close abandons the stream. It is safe to call more than once.
func (s *answerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.release()
}

func (s *answerStream) release() error {
	if s.released {
		return nil
	}
	s.released = true
	return s.inner.Close()
}

// staticStream yields a precomputed response as a single fragment.
type staticStream struct {
	mu      sync.Mutex
	resp    *domain.AIResponse
	emitted bool
	closed  bool
}

func newStaticStream(resp *domain.AIResponse) *staticStream {
	return &staticStream{resp: resp}
}

func (s *staticStream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.ErrStreamClosed
	}
	if s.emitted {
		return "", io.EOF
	}
	s.emitted = true
	return s.resp.Answer, nil
}

func (s *staticStream) Response() (*domain.AIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.emitted {
		return nil, errStreamPending
	}
	return s.resp, nil
}

func (s *staticStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
