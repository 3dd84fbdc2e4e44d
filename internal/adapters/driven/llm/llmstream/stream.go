// Package llmstream turns line-delimited streaming responses (server-sent
// events or newline-delimited JSON) into fragment streams.
package llmstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Ensure Stream implements the interface.
var _ driven.FragmentStream = (*Stream)(nil)

// maxLineSize bounds a single streamed line.
const maxLineSize = 1 << 20

// ErrIncomplete is returned when the connection ends before the provider
// signalled completion.
var ErrIncomplete = errors.New("stream ended before completion")

// DecodeFunc decodes one non-empty line into a fragment. done reports that
// the provider finished the answer; a fragment returned with done is still
// delivered.
type DecodeFunc func(line string) (fragment string, done bool, err error)

// Stream reads fragments from a response body.
type Stream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	decode   DecodeFunc
	done     bool
	once     sync.Once
	closeErr error
}

// New creates a stream over body. The stream owns body and closes it.
func New(provider string, body io.ReadCloser, decode DecodeFunc) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{provider: provider, body: body, scanner: scanner, decode: decode}
}

// Next returns the next non-empty fragment or io.EOF when the answer is complete.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		fragment, done, err := s.decode(line)
		if err != nil {
			return "", fmt.Errorf("%s: %w", s.provider, err)
		}
		if done {
			s.done = true
			if fragment == "" {
				return "", io.EOF
			}
			return fragment, nil
		}
		if fragment != "" {
			return fragment, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("%s: read stream: %w", s.provider, err)
	}
	return "", fmt.Errorf("%s: %w", s.provider, ErrIncomplete)
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// SSEData returns the payload of a server-sent event data line. Other
// lines (event names, comments, ids) report false.
func SSEData(line string) (string, bool) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(data), true
}
