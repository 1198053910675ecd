// Package sse decodes streaming chat-completion responses: newline-delimited
// `data: <json>` records, terminated by `data: [DONE]` or connection close.
// The provider-specific payload schema is delegated to a DeltaDecoder.
package sse

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// dataPrefix marks an event line carrying a payload.
var dataPrefix = []byte("data: ")

// doneToken terminates the current line batch. Lines after it in a later
// chunk are still processed; do not tighten this without flagging the
// behavior change, callers rely on it matching the observed upstreams.
const doneToken = "[DONE]"

// DeltaDecoder extracts provider-specific deltas from event payloads.
type DeltaDecoder interface {
	// DecodeDelta returns the text delta of one payload; false when the
	// payload is malformed or empty. Malformed payloads never abort the
	// stream: resilience over strictness.
	DecodeDelta(payload []byte) (string, bool)
	// DecodeTail inspects the trailing unterminated fragment at stream end.
	DecodeTail(payload []byte) (string, bool)
}

// Stream lazily decodes text deltas from a byte stream. It is finite and not
// restartable. Recv returns io.EOF once the stream is exhausted. Recv is
// single-consumer, but Close and Count may be called from other goroutines
// while a Recv is in flight.
type Stream struct {
	reader  io.ReadCloser
	decoder DeltaDecoder

	// mu guards eof and count, the fields touched from outside the Recv
	// goroutine. The reader is closed exactly once through closeReader.
	mu          sync.Mutex
	eof         bool
	count       int
	closeReader sync.Once

	// buffer holds bytes read but not yet terminated by a newline; it may end
	// mid-line or mid-rune, so it is only converted once a full line exists.
	buffer  []byte
	chunk   []byte
	pending []string
}

// New returns a stream decoding r with the given decoder. The reader is
// closed when the stream ends.
func New(r io.ReadCloser, decoder DeltaDecoder) *Stream {
	return &Stream{
		reader:  r,
		decoder: decoder,
		chunk:   make([]byte, 4096),
	}
}

// Recv returns the next text delta, in strict arrival order. It returns
// io.EOF when the stream has ended.
func (s *Stream) Recv() (string, error) {
	for len(s.pending) == 0 {
		if s.done() {
			return "", io.EOF
		}
		if err := s.read(); err != nil {
			return "", err
		}
	}
	delta := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return delta, nil
}

// Count reports how many deltas have been received so far. A stream that ends
// with a zero count is the caller's "empty response" condition.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close releases the underlying reader early. It may be called from another
// goroutine while Recv is blocked; closing the reader unblocks the pending
// read. Close is idempotent.
func (s *Stream) Close() {
	s.markDone()
}

func (s *Stream) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eof
}

func (s *Stream) markDone() {
	s.mu.Lock()
	s.eof = true
	s.mu.Unlock()
	s.closeReader.Do(func() { s.reader.Close() })
}

// read pulls one chunk, slices completed lines off the buffer and decodes
// them. The final, possibly incomplete fragment stays buffered for the next
// chunk and is never parsed prematurely.
func (s *Stream) read() error {
	n, err := s.reader.Read(s.chunk)
	if n > 0 {
		s.buffer = append(s.buffer, s.chunk[:n]...)
		s.decodeLines()
	}
	if err == io.EOF {
		s.finish()
		return nil
	}
	if err != nil {
		s.markDone()
		return errors.Wrap(err, "reading stream")
	}
	return nil
}

// decodeLines processes every complete line currently buffered as one batch.
func (s *Stream) decodeLines() {
	for {
		i := bytes.IndexByte(s.buffer, '\n')
		if i < 0 {
			return
		}
		line := s.buffer[:i]
		s.buffer = s.buffer[i+1:]
		if done := s.decodeLine(line); done {
			// [DONE] ends this batch only; drain the remaining complete
			// lines of the buffer without decoding them.
			s.drainBatch()
			return
		}
	}
}

func (s *Stream) drainBatch() {
	for {
		i := bytes.IndexByte(s.buffer, '\n')
		if i < 0 {
			return
		}
		s.buffer = s.buffer[i+1:]
	}
}

// decodeLine handles one complete line, reporting whether it was the
// terminator. Blank and non-event lines are ignored; malformed payloads are
// silently dropped and decoding continues.
func (s *Stream) decodeLine(line []byte) bool {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 || !bytes.HasPrefix(line, dataPrefix) {
		return false
	}
	payload := line[len(dataPrefix):]
	if string(payload) == doneToken {
		return true
	}
	if delta, ok := s.decoder.DecodeDelta(payload); ok && delta != "" {
		s.pending = append(s.pending, delta)
	}
	return false
}

// finish handles stream end: a trailing unterminated payload may carry a
// terminal annotation (e.g. a prompt-feedback block reason).
func (s *Stream) finish() {
	s.markDone()
	tail := bytes.TrimRight(s.buffer, "\r")
	if !bytes.HasPrefix(tail, dataPrefix) {
		return
	}
	if annotation, ok := s.decoder.DecodeTail(tail[len(dataPrefix):]); ok {
		s.pending = append(s.pending, annotation)
	}
}
