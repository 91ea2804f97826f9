package upstream

import (
	"bufio"
	"io"
)

// streamBufferSize bounds a single event line; upstream chunks are small but
// a model can emit long data lines.
const streamBufferSize = 1 << 20

// Stream is a forward-only, non-restartable line iterator over an open
// upstream response body. It is not safe for concurrent use. The consumer
// owns the underlying connection and must call Close on every exit path.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
	closed  bool
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), streamBufferSize)
	return &Stream{body: body, scanner: scanner}
}

// Next advances to the next line. It returns false at end of stream or on
// error; check Err afterwards to tell the two apart.
func (s *Stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if s.scanner.Scan() {
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = classifyTransport(err)
	}
	return false
}

// Text returns the current line without its trailing newline.
func (s *Stream) Text() string {
	return s.scanner.Text()
}

// Err reports the classified error that ended the stream, if any. A clean
// upstream close returns nil.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the underlying connection. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
