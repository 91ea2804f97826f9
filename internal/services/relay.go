package services

import (
	"bufio"
	"strings"

	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

// RelayStream copies an open upstream event stream to the outward writer:
// every non-empty line is forwarded verbatim with a newline terminator and
// flushed; empty keep-alive lines are dropped. If the upstream stream fails
// mid-flight, exactly one terminal error event is emitted and the outward
// stream ends cleanly. A write or flush failure means the consumer went
// away; the relay stops and the caller closes the upstream stream.
func RelayStream(w *bufio.Writer, stream *upstream.Stream) error {
	for stream.Next() {
		line := stream.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		detail := strings.ReplaceAll(err.Error(), "\n", " ")
		if _, werr := w.WriteString("event: error\ndata: " + detail + "\n\n"); werr != nil {
			return werr
		}
		return w.Flush()
	}
	return nil
}
