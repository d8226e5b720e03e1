package api

import (
	"net/http"

	streamx "github.com/mminh007/machine-translation/agent/stream"
)

// sseSink commits the event-stream response on its first write, so errors
// raised before that can still be sent as plain HTTP errors.
type sseSink struct {
	w       http.ResponseWriter
	inner   *streamx.WriterSink
	started bool
}

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{w: w, inner: streamx.NewWriterSink(w)}
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseSink) WriteFrame(f streamx.Frame) error {
	s.start()
	return s.inner.WriteFrame(f)
}

func (s *sseSink) WriteDone() error {
	s.start()
	return s.inner.WriteDone()
}
