package stream

import (
	"bufio"
	"io"
	"net/http"
)

// Sink receives the frames of one run. A write error means the client is
// gone and the run should stop.
type Sink interface {
	WriteFrame(f Frame) error
	WriteDone() error
}

// WriterSink encodes frames onto w and flushes after each one when w
// supports it.
type WriterSink struct {
	w     io.Writer
	flush func() error
}

func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	switch f := w.(type) {
	case http.Flusher:
		s.flush = func() error { f.Flush(); return nil }
	case *bufio.Writer:
		s.flush = f.Flush
	}
	return s
}

func (s *WriterSink) WriteFrame(f Frame) error {
	b, err := Encode(f)
	if err != nil {
		return err
	}
	return s.write(b)
}

func (s *WriterSink) WriteDone() error {
	return s.write(EncodeDone())
}

func (s *WriterSink) write(b []byte) error {
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if s.flush != nil {
		return s.flush()
	}
	return nil
}
