// Package console is the kernel's output sink: the single place program
// output goes to.
package console

import (
	"bytes"
	"io"
	"sync"
)

// Sink receives program output one byte at a time.
type Sink interface {
	PutChar(b byte)
}

// PutStr emits s through the sink, byte by byte.
func PutStr(s Sink, str string) {
	for i := 0; i < len(str); i++ {
		s.PutChar(str[i])
	}
}

type writer struct {
	sink Sink
}

func (w *writer) Write(b []byte) (int, error) {
	for _, c := range b {
		w.sink.PutChar(c)
	}

	return len(b), nil
}

type fdSink interface {
	Sink
	Fd() uintptr
}

// hostSink is a sink that may or may not sit on a host descriptor.
type hostSink interface {
	hostFd() (uintptr, bool)
}

type fdWriter struct {
	writer
	fd uintptr
}

func (w *fdWriter) Fd() uintptr {
	return w.fd
}

// NewWriter adapts a sink to io.Writer. Sinks backed by a host descriptor
// keep exposing it, so terminal ioctls reach the real device.
func NewWriter(s Sink) io.Writer {
	if f, ok := s.(fdSink); ok {
		return &fdWriter{writer: writer{sink: s}, fd: f.Fd()}
	}

	if h, ok := s.(hostSink); ok {
		if fd, ok := h.hostFd(); ok {
			return &fdWriter{writer: writer{sink: s}, fd: fd}
		}
	}

	return &writer{sink: s}
}

// WriterSink emits every byte to an io.Writer. The first write error is
// kept and later bytes are dropped.
type WriterSink struct {
	w   io.Writer
	err error
	buf [1]byte
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) PutChar(b byte) {
	if s.err != nil {
		return
	}

	s.buf[0] = b
	_, s.err = s.w.Write(s.buf[:])
}

func (s *WriterSink) hostFd() (uintptr, bool) {
	if f, ok := s.w.(interface{ Fd() uintptr }); ok {
		return f.Fd(), true
	}

	return 0, false
}

func (s *WriterSink) Err() error {
	return s.err
}

// Recorder keeps everything put to it. It is safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *Recorder) PutChar(b byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf.WriteByte(b)
}

func (r *Recorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]byte(nil), r.buf.Bytes()...)
}

func (r *Recorder) String() string {
	return string(r.Bytes())
}
