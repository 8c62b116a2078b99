package kernel

import (
	"io"
	"sync"
)

// File is an open descriptor. Closing it more than once is a no-op.
type File struct {
	mu     sync.Mutex
	closed bool

	r io.ReadCloser
	w io.WriteCloser
}

func NewFile(r io.ReadCloser, w io.WriteCloser) *File {
	return &File{
		r: r,
		w: w,
	}
}

func (f *File) Writer() (io.Writer, bool) {
	if f.w == nil {
		return nil, false
	}

	return f.w, true
}

func (f *File) Reader() (io.Reader, bool) {
	if f.r == nil {
		return nil, false
	}

	return f.r, true
}

type fder interface {
	Fd() uintptr
}

// Fd returns the host descriptor behind the file, when there is one.
func (f *File) Fd() (uintptr, bool) {
	if x, ok := f.r.(fder); ok {
		return x.Fd(), true
	}

	if x, ok := f.w.(fder); ok {
		return x.Fd(), true
	}

	return 0, false
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true

	var err error

	if f.r != nil {
		se := f.r.Close()
		if se != nil {
			err = se
		}
	}

	if f.w != nil {
		se := f.w.Close()
		if se != nil {
			err = se
		}
	}

	return err
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type sharedFd struct {
	nopWriteCloser
	fd uintptr
}

func (s sharedFd) Fd() uintptr { return s.fd }

// Shared wraps a host stream that outlives any one program, so closing the
// descriptor leaves the stream open.
func Shared(w io.Writer) io.WriteCloser {
	if x, ok := w.(fder); ok {
		return sharedFd{nopWriteCloser{w}, x.Fd()}
	}

	return nopWriteCloser{w}
}
