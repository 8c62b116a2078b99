package console

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

type failWriter struct {
	calls int
}

func (f *failWriter) Write(b []byte) (int, error) {
	f.calls++
	return 0, errors.New("closed")
}

type fakeFdSink struct {
	Recorder
}

func (*fakeFdSink) Fd() uintptr { return 7 }

type fdBuffer struct {
	bytes.Buffer
}

func (*fdBuffer) Fd() uintptr { return 9 }

func TestSink(t *testing.T) {
	n := neko.Modern(t)

	n.It("builds strings from single characters", func(t *testing.T) {
		var r Recorder

		PutStr(&r, "hello")
		PutStr(&r, "")

		require.Equal(t, "hello", r.String())
	})

	n.It("adapts a sink to io.Writer", func(t *testing.T) {
		var r Recorder

		w := NewWriter(&r)

		cnt, err := io.WriteString(w, "abc\n")
		require.NoError(t, err)
		require.Equal(t, 4, cnt)
		require.Equal(t, "abc\n", r.String())

		_, ok := w.(interface{ Fd() uintptr })
		require.False(t, ok)
	})

	n.It("keeps the descriptor of terminal sinks", func(t *testing.T) {
		w := NewWriter(&fakeFdSink{})

		f, ok := w.(interface{ Fd() uintptr })
		require.True(t, ok)
		require.Equal(t, uintptr(7), f.Fd())
	})

	n.It("keeps the descriptor of the stream under a writer sink", func(t *testing.T) {
		var buf fdBuffer

		w := NewWriter(NewWriterSink(&buf))

		_, err := io.WriteString(w, "out")
		require.NoError(t, err)
		require.Equal(t, "out", buf.String())

		f, ok := w.(interface{ Fd() uintptr })
		require.True(t, ok)
		require.Equal(t, uintptr(9), f.Fd())

		_, ok = NewWriter(NewWriterSink(&bytes.Buffer{})).(interface{ Fd() uintptr })
		require.False(t, ok)
	})

	n.It("writes through to an io.Writer", func(t *testing.T) {
		var buf bytes.Buffer

		s := NewWriterSink(&buf)
		PutStr(s, "ok")

		require.Equal(t, "ok", buf.String())
		require.NoError(t, s.Err())
	})

	n.It("stops after the first write error", func(t *testing.T) {
		fw := &failWriter{}

		s := NewWriterSink(fw)
		PutStr(s, "xyz")

		require.Error(t, s.Err())
		require.Equal(t, 1, fw.calls)
	})

	n.Meow()
}
