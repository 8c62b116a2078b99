package console

import (
	tty "github.com/mattn/go-tty"
	"github.com/pkg/errors"
)

// TTY is a sink writing to the controlling terminal.
type TTY struct {
	t *tty.TTY
}

func OpenTTY() (*TTY, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening controlling terminal")
	}

	return &TTY{t: t}, nil
}

func (t *TTY) PutChar(b byte) {
	var buf [1]byte
	buf[0] = b

	t.t.Output().Write(buf[:])
}

// Fd is the descriptor of the terminal's output side.
func (t *TTY) Fd() uintptr {
	return t.t.Output().Fd()
}

func (t *TTY) Size() (int, int, error) {
	return t.t.Size()
}

func (t *TTY) Close() error {
	return t.t.Close()
}
