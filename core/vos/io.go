package vos

import (
	"io"
	"os"
)

// StdIO is a mutable set of standard stream slots.
type StdIO struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

var _ VIO = (*StdIO)(nil)

// NewStdIO builds a stream set. A nil stdin reads as closed; nil writers
// discard.
func NewStdIO(in io.Reader, out, err io.Writer) *StdIO {
	return &StdIO{
		in:  readerOrClosed(in),
		out: writerOrDiscard(out),
		err: writerOrDiscard(err),
	}
}

// NewNullIO creates /dev/null style streams: reads fail, writes are
// discarded.
func NewNullIO() *StdIO {
	return NewStdIO(nil, nil, nil)
}

func (s *StdIO) Stdin() io.Reader  { return s.in }
func (s *StdIO) Stdout() io.Writer { return s.out }
func (s *StdIO) Stderr() io.Writer { return s.err }

func (s *StdIO) SetStdin(r io.Reader)  { s.in = readerOrClosed(r) }
func (s *StdIO) SetStdout(w io.Writer) { s.out = writerOrDiscard(w) }
func (s *StdIO) SetStderr(w io.Writer) { s.err = writerOrDiscard(w) }

// Clone copies the current slots into an independent set.
func (s *StdIO) Clone() *StdIO {
	return &StdIO{in: s.in, out: s.out, err: s.err}
}

func readerOrClosed(r io.Reader) io.Reader {
	if r == nil {
		return closedReader{}
	}
	return r
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// closedReader always fails, like reading from a closed descriptor.
type closedReader struct{}

func (closedReader) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}
