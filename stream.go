package fdpipe

import (
	"io"
	"sync"
)

// streamChunk is how much WriteTo and ReadFrom move per pass.
const streamChunk = 4096

// Reader returns an io.Reader over the read end fd of t. Unlike Task.Read it
// waits for data. The end-of-stream marker, or the death of the write end,
// becomes io.EOF.
func (t *Task) Reader(fd int) (*Reader, error) {
	if _, err := t.resolveDir("pipe_read", fd, Read, false); err != nil {
		return nil, err
	}
	return &Reader{t: t, fd: fd}, nil
}

// Writer returns an io.Writer over the write end fd of t. Unlike Task.Write it
// waits for space until every byte is accepted.
func (t *Task) Writer(fd int) (*Writer, error) {
	if _, err := t.resolveDir("pipe_write", fd, Write, false); err != nil {
		return nil, err
	}
	return &Writer{t: t, fd: fd}, nil
}

// Reader is the waiting read side of a pipe descriptor. A Read blocked on an
// empty pipe returns io.ErrClosedPipe once the same task closes the
// descriptor, so data written afterwards never reaches it.
type Reader struct {
	t      *Task
	closer closeOnce
	fd     int
	eof    bool
}

var (
	_ io.ReadCloser = (*Reader)(nil)
	_ io.WriterTo   = (*Reader)(nil)
)

// Read implements io.Reader.
func (r *Reader) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if r.eof {
		return 0, io.EOF
	}
	e, err := r.t.resolveDir("pipe_read", r.fd, Read, false)
	if err != nil {
		return 0, err
	}
	n, eos, err := e.buf.waitGet(holder{pid: r.t.pid, dir: Read}, b)
	if err != nil {
		return n, err
	}
	if eos {
		r.eof = true
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, nil
}

// WriteTo implements io.WriterTo. It drains the pipe into w and stops at
// end of stream without reporting it.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	chunk := make([]byte, streamChunk)
	var total int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			m, werr := w.Write(chunk[:n])
			total += int64(max(m, 0))
			switch {
			case werr != nil:
				return total, werr
			case m != n:
				return total, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Close closes the descriptor. Closing twice is a no-op.
func (r *Reader) Close() error {
	return r.closer.do(r.t, r.fd)
}

// Writer is the waiting write side of a pipe descriptor. A Write blocked on a
// full pipe returns io.ErrClosedPipe once the descriptor is closed.
type Writer struct {
	t      *Task
	closer closeOnce
	fd     int
}

var (
	_ io.WriteCloser = (*Writer)(nil)
	_ io.ReaderFrom  = (*Writer)(nil)
)

// Write implements io.Writer.
func (w *Writer) Write(b []byte) (int, error) {
	e, err := w.t.resolveDir("pipe_write", w.fd, Write, false)
	if err != nil {
		return 0, err
	}
	return e.buf.waitPut(holder{pid: w.t.pid, dir: Write}, b)
}

// ReadFrom implements io.ReaderFrom. It copies src into the pipe until src
// reports io.EOF, which is not returned.
func (w *Writer) ReadFrom(src io.Reader) (int64, error) {
	chunk := make([]byte, streamChunk)
	var total int64
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			m, werr := w.Write(chunk[:n])
			total += int64(m)
			if werr != nil {
				return total, werr
			}
		}
		switch {
		case err == io.EOF:
			return total, nil
		case err != nil:
			return total, err
		}
	}
}

// Close closes the descriptor, queueing end-of-stream if this task was the
// last writer. Closing twice is a no-op.
func (w *Writer) Close() error {
	return w.closer.do(w.t, w.fd)
}

type closeOnce struct {
	once sync.Once
	err  error
}

func (c *closeOnce) do(t *Task, fd int) error {
	c.once.Do(func() {
		c.err = t.Close(fd)
	})
	return c.err
}
