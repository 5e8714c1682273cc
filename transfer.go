package fdpipe

// Read moves up to len(p) buffered bytes from the read end fd into p and
// returns how many were delivered. It never waits: an empty buffer yields 0.
// Reaching the end-of-stream marker ends the call early; the marker is
// consumed but not counted.
func (t *Task) Read(fd int, p []byte) (int, error) {
	n, _, err := t.read(fd, p)
	return n, err
}

func (t *Task) read(fd int, p []byte) (n int, eos bool, err error) {
	const op = "pipe_read"

	e, err := t.resolveDir(op, fd, Read, false)
	if err != nil {
		return 0, false, err
	}
	n, eos, ok := e.buf.get(p)
	if !ok {
		return 0, false, t.fail(op, fd, ErrInvalidDescriptor)
	}
	if eos {
		t.log.Debug().Stringer("pair", e.pair).Int("fd", fd).Msg("end of stream")
	}
	return n, eos, nil
}

// Write moves bytes from p into the write end fd until p is exhausted or the
// buffer is full, and returns how many were accepted. A short count is not an
// error; callers retry the remainder.
func (t *Task) Write(fd int, p []byte) (int, error) {
	return t.write(fd, p, false)
}

// write is the single path into a pipe buffer. With eos set it queues the
// end-of-stream marker after p, subject to the same capacity limit; the marker
// counts towards the result.
func (t *Task) write(fd int, p []byte, eos bool) (int, error) {
	const op = "pipe_write"

	e, err := t.resolveDir(op, fd, Write, eos)
	if err != nil {
		return 0, err
	}
	n, ok := e.buf.put(p, eos)
	if !ok {
		return 0, t.fail(op, fd, ErrBrokenPipe)
	}
	want := len(p)
	if eos {
		want++
	}
	if n < want {
		t.log.Warn().
			Stringer("pair", e.pair).
			Int("fd", fd).
			Int("requested", want).
			Int("written", n).
			Msg("pipe was full")
	}
	return n, nil
}
