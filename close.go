package fdpipe

// Close releases the task's reference to the endpoint fd.
//
// The sequence is fixed. If fd is a write end and the task is its only
// referencing task, the end-of-stream marker is written first, while fd still
// resolves. Then the task leaves the endpoint's reference set and the endpoint
// leaves the task's pipe table. If no task references the endpoint afterwards
// it is dead, and a dead read end frees the shared buffer.
func (t *Task) Close(fd int) error {
	const op = "pipe_close"

	e, err := t.Resolve(fd)
	if err != nil {
		return t.fail(op, fd, err)
	}
	return t.release(op, fd, e)
}

// release runs the close sequence for e, registered under fd. It does not
// look at the exited flag so Exit can drain the table.
func (t *Task) release(op string, fd int, e *Endpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		// lost a race with another close of the last reference
		return t.fail(op, fd, ErrInvalidDescriptor)
	}

	if e.dir == Write && e.soleRefLocked(t.pid) {
		n, err := t.write(fd, nil, true)
		switch {
		case err != nil:
			t.log.Debug().Err(err).Int("fd", fd).Msg("end of stream not delivered")
		case n == 0:
			t.log.Warn().Stringer("pair", e.pair).Int("fd", fd).Msg("end of stream dropped")
		}
	}

	if !e.removeRefLocked(t.pid) {
		return t.fail(op, fd, ErrNotOwned)
	}
	if !t.unregister(e) {
		return t.fail(op, fd, ErrNotRegistered)
	}
	e.buf.release(holder{pid: t.pid, dir: e.dir})

	if len(e.refs) > 0 {
		t.log.Debug().
			Stringer("pair", e.pair).
			Int("fd", fd).
			Ints("refs", e.refs).
			Msg("endpoint released")
		return nil
	}

	e.dead = true
	switch e.dir {
	case Read:
		if e.buf.free() {
			t.log.Debug().Stringer("pair", e.pair).Msg("pipe buffer freed")
		}
	case Write:
		e.buf.closeWrite()
	}
	t.log.Debug().
		Stringer("pair", e.pair).
		Int("fd", fd).
		Stringer("dir", e.dir).
		Msg("endpoint dead")
	return nil
}
