package fdpipe

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Task is a schedulable unit that owns a pipe table: the endpoints it holds
// descriptors for and the counter new descriptors are drawn from.
type Task struct {
	k        *Kernel
	log      zerolog.Logger
	name     string
	pipes    []*Endpoint
	mu       sync.Mutex
	pid      int
	nextFD   int
	maxPipes int
	exited   bool
}

// PID returns the task identity.
func (t *Task) PID() int { return t.pid }

// Name returns the name the task was spawned or forked with.
func (t *Task) Name() string { return t.name }

// Exited reports whether the task has exited or was aborted.
func (t *Task) Exited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exited
}

// Descriptors returns the descriptors in the task's pipe table, in table order.
func (t *Task) Descriptors() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fds := make([]int, 0, len(t.pipes))
	for _, e := range t.pipes {
		fds = append(fds, e.fd)
	}
	return fds
}

// Pipe creates a connected pair of endpoints sharing a new buffer and
// registers both in the task's pipe table. The read end takes the next
// descriptor and the write end the one after it.
//
// A full pipe table is fatal to the task: it is aborted, every descriptor it
// holds is closed and ErrResourceExhausted is returned.
func (t *Task) Pipe() (rfd, wfd int, err error) {
	const op = "pipe"

	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return -1, -1, opError(op, -1, ErrTaskExited)
	}
	if len(t.pipes)+2 > t.maxPipes {
		held := len(t.pipes)
		t.mu.Unlock()
		t.log.Error().
			Int("held", held).
			Int("max", t.maxPipes).
			Msg("task ran out of pipes, aborting")
		t.abort()
		return -1, -1, opError(op, -1, ErrResourceExhausted)
	}

	pair := uuid.New()
	buf := newPipeBuffer(t.k.capacity)
	r := newEndpoint(Read, t.nextFD, t.pid, pair, buf)
	w := newEndpoint(Write, t.nextFD+1, t.pid, pair, buf)
	t.nextFD += 2
	t.pipes = append(t.pipes, r, w)
	t.mu.Unlock()

	t.log.Debug().
		Stringer("pair", pair).
		Int("rfd", r.fd).
		Int("wfd", w.fd).
		Msg("pipe created")
	return r.fd, w.fd, nil
}

// Resolve returns the endpoint registered under fd in the task's pipe table.
func (t *Task) Resolve(fd int) (*Endpoint, error) {
	return t.resolve(fd, false)
}

// resolve looks fd up. With closing set it also succeeds on an exiting task,
// whose table only shrinks.
func (t *Task) resolve(fd int, closing bool) (*Endpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exited && !closing {
		return nil, ErrTaskExited
	}
	if e := t.lookupLocked(fd); e != nil {
		return e, nil
	}
	return nil, ErrInvalidDescriptor
}

func (t *Task) lookupLocked(fd int) *Endpoint {
	for _, e := range t.pipes {
		if e.fd == fd {
			return e
		}
	}
	return nil
}

// resolveDir resolves fd and checks its direction, logging failures.
func (t *Task) resolveDir(op string, fd int, dir Direction, closing bool) (*Endpoint, error) {
	e, err := t.resolve(fd, closing)
	if err != nil {
		return nil, t.fail(op, fd, err)
	}
	if e.dir != dir {
		return nil, t.fail(op, fd, ErrWrongDirection)
	}
	return e, nil
}

// unregister removes e from the pipe table. It reports false if e is absent.
func (t *Task) unregister(e *Endpoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := slices.Index(t.pipes, e)
	if i < 0 {
		return false
	}
	t.pipes = slices.Delete(t.pipes, i, i+1)
	return true
}

func (t *Task) abort() {
	if err := t.k.Exit(t); err != nil {
		t.log.Warn().Err(err).Msg("abort left descriptors behind")
	}
}

func (t *Task) fail(op string, fd int, err error) error {
	t.log.Warn().Str("op", op).Int("fd", fd).Err(err).Msg("pipe operation failed")
	return opError(op, fd, err)
}
