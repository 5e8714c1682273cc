package fdpipe

import (
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// DefaultCapacity is the number of slots in a new pipe buffer.
	DefaultCapacity = 64
	// DefaultTableSize is the number of endpoints a task can hold.
	DefaultTableSize = 32
)

// Kernel is the task manager pipes are attached to. It issues pids, keeps the
// pid to task mapping and owns the limits applied to every task.
type Kernel struct {
	log       zerolog.Logger
	tasks     map[int]*Task
	mu        sync.Mutex
	nextPID   int
	capacity  int
	tableSize int
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithCapacity sets the buffer capacity of new pipes. Values below one mean one.
func WithCapacity(n int) Option {
	return func(k *Kernel) {
		k.capacity = max(n, 1)
	}
}

// WithTableSize sets how many endpoints each task's pipe table can hold.
// Values below two mean two, the room one pipe needs.
func WithTableSize(n int) Option {
	return func(k *Kernel) {
		k.tableSize = max(n, 2)
	}
}

// WithLogger sets the logger for pipe diagnostics. The default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(k *Kernel) {
		k.log = log
	}
}

// NewKernel returns a kernel with no tasks.
func NewKernel(opts ...Option) *Kernel {
	k := &Kernel{
		log:       zerolog.Nop(),
		tasks:     make(map[int]*Task),
		nextPID:   1,
		capacity:  DefaultCapacity,
		tableSize: DefaultTableSize,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Spawn creates a task with an empty pipe table.
func (k *Kernel) Spawn(name string) *Task {
	t := k.newTask(name, 0)
	k.publish(t)
	t.log.Debug().Msg("task spawned")
	return t
}

// Fork creates a child of parent that holds every descriptor the parent holds.
// Each inherited endpoint gains the child in its reference set; no buffer is
// copied. The child's descriptor counter continues from the parent's. The
// child becomes visible to pid lookups only once its table is complete.
func (k *Kernel) Fork(parent *Task, name string) (*Task, error) {
	parent.mu.Lock()
	if parent.exited {
		parent.mu.Unlock()
		return nil, ErrTaskExited
	}
	inherited := slices.Clone(parent.pipes)
	nextFD := parent.nextFD
	parent.mu.Unlock()

	child := k.newTask(name, nextFD)
	pipes := inherited[:0]
	for _, e := range inherited {
		// the parent may have closed the last reference since the snapshot
		if e.addRef(child.pid) {
			pipes = append(pipes, e)
		}
	}
	child.mu.Lock()
	child.pipes = pipes
	child.mu.Unlock()
	k.publish(child)

	child.log.Debug().
		Int("parent", parent.pid).
		Int("pipes", len(pipes)).
		Msg("task forked")
	return child, nil
}

// Exit closes every descriptor t holds, in table order, and removes t from
// the kernel. The task stops accepting new pipes and transfers before the
// first close. Close failures are joined into the returned error.
func (k *Kernel) Exit(t *Task) error {
	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return ErrTaskExited
	}
	t.exited = true
	fds := make([]int, 0, len(t.pipes))
	for _, e := range t.pipes {
		fds = append(fds, e.fd)
	}
	t.mu.Unlock()

	var errs []error
	for _, fd := range fds {
		e, err := t.resolve(fd, true)
		if err != nil {
			// closed by a call that resolved before the exit began
			continue
		}
		if err := t.release("pipe_close", fd, e); err != nil {
			errs = append(errs, err)
		}
	}

	k.mu.Lock()
	delete(k.tasks, t.pid)
	k.mu.Unlock()

	t.log.Debug().Int("closed", len(fds)).Msg("task exited")
	return errors.Join(errs...)
}

// Task returns the live task with the given pid.
func (k *Kernel) Task(pid int) (*Task, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[pid]
	return t, ok
}

// Tasks returns the pids of live tasks in ascending order.
func (k *Kernel) Tasks() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	pids := make([]int, 0, len(k.tasks))
	for pid := range k.tasks {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

// newTask allocates a pid and builds a task that pid lookups cannot see yet.
func (k *Kernel) newTask(name string, nextFD int) *Task {
	k.mu.Lock()
	pid := k.nextPID
	k.nextPID++
	k.mu.Unlock()
	return &Task{
		k:        k,
		log:      k.log.With().Int("pid", pid).Str("task", name).Logger(),
		name:     name,
		pid:      pid,
		nextFD:   nextFD,
		maxPipes: k.tableSize,
	}
}

func (k *Kernel) publish(t *Task) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tasks[t.pid] = t
}
