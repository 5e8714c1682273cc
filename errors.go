package fdpipe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor is returned when a descriptor does not name an
	// endpoint in the calling task's pipe table.
	ErrInvalidDescriptor = errors.New("invalid pipe descriptor")
	// ErrWrongDirection is returned when reading from a write end or writing
	// to a read end.
	ErrWrongDirection = errors.New("wrong pipe direction")
	// ErrNotOwned is returned by Close when the calling task is not in the
	// endpoint's reference set.
	ErrNotOwned = errors.New("pipe not owned by task")
	// ErrNotRegistered is returned by Close when the endpoint is missing from
	// the calling task's pipe table.
	ErrNotRegistered = errors.New("pipe not present in task table")
	// ErrResourceExhausted is returned by Pipe when the task's pipe table is
	// full. The task is aborted.
	ErrResourceExhausted = errors.New("task ran out of pipes")
	// ErrBrokenPipe is returned when writing to a pipe whose read end is gone.
	ErrBrokenPipe = errors.New("broken pipe")
	// ErrTaskExited is returned for operations on a task that has exited or
	// was aborted.
	ErrTaskExited = errors.New("task has exited")
	// ErrNoSuchTask is returned when a pid does not name a live task.
	ErrNoSuchTask = errors.New("no such task")
)

func opError(op string, fd int, err error) error {
	return fmt.Errorf("%s: fd %d: %w", op, fd, err)
}
