package fdpipe

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Direction tags an endpoint as the read or write end of a pipe.
type Direction uint8

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Endpoint is one end of a pipe. It is referenced by every task holding its
// descriptor and shares its buffer with the other end of the pair.
type Endpoint struct {
	buf  *pipeBuffer
	refs []int
	mu   sync.Mutex
	fd   int
	pair uuid.UUID
	dir  Direction
	dead bool
}

func newEndpoint(dir Direction, fd, pid int, pair uuid.UUID, buf *pipeBuffer) *Endpoint {
	return &Endpoint{
		buf:  buf,
		refs: []int{pid},
		fd:   fd,
		pair: pair,
		dir:  dir,
	}
}

// Descriptor returns the descriptor the endpoint was issued under.
func (e *Endpoint) Descriptor() int { return e.fd }

// Direction returns whether this is the read or the write end.
func (e *Endpoint) Direction() Direction { return e.dir }

// PairID identifies the pipe this endpoint belongs to. Both ends share it.
func (e *Endpoint) PairID() uuid.UUID { return e.pair }

// Refs returns the pids currently referencing the endpoint, in ascending order.
func (e *Endpoint) Refs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	refs := slices.Clone(e.refs)
	slices.Sort(refs)
	return refs
}

// Live reports whether any task still references the endpoint.
func (e *Endpoint) Live() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.dead
}

// Len returns the number of occupied buffer slots, the end-of-stream marker
// included. It is zero once the buffer is freed.
func (e *Endpoint) Len() int { return e.buf.len() }

// Cap returns the buffer capacity, or zero once the buffer is freed.
func (e *Endpoint) Cap() int { return e.buf.cap() }

// SharesBuffer reports whether e and other are backed by the same buffer.
func (e *Endpoint) SharesBuffer(other *Endpoint) bool {
	return other != nil && e.buf == other.buf
}

// addRef adds pid to the reference set. It reports false if the endpoint is
// already dead.
func (e *Endpoint) addRef(pid int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return false
	}
	if !slices.Contains(e.refs, pid) {
		e.refs = append(e.refs, pid)
	}
	return true
}

func (e *Endpoint) soleRefLocked(pid int) bool {
	return len(e.refs) == 1 && e.refs[0] == pid
}

func (e *Endpoint) removeRefLocked(pid int) bool {
	i := slices.Index(e.refs, pid)
	if i < 0 {
		return false
	}
	e.refs = slices.Delete(e.refs, i, i+1)
	return true
}
