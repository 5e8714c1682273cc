package fdpipe

// ring is a fixed-capacity FIFO of fixed-size elements.
// It is not safe for concurrent use; pipeBuffer serializes access.
type ring[T any] struct {
	data    []T
	readPos int
	count   int
}

// newRing creates a ring holding at most capacity elements.
// Capacities below one are raised to one.
func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{data: make([]T, capacity)}
}

// push appends v at the back. It reports false when the ring is full.
func (r *ring[T]) push(v T) bool {
	if r.full() {
		return false
	}
	writePos := (r.readPos + r.count) % len(r.data)
	r.data[writePos] = v
	r.count++
	return true
}

// pop removes the element at the front. It reports false when the ring is empty.
func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.empty() {
		return zero, false
	}
	v := r.data[r.readPos]
	r.data[r.readPos] = zero
	r.readPos = (r.readPos + 1) % len(r.data)
	r.count--
	return v, true
}

func (r *ring[T]) len() int {
	return r.count
}

func (r *ring[T]) cap() int {
	return len(r.data)
}

func (r *ring[T]) empty() bool {
	return r.count == 0
}

func (r *ring[T]) full() bool {
	return r.count == len(r.data)
}
