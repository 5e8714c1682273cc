package fdpipe

import (
	"io"
	"sync"
)

// symbol is one buffer slot: a data byte or the end-of-stream marker.
type symbol uint16

// endOfStream lies outside the byte range so every data byte can be carried.
const endOfStream symbol = 0x100

// pipeBuffer is the storage shared by both ends of a pipe.
// Only the death of the read end frees it.
type pipeBuffer struct {
	writable sync.Cond
	readable sync.Cond

	ring     *ring[symbol]
	released map[holder]struct{}
	mu       sync.Mutex

	freed      bool
	writerGone bool
}

// holder is a task's hold on one end of the pipe. Once released it never
// comes back: forks add new pids and descriptors are not reissued.
type holder struct {
	pid int
	dir Direction
}

func newPipeBuffer(capacity int) *pipeBuffer {
	b := &pipeBuffer{ring: newRing[symbol](capacity)}
	b.writable.L = &b.mu
	b.readable.L = &b.mu
	return b
}

// get pops up to len(dst) bytes without waiting. eos reports that the
// end-of-stream marker was consumed. ok is false once the buffer is freed.
func (b *pipeBuffer) get(dst []byte) (n int, eos, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return 0, false, false
	}
	n, eos = b.getLocked(dst)
	return n, eos, true
}

// put pushes src, then the marker when eos is set, until the ring is full.
// The returned count includes the marker.
func (b *pipeBuffer) put(src []byte, eos bool) (n int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return 0, false
	}
	n = b.putLocked(src)
	if eos && n == len(src) && b.ring.push(endOfStream) {
		n++
		b.readable.Broadcast()
	}
	return n, true
}

func (b *pipeBuffer) getLocked(dst []byte) (n int, eos bool) {
	wasFull := b.ring.full()
	for n < len(dst) {
		s, ok := b.ring.pop()
		if !ok {
			break
		}
		if s == endOfStream {
			eos = true
			break
		}
		dst[n] = byte(s)
		n++
	}
	if wasFull && !b.ring.full() {
		b.writable.Broadcast()
	}
	return n, eos
}

func (b *pipeBuffer) putLocked(src []byte) int {
	n := 0
	for n < len(src) && b.ring.push(symbol(src[n])) {
		n++
	}
	if n > 0 {
		b.readable.Broadcast()
	}
	return n
}

// waitGet is get that waits while the buffer is empty and a writer remains.
// It gives up with io.ErrClosedPipe once h is released or the buffer is freed.
func (b *pipeBuffer) waitGet(h holder, dst []byte) (n int, eos bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.freed || b.releasedLocked(h) {
			return 0, false, io.ErrClosedPipe
		}
		if !b.ring.empty() {
			n, eos = b.getLocked(dst)
			return n, eos, nil
		}
		if b.writerGone {
			return 0, true, nil
		}
		b.readable.Wait()
	}
}

// waitPut is put that waits for space until all of src is accepted. It stops
// with io.ErrClosedPipe once h is released, the write end is dead or the
// buffer is freed, so nothing lands behind the end-of-stream marker.
func (b *pipeBuffer) waitPut(h holder, src []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for n < len(src) {
		for !b.stoppedLocked(h) && b.ring.full() {
			b.writable.Wait()
		}
		if b.stoppedLocked(h) {
			return n, io.ErrClosedPipe
		}
		n += b.putLocked(src[n:])
	}
	return n, nil
}

func (b *pipeBuffer) stoppedLocked(h holder) bool {
	return b.freed || b.writerGone || b.releasedLocked(h)
}

func (b *pipeBuffer) releasedLocked(h holder) bool {
	_, ok := b.released[h]
	return ok
}

// release records that h let go of its end and wakes every waiter so that
// waits made on behalf of h return.
func (b *pipeBuffer) release(h holder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.freed {
		if b.released == nil {
			b.released = make(map[holder]struct{})
		}
		b.released[h] = struct{}{}
	}
	b.readable.Broadcast()
	b.writable.Broadcast()
}

func (b *pipeBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return 0
	}
	return b.ring.len()
}

func (b *pipeBuffer) cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return 0
	}
	return b.ring.cap()
}

// closeWrite records that the write end died and wakes waiting readers.
func (b *pipeBuffer) closeWrite() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writerGone = true
	b.readable.Broadcast()
	b.writable.Broadcast()
}

// free drops the storage. It reports false if it was already freed.
func (b *pipeBuffer) free() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return false
	}
	b.freed = true
	b.ring = nil
	b.released = nil
	b.readable.Broadcast()
	b.writable.Broadcast()
	return true
}
