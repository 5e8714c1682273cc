package fdpipe

// The methods below are the integer-result call surface: they look up the
// calling task by pid and report failure as -1. Diagnostics go to the logger.

// Pipe creates a pipe for task pid and stores the read and write descriptors
// in fds[0] and fds[1]. It returns 0, or -1 on failure.
func (k *Kernel) Pipe(pid int, fds *[2]int) int {
	t, ok := k.caller("pipe", pid)
	if !ok {
		return -1
	}
	rfd, wfd, err := t.Pipe()
	if err != nil {
		return -1
	}
	fds[0], fds[1] = rfd, wfd
	return 0
}

// PipeRead reads up to maxCount bytes from fd into buf and writes a NUL byte
// right after the last delivered byte, so buf must hold at least maxCount+1
// bytes.
// It returns the number of bytes read, or -1 on failure.
func (k *Kernel) PipeRead(pid, fd int, buf []byte, maxCount int) int {
	const op = "pipe_read"
	t, ok := k.caller(op, pid)
	if !ok {
		return -1
	}
	if maxCount < 0 || len(buf) < maxCount+1 {
		t.log.Warn().Int("fd", fd).Int("max", maxCount).Int("len", len(buf)).Msg("pipe_read: buffer too small")
		return -1
	}
	n, err := t.Read(fd, buf[:maxCount])
	if err != nil {
		return -1
	}
	buf[n] = 0
	return n
}

// PipeWrite writes the first count bytes of buf to fd. It returns the number
// of bytes written, which is short when the pipe fills up, or -1 on failure.
func (k *Kernel) PipeWrite(pid, fd int, buf []byte, count int) int {
	const op = "pipe_write"
	t, ok := k.caller(op, pid)
	if !ok {
		return -1
	}
	if count < 0 || count > len(buf) {
		t.log.Warn().Int("fd", fd).Int("count", count).Int("len", len(buf)).Msg("pipe_write: count out of range")
		return -1
	}
	n, err := t.Write(fd, buf[:count])
	if err != nil {
		return -1
	}
	return n
}

// PipeClose closes fd for task pid. It returns 0, or -1 on failure.
func (k *Kernel) PipeClose(pid, fd int) int {
	t, ok := k.caller("pipe_close", pid)
	if !ok {
		return -1
	}
	if err := t.Close(fd); err != nil {
		return -1
	}
	return 0
}

func (k *Kernel) caller(op string, pid int) (*Task, bool) {
	t, ok := k.Task(pid)
	if !ok {
		k.log.Warn().Str("op", op).Int("pid", pid).Err(ErrNoSuchTask).Msg("pipe operation failed")
	}
	return t, ok
}
