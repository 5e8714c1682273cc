package fdpipe_test

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/fdpipe"
)

func newTestKernel(t *testing.T, opts ...fdpipe.Option) *fdpipe.Kernel {
	t.Helper()
	log := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.ErrorLevel)
	return fdpipe.NewKernel(append([]fdpipe.Option{fdpipe.WithLogger(log)}, opts...)...)
}

func newTestPipe(t *testing.T, capacity int) (task *fdpipe.Task, rfd, wfd int) {
	t.Helper()
	k := newTestKernel(t, fdpipe.WithCapacity(capacity))
	task = k.Spawn("test")
	rfd, wfd, err := task.Pipe()
	require.NoError(t, err)
	return task, rfd, wfd
}

func mustWrite(t *testing.T, task *fdpipe.Task, fd int, data []byte) {
	t.Helper()
	n, err := task.Write(fd, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n, "short write")
}

func mustRead(t *testing.T, task *fdpipe.Task, fd int, expected []byte) {
	t.Helper()
	buf := make([]byte, len(expected))
	n, err := task.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, len(expected), n, "short read")
	require.Equal(t, string(expected), string(buf))
}

func mustResolve(t *testing.T, task *fdpipe.Task, fd int) *fdpipe.Endpoint {
	t.Helper()
	e, err := task.Resolve(fd)
	require.NoError(t, err)
	return e
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
