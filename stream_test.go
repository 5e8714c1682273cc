package fdpipe_test

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/fdpipe"
)

func newTestStream(t *testing.T, capacity int) (*fdpipe.Reader, *fdpipe.Writer) {
	t.Helper()
	task, rfd, wfd := newTestPipe(t, capacity)
	r, err := task.Reader(rfd)
	require.NoError(t, err)
	w, err := task.Writer(wfd)
	require.NoError(t, err)
	t.Cleanup(func() {
		w.Close()
		r.Close()
	})
	return r, w
}

func TestStreamBasic(t *testing.T) {
	r, w := newTestStream(t, 10)

	data := []byte("hello world")
	var wg sync.WaitGroup
	wg.Go(func() {
		_, err := w.Write(data)
		assert.NoError(t, err)
		w.Close()
	})

	buf := make([]byte, len(data))
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf)

	_, err = r.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	wg.Wait()
}

func TestStreamBlockingWrite(t *testing.T) {
	r, w := newTestStream(t, 2)

	data := []byte("hello")
	var (
		wg       sync.WaitGroup
		writeErr error
	)
	wg.Go(func() {
		_, writeErr = w.Write(data)
	})

	time.Sleep(10 * time.Millisecond)

	buf := make([]byte, len(data))
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)

	wg.Wait()
	require.NoError(t, writeErr)
	assert.Equal(t, data, buf)
}

func TestStreamReadAfterWriterClose(t *testing.T) {
	r, w := newTestStream(t, 10)

	_, err := w.Write([]byte("test"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "test", string(data))

	_, err = r.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamEOFWhenMarkerDropped(t *testing.T) {
	r, w := newTestStream(t, 4)

	_, err := w.Write([]byte("full"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "full", string(data))
}

func TestStreamWriteFailsAfterReaderClose(t *testing.T) {
	r, w := newTestStream(t, 10)
	require.NoError(t, r.Close())

	_, err := w.Write([]byte("test"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStreamReadAfterReaderClose(t *testing.T) {
	r, _ := newTestStream(t, 10)
	require.NoError(t, r.Close())

	_, err := r.Read(make([]byte, 1))
	require.ErrorIs(t, err, fdpipe.ErrInvalidDescriptor)
}

func TestStreamWrongDirection(t *testing.T) {
	task, rfd, wfd := newTestPipe(t, 4)

	_, err := task.Reader(wfd)
	require.ErrorIs(t, err, fdpipe.ErrWrongDirection)
	_, err = task.Writer(rfd)
	require.ErrorIs(t, err, fdpipe.ErrWrongDirection)
}

func TestStreamWriteTo(t *testing.T) {
	r, w := newTestStream(t, 10)

	input := "hello world from WriteTo"
	var wg sync.WaitGroup
	wg.Go(func() {
		defer w.Close()
		_, err := w.Write([]byte(input))
		assert.NoError(t, err)
	})

	var output bytes.Buffer
	n, err := r.WriteTo(&output)
	require.NoError(t, err)
	assert.Equal(t, int64(len(input)), n)
	assert.Equal(t, input, output.String())
	wg.Wait()
}

func TestStreamReadFrom(t *testing.T) {
	r, w := newTestStream(t, 10)

	input := "hello world from ReadFrom"
	var wg sync.WaitGroup
	wg.Go(func() {
		defer w.Close()
		n, err := w.ReadFrom(bytes.NewReader([]byte(input)))
		assert.NoError(t, err)
		assert.Equal(t, int64(len(input)), n)
	})

	var output bytes.Buffer
	n, err := io.Copy(&output, r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(input)), n)
	assert.Equal(t, input, output.String())
	wg.Wait()
}

func TestStreamIntegrity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		size     int
		chunk    int
	}{
		{name: "one write", capacity: 1024, size: 1 << 20, chunk: 1 << 20},
		{name: "odd chunks", capacity: 64, size: 100 << 10, chunk: 17},
		{name: "chunks wider than the buffer", capacity: 7, size: 10 << 10, chunk: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, w := newTestStream(t, tt.capacity)

			// 251 is prime so the pattern never lines up with the buffer size
			sent := make([]byte, tt.size)
			for i := range sent {
				sent[i] = byte(i % 251)
			}

			var (
				g   errgroup.Group
				got bytes.Buffer
			)
			g.Go(func() error {
				defer w.Close()
				for rest := sent; len(rest) > 0; {
					n := min(tt.chunk, len(rest))
					if _, err := w.Write(rest[:n]); err != nil {
						return err
					}
					rest = rest[n:]
				}
				return nil
			})
			g.Go(func() error {
				_, err := io.Copy(&got, r)
				return err
			})
			require.NoError(t, g.Wait())
			require.Equal(t, len(sent), got.Len())
			require.True(t, bytes.Equal(sent, got.Bytes()), "received bytes differ from sent bytes")
		})
	}
}

func TestStreamDoubleClose(t *testing.T) {
	r, w := newTestStream(t, 10)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestStreamCloseWhileBlocked(t *testing.T) {
	t.Run("CloseWhileReading", func(t *testing.T) {
		r, _ := newTestStream(t, 1)

		var (
			wg      sync.WaitGroup
			readErr error
		)
		wg.Go(func() {
			_, readErr = r.Read(make([]byte, 10))
		})

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, r.Close())

		wg.Wait()
		require.ErrorIs(t, readErr, io.ErrClosedPipe)
	})

	t.Run("CloseWhileWriting", func(t *testing.T) {
		r, w := newTestStream(t, 1)

		_, err := w.Write([]byte("x"))
		require.NoError(t, err)

		var (
			wg       sync.WaitGroup
			writeErr error
		)
		wg.Go(func() {
			_, writeErr = w.Write([]byte("will block"))
		})

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, r.Close())

		wg.Wait()
		require.ErrorIs(t, writeErr, io.ErrClosedPipe)
	})

	t.Run("WriterClosedWhileWriting", func(t *testing.T) {
		r, w := newTestStream(t, 1)

		_, err := w.Write([]byte("x"))
		require.NoError(t, err)

		var (
			wg       sync.WaitGroup
			writeErr error
			written  int
		)
		wg.Go(func() {
			written, writeErr = w.Write([]byte("yz"))
		})

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, w.Close())
		wg.Wait()
		require.ErrorIs(t, writeErr, io.ErrClosedPipe)
		assert.Zero(t, written)

		done := make(chan []byte)
		go func() {
			got, _ := io.ReadAll(r)
			done <- got
		}()
		select {
		case got := <-done:
			assert.Equal(t, "x", string(got))
		case <-time.After(time.Second):
			t.Fatal("reader did not see the end of stream")
		}
	})

	t.Run("SharedReaderClosedWhileReading", func(t *testing.T) {
		k := newTestKernel(t, fdpipe.WithCapacity(16))
		parent := k.Spawn("parent")
		rfd, wfd, err := parent.Pipe()
		require.NoError(t, err)
		child, err := k.Fork(parent, "child")
		require.NoError(t, err)

		r, err := parent.Reader(rfd)
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			readErr error
			read    int
		)
		wg.Go(func() {
			read, readErr = r.Read(make([]byte, 16))
		})

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, r.Close())
		wg.Wait()
		require.ErrorIs(t, readErr, io.ErrClosedPipe)
		assert.Zero(t, read)

		mustWrite(t, child, wfd, []byte("secret"))
		mustRead(t, child, rfd, []byte("secret"))
	})
}

func TestStreamReadFromWithReadError(t *testing.T) {
	_, w := newTestStream(t, 10)

	readErr := errors.New("read failed")
	_, err := w.ReadFrom(&failingReader{data: []byte("test data"), failAfter: 4, err: readErr})
	require.ErrorIs(t, err, readErr)
}

func TestStreamWriteToWithShortWrite(t *testing.T) {
	r, w := newTestStream(t, 10)

	_, err := w.Write([]byte("test data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = r.WriteTo(&shortWriter{limit: 4})
	require.ErrorIs(t, err, io.ErrShortWrite)
}

type shortWriter struct {
	written int
	limit   int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	n := min(len(p), w.limit-w.written)
	w.written += n
	return n, nil
}

type failingReader struct {
	err       error
	data      []byte
	pos       int
	failAfter int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.pos >= r.failAfter {
		return 0, r.err
	}
	n := copy(p, r.data[r.pos:r.failAfter])
	r.pos += n
	return n, nil
}
