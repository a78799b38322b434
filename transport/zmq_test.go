package transport

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	endpointTCP = "tcp://127.0.0.1:28332"

	testTimeout = 5 * time.Second
)

// timeoutErr is the net.Error a socket read deadline produces.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type recvResult struct {
	frames [][]byte
	err    error
}

// fakeSocket replays scripted receive results. Once closed, a pending or
// later Receive returns closeErr, the way a gozmq connection does.
type fakeSocket struct {
	results chan recvResult

	closeErr  error
	closeOnce sync.Once
	closed    chan struct{}

	mu       sync.Mutex
	receives int
}

func newFakeSocket(closeErr error) *fakeSocket {
	return &fakeSocket{
		results:  make(chan recvResult, 10),
		closeErr: closeErr,
		closed:   make(chan struct{}),
	}
}

func (f *fakeSocket) Receive([][]byte) ([][]byte, error) {
	f.mu.Lock()
	f.receives++
	f.mu.Unlock()

	select {
	case res := <-f.results:
		return res.frames, res.err
	case <-f.closed:
		return nil, f.closeErr
	}
}

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
	})

	return nil
}

func (f *fakeSocket) numReceives() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.receives
}

// TestZMQConnRead checks how socket results map onto ReadMultipart.
func TestZMQConnRead(t *testing.T) {
	t.Parallel()

	resetErr := errors.New("connection reset by peer")

	tests := []struct {
		name    string
		results []recvResult
		expErr  error
	}{
		{
			name: "timeouts retried",
			results: []recvResult{
				{err: timeoutErr{}},
				{err: timeoutErr{}},
				{frames: frames("hashtx", "h")},
			},
		},
		{
			name:    "eof is a clean close",
			results: []recvResult{{err: io.EOF}},
			expErr:  ErrConnClosed,
		},
		{
			name:    "other errors wrapped",
			results: []recvResult{{err: resetErr}},
			expErr:  resetErr,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			sock := newFakeSocket(io.EOF)
			for _, res := range test.results {
				sock.results <- res
			}
			conn := newZMQConn(endpointTCP, sock)

			got, err := conn.ReadMultipart()
			require.Equal(t, len(test.results), sock.numReceives())
			if test.expErr != nil {
				require.ErrorIs(t, err, test.expErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, frames("hashtx", "h"), got)
		})
	}
}

// TestZMQConnClose checks a read blocked on the socket returns
// ErrConnClosed once the connection is closed, whatever error the socket
// itself reports, and that later reads don't touch the socket.
func TestZMQConnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	closeErrs := []error{
		io.EOF, errors.New("use of closed network connection"),
	}
	for _, closeErr := range closeErrs {
		sock := newFakeSocket(closeErr)
		conn := newZMQConn(endpointTCP, sock)

		errChan := make(chan error, 1)
		go func() {
			_, err := conn.ReadMultipart()
			errChan <- err
		}()

		require.Eventually(t, func() bool {
			return sock.numReceives() == 1
		}, testTimeout, 10*time.Millisecond)

		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close())

		select {
		case err := <-errChan:
			require.ErrorIs(t, err, ErrConnClosed)
		case <-time.After(testTimeout):
			t.Fatalf("read not interrupted by close")
		}

		_, err := conn.ReadMultipart()
		require.ErrorIs(t, err, ErrConnClosed)
		require.Equal(t, 1, sock.numReceives())
	}
}
