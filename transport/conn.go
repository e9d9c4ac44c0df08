package transport

import (
	"bufio"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// DefaultReadTimeout bounds how long ReadByte waits on an empty socket.
const DefaultReadTimeout = 5 * time.Millisecond

// ConnStream adapts a net.Conn to Stream with buffered reads and writes.
type ConnStream struct {
	conn        net.Conn
	br          *bufio.Reader // reader goroutine only
	bw          *bufio.Writer // guarded by the caller's send lock
	readTimeout time.Duration
	broken      atomic.Bool
}

// NewConnStream wraps c. readTimeout <= 0 selects DefaultReadTimeout.
func NewConnStream(c net.Conn, readTimeout time.Duration) *ConnStream {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &ConnStream{
		conn:        c,
		br:          bufio.NewReader(c),
		bw:          bufio.NewWriter(c),
		readTimeout: readTimeout,
	}
}

func (s *ConnStream) Good() bool {
	return !s.broken.Load()
}

// ReadByte returns a buffered byte, or waits up to the read timeout for one.
// A timeout yields ErrNoData; any other error marks the stream broken.
func (s *ConnStream) ReadByte() (byte, error) {
	if s.br.Buffered() == 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return 0, s.fail(err)
		}
	}
	b, err := s.br.ReadByte()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrNoData
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, ErrNoData
		}
		return 0, s.fail(err)
	}
	return b, nil
}

func (s *ConnStream) Write(p []byte) (int, error) {
	n, err := s.bw.Write(p)
	if err != nil {
		return n, s.fail(err)
	}
	return n, nil
}

func (s *ConnStream) Flush() error {
	if err := s.bw.Flush(); err != nil {
		return s.fail(err)
	}
	return nil
}

// Close closes the connection and marks the stream broken.
func (s *ConnStream) Close() error {
	s.broken.Store(true)
	return s.conn.Close()
}

// RemoteAddr returns the peer address.
func (s *ConnStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *ConnStream) fail(err error) error {
	s.broken.Store(true)
	return err
}
