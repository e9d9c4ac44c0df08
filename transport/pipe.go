package transport

import (
	"io"
	"sync"
)

// queue is one direction of a Pipe.
type queue struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

func (q *queue) push(p []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return io.ErrClosedPipe
	}
	q.buf = append(q.buf, p...)
	return nil
}

func (q *queue) pop() (byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		if q.closed {
			return 0, io.EOF
		}
		return 0, ErrNoData
	}
	b := q.buf[0]
	q.buf = q.buf[1:]
	return b, nil
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// PipeStream is one end of an in-memory duplex pipe. Writes never block.
type PipeStream struct {
	in, out *queue

	mu     sync.Mutex
	broken bool
}

// Pipe returns two connected streams: bytes written to one are read from the other.
func Pipe() (*PipeStream, *PipeStream) {
	ab, ba := &queue{}, &queue{}
	return &PipeStream{in: ba, out: ab}, &PipeStream{in: ab, out: ba}
}

func (p *PipeStream) Good() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.broken
}

// ReadByte returns ErrNoData when the pipe is empty and io.EOF once the peer has
// closed and every written byte has been read.
func (p *PipeStream) ReadByte() (byte, error) {
	b, err := p.in.pop()
	if err == io.EOF {
		p.markBroken()
	}
	return b, err
}

func (p *PipeStream) Write(b []byte) (int, error) {
	if err := p.out.push(b); err != nil {
		p.markBroken()
		return 0, err
	}
	return len(b), nil
}

func (p *PipeStream) Flush() error {
	return nil
}

// Close shuts both directions.
func (p *PipeStream) Close() error {
	p.markBroken()
	p.in.close()
	p.out.close()
	return nil
}

func (p *PipeStream) markBroken() {
	p.mu.Lock()
	p.broken = true
	p.mu.Unlock()
}
