// Package pipe implements a bounded in-memory byte pipe used to join
// converter stages. Unlike io.Pipe it buffers a fixed ring of chunks, so a
// producer can run ahead of the consumer by up to the ring size before
// blocking.
package pipe

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Write after the read side has been closed.
var ErrClosed = errors.New("pipe: read side closed")

const (
	// DefaultChunks is the ring size used by New.
	DefaultChunks = 16
	// maxChunk caps the size of a single buffered chunk; larger writes are
	// split across chunks.
	maxChunk = 32 * 1024
)

// Pipe is a single-producer single-consumer bounded byte pipe. The zero
// value is not usable; construct with New.
type Pipe struct {
	ch chan []byte

	mu   sync.Mutex
	werr error // error to surface to the reader after the buffer drains
	wdon bool  // write side closed

	rdone chan struct{} // closed when the read side is closed
	ronce sync.Once
	wonce sync.Once

	cur []byte // chunk currently being drained by Read
}

// New creates a pipe buffering up to chunks chunks. chunks <= 0 selects
// DefaultChunks.
func New(chunks int) *Pipe {
	if chunks <= 0 {
		chunks = DefaultChunks
	}
	return &Pipe{
		ch:    make(chan []byte, chunks),
		rdone: make(chan struct{}),
	}
}

// Write copies b into the ring, blocking while the ring is full. It fails
// with ErrClosed once the reader has closed its end.
func (p *Pipe) Write(b []byte) (int, error) {
	total := 0
	for len(b) > 0 {
		n := len(b)
		if n > maxChunk {
			n = maxChunk
		}
		chunk := make([]byte, n)
		copy(chunk, b[:n])
		select {
		case p.ch <- chunk:
			total += n
			b = b[n:]
		case <-p.rdone:
			return total, ErrClosed
		}
	}
	return total, nil
}

// CloseWrite marks the end of the stream; the reader sees io.EOF after
// draining buffered chunks.
func (p *Pipe) CloseWrite() error { return p.CloseWriteWithError(nil) }

// CloseWriteWithError marks the end of the stream with err; the reader sees
// err (or io.EOF when nil) after draining buffered chunks.
func (p *Pipe) CloseWriteWithError(err error) error {
	p.wonce.Do(func() {
		p.mu.Lock()
		p.werr = err
		p.wdon = true
		p.mu.Unlock()
		close(p.ch)
	})
	return nil
}

// Read drains buffered chunks in order. After the write side closes, Read
// returns the close error, or io.EOF when the writer closed cleanly.
func (p *Pipe) Read(b []byte) (int, error) {
	for len(p.cur) == 0 {
		chunk, ok := <-p.ch
		if !ok {
			p.mu.Lock()
			err := p.werr
			p.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		p.cur = chunk
	}
	n := copy(b, p.cur)
	p.cur = p.cur[n:]
	return n, nil
}

// Close closes the read side. A blocked or subsequent Write fails with
// ErrClosed, which producers treat as cancellation.
func (p *Pipe) Close() error {
	p.ronce.Do(func() { close(p.rdone) })
	return nil
}

var (
	_ io.Writer     = (*Pipe)(nil)
	_ io.ReadCloser = (*Pipe)(nil)
)
