// Package framepool provides a fixed set of reusable frame buffers.
//
// All buffers are slices of one contiguous allocation made at creation time.
// Acquire blocks while every buffer is in use, which is how bulk producers are
// throttled to the pace of their consumer.
package framepool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/viteo/pkg/frame"
)

var (
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("framepool: closed")

	// ErrForeignBuffer is returned when releasing a buffer that belongs to another pool.
	ErrForeignBuffer = errors.New("framepool: buffer does not belong to this pool")

	// ErrDoubleRelease is returned when releasing a buffer that is not acquired.
	ErrDoubleRelease = errors.New("framepool: buffer released twice")

	// ErrInvalidSize is returned for a non-positive pool size or frame dimension.
	ErrInvalidSize = errors.New("framepool: invalid size")
)

// Buffer is one pool slot. Data holds exactly one native frame.
//
// A frame decoded into Data stays valid until the buffer is released; after that
// the slot may be handed to the producer again.
type Buffer struct {
	Data  []byte
	index int
	pool  *Pool
}

// Index returns the slot number within the pool.
func (b *Buffer) Index() int { return b.index }

// Release returns the buffer to its pool.
func (b *Buffer) Release() error {
	if b == nil || b.pool == nil {
		return ErrForeignBuffer
	}
	return b.pool.Release(b)
}

// Pool is a bounded set of equally sized frame buffers.
type Pool struct {
	width     int
	height    int
	frameSize int
	slab      []byte
	buffers   []*Buffer
	free      chan *Buffer

	mu        sync.Mutex
	inUse     []bool
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a pool of size buffers, each holding one width x height native frame.
func New(size, width, height int) (*Pool, error) {
	if size <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %d buffers of %dx%d", ErrInvalidSize, size, width, height)
	}

	fs := frame.Size(width, height)
	p := &Pool{
		width:     width,
		height:    height,
		frameSize: fs,
		slab:      make([]byte, size*fs),
		buffers:   make([]*Buffer, size),
		free:      make(chan *Buffer, size),
		inUse:     make([]bool, size),
		done:      make(chan struct{}),
	}
	for i := range p.buffers {
		b := &Buffer{
			Data:  p.slab[i*fs : (i+1)*fs : (i+1)*fs],
			index: i,
			pool:  p,
		}
		p.buffers[i] = b
		p.free <- b
	}
	return p, nil
}

// Acquire takes a free buffer, blocking until one is released, ctx is done or the
// pool is closed.
func (p *Pool) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	select {
	case b := <-p.free:
		return p.checkout(b)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	}
}

// TryAcquire takes a free buffer without blocking.
func (p *Pool) TryAcquire() (*Buffer, bool) {
	select {
	case b := <-p.free:
		b, err := p.checkout(b)
		return b, err == nil
	default:
		return nil, false
	}
}

func (p *Pool) checkout(b *Buffer) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.free <- b
		return nil, ErrClosed
	}
	p.inUse[b.index] = true
	return b, nil
}

// Release returns b to the pool.
func (p *Pool) Release(b *Buffer) error {
	if b == nil || b.pool != p {
		return ErrForeignBuffer
	}

	p.mu.Lock()
	if !p.inUse[b.index] {
		p.mu.Unlock()
		return fmt.Errorf("%w: slot %d", ErrDoubleRelease, b.index)
	}
	p.inUse[b.index] = false
	p.mu.Unlock()

	// The channel holds every buffer, so this never blocks.
	p.free <- b
	return nil
}

// Close wakes blocked Acquire calls and rejects new ones.
// Buffers already handed out can still be read and released.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Size returns the number of buffers in the pool.
func (p *Pool) Size() int { return len(p.buffers) }

// Available returns the number of buffers not currently acquired.
func (p *Pool) Available() int { return len(p.free) }

// FrameSize returns the byte size of each buffer.
func (p *Pool) FrameSize() int { return p.frameSize }

// Width returns the frame width the pool was created for.
func (p *Pool) Width() int { return p.width }

// Height returns the frame height the pool was created for.
func (p *Pool) Height() int { return p.height }
