package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/framepool"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/session"
	"github.com/user/viteo/pkg/stream"
)

// Options configures a background stream.
type Options struct {
	// Capacity bounds the queue; 0 means unbounded.
	Capacity int
	// Start and End select the time range in seconds; End 0 means the whole stream.
	Start float64
	End   float64
	// Pool, when set, supplies the frame buffers. Otherwise each frame is allocated.
	Pool *framepool.Pool
	// Format converts each frame before it is queued. Conversions always copy.
	Format frame.Format
}

// Stream is a decode loop running on its own goroutine.
type Stream struct {
	q      *Queue
	ctrl   *stream.Controller
	opts   Options
	logger ports.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	err      error
	produced int64
	ended    bool // sentinel consumed
}

// Start begins streaming ctrl in the background. Range and seek errors are
// returned immediately; failures during decoding are reported by Err after the
// sentinel has been read.
func Start(ctx context.Context, ctrl *stream.Controller, opts Options, log ports.Logger) (*Stream, error) {
	if log == nil {
		log = logger.NewNoop()
	}
	if err := ctrl.Start(opts.Start, opts.End); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	st := &Stream{
		q:      New(opts.Capacity),
		ctrl:   ctrl,
		opts:   opts,
		logger: log.WithComponent("queue"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go st.run(ctx)
	return st, nil
}

func (st *Stream) run(ctx context.Context) {
	defer close(st.done)
	// The sentinel goes out on every exit path so the consumer is never stranded.
	defer st.q.Finish()
	defer st.ctrl.Stop()

	for {
		if ctx.Err() != nil {
			st.logger.Debug("Producer canceled after %d frames", st.Produced())
			return
		}

		it, err := st.decode(ctx)
		if errors.Is(err, session.ErrEndOfStream) {
			st.logger.Debug("Producer finished after %d frames", st.Produced())
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				st.setErr(err)
				st.logger.Warn("Producer failed after %d frames: %v", st.Produced(), err)
			}
			return
		}

		if err := st.q.Push(ctx, it); err != nil {
			it.Release()
			st.logger.Debug("Producer stopped after %d frames: %v", st.Produced(), err)
			return
		}

		st.mu.Lock()
		st.produced++
		st.mu.Unlock()
	}
}

// decode produces the next queue item from a pool slot or a fresh allocation.
func (st *Stream) decode(ctx context.Context) (Item, error) {
	var buf *framepool.Buffer
	var dst []byte
	if st.opts.Pool != nil {
		b, err := st.opts.Pool.Acquire(ctx)
		if err != nil {
			return Item{}, err
		}
		buf, dst = b, b.Data
	} else {
		dst = make([]byte, st.ctrl.FrameSize())
	}

	f, err := st.ctrl.Next(dst)
	if err != nil {
		if buf != nil {
			buf.Release()
		}
		return Item{}, err
	}

	if st.opts.Format != frame.FormatBGRA {
		c, err := f.Convert(st.opts.Format)
		if buf != nil {
			buf.Release()
			buf = nil
		}
		if err != nil {
			return Item{}, err
		}
		f = c
	}
	return Item{Frame: f, Buffer: buf}, nil
}

func (st *Stream) setErr(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err == nil {
		st.err = err
	}
}

// Next returns the next queued item, blocking until one is available or ctx is
// done. An item with End set marks the end of the stream and is returned again on
// later calls. The caller must Release each frame item once done with it.
func (st *Stream) Next(ctx context.Context) (Item, error) {
	it, err := st.q.Pop(ctx)
	if err != nil {
		return Item{}, err
	}
	if it.End {
		st.mu.Lock()
		st.ended = true
		st.mu.Unlock()
	}
	return it, nil
}

// Stop asks the producer to finish. At most the frame being decoded is still
// queued; the sentinel follows.
func (st *Stream) Stop() {
	st.cancel()
}

// Wait blocks until the producer has exited and returns its error.
func (st *Stream) Wait() error {
	<-st.done
	return st.Err()
}

// Close stops the producer, waits for it and releases every frame still queued.
func (st *Stream) Close() error {
	st.Stop()
	err := st.Wait()
	st.q.Close()
	return err
}

// Err returns the decode failure that ended the stream, if any.
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Produced returns the number of frames queued so far.
func (st *Stream) Produced() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.produced
}

// State reports Streaming while the producer runs, Draining once it has finished
// but the sentinel is unread, and Stopped or Failed afterwards.
func (st *Stream) State() stream.State {
	select {
	case <-st.done:
	default:
		return stream.Streaming
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.ended {
		return stream.Draining
	}
	if st.err != nil {
		return stream.Failed
	}
	return stream.Stopped
}

// ForEach streams ctrl synchronously, calling fn for each frame until it returns
// false, the stream ends or ctx is done. ctrl must already be started. The frame
// passed to fn is borrowed and overwritten by the next decode. It returns the
// number of frames delivered.
func ForEach(ctx context.Context, ctrl *stream.Controller, fn func(frame.Frame) bool) (int64, error) {
	var n int64
	for {
		if err := ctx.Err(); err != nil {
			ctrl.Stop()
			return n, err
		}

		f, err := ctrl.Frame()
		if errors.Is(err, session.ErrEndOfStream) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		n++
		if !fn(f) {
			ctrl.Stop()
			return n, nil
		}
	}
}
