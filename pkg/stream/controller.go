// Package stream implements the start/poll/stop state machine for time-ranged
// frame delivery over a decode session.
package stream

import (
	"errors"
	"fmt"
	"math"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/batch"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/session"
)

// tolerance absorbs float rounding between seek targets and frame timestamps.
const tolerance = 1e-6

var (
	// ErrInvalidRange is returned by Start for a negative start or an end not after start.
	ErrInvalidRange = errors.New("stream: invalid time range")

	// ErrFailed wraps the decode failure that moved a stream to Failed.
	ErrFailed = errors.New("stream: failed")

	// ErrNotStarted is returned when frames are requested before Start.
	ErrNotStarted = errors.New("stream: not started")
)

// State is the lifecycle state of a stream.
type State int

const (
	Idle State = iota
	Streaming
	// Draining means decoding has finished but delivered frames are still queued.
	Draining
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the decode session a Controller drives. *session.Session implements it.
type Session interface {
	DecodeInto(dst []byte) (frame.Frame, error)
	Seek(ts float64) error
	Position() int64
	FrameSize() int
	Width() int
	Height() int
}

// Controller streams frames of one session within a time range.
// Like the session it wraps, it is not safe for concurrent use.
type Controller struct {
	s      Session
	logger ports.Logger

	state    State
	start    float64
	end      float64 // 0 means end of stream
	err      error
	produced int64

	scratch []byte
	buf     *frame.Batch
}

// New creates an idle controller over s.
func New(s Session, log ports.Logger) *Controller {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Controller{
		s:      s,
		logger: log.WithComponent("stream"),
	}
}

// Start begins streaming frames presented within [start, end] seconds; end 0 means
// until the end of the stream. It fails without changing state when the range is
// invalid or the session cannot seek to start.
func (c *Controller) Start(start, end float64) error {
	if c.state == Failed {
		return c.err
	}
	if math.IsNaN(start) || math.IsNaN(end) || start < 0 || end < 0 || (end > 0 && end <= start) {
		return fmt.Errorf("%w: [%.3f, %.3f]", ErrInvalidRange, start, end)
	}

	// A fresh session already sits on the first frame.
	if start > 0 || c.s.Position() != 0 {
		if err := c.s.Seek(start); err != nil {
			return fmt.Errorf("stream: start at %.3fs: %w", start, err)
		}
	}

	c.start, c.end = start, end
	c.produced = 0
	c.state = Streaming
	c.logger.Debug("Streaming from %.3fs to %.3fs", start, end)
	return nil
}

// IsStreaming reports whether more frames may be produced.
func (c *Controller) IsStreaming() bool { return c.state == Streaming }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Err returns the failure that moved the stream to Failed.
func (c *Controller) Err() error { return c.err }

// Range returns the requested time range.
func (c *Controller) Range() (start, end float64) { return c.start, c.end }

// FrameSize returns the byte size of one frame of the underlying session.
func (c *Controller) FrameSize() int { return c.s.FrameSize() }

// Produced returns the number of frames delivered since Start.
func (c *Controller) Produced() int64 { return c.produced }

// Stop ends the stream. Later calls to Next report end of stream.
func (c *Controller) Stop() {
	if c.state == Failed || c.state == Stopped {
		return
	}
	c.state = Stopped
	c.logger.Debug("Stream stopped after %d frames", c.produced)
}

// Next decodes the next frame of the range into dst.
//
// It returns session.ErrEndOfStream once the range or the stream is exhausted, and
// on every call after that. A frame past the end of the range is discarded.
func (c *Controller) Next(dst []byte) (frame.Frame, error) {
	switch c.state {
	case Idle:
		return frame.Frame{}, ErrNotStarted
	case Failed:
		return frame.Frame{}, c.err
	case Streaming:
	default:
		return frame.Frame{}, session.ErrEndOfStream
	}

	for {
		f, err := c.s.DecodeInto(dst)
		if errors.Is(err, session.ErrEndOfStream) {
			c.finish("end of stream")
			return frame.Frame{}, session.ErrEndOfStream
		}
		if err != nil {
			c.state = Failed
			c.err = fmt.Errorf("%w: %w", ErrFailed, err)
			c.logger.Warn("Stream failed after %d frames: %v", c.produced, err)
			return frame.Frame{}, c.err
		}
		if c.end > 0 && f.Timestamp > c.end+tolerance {
			c.finish("end of range")
			return frame.Frame{}, session.ErrEndOfStream
		}
		if f.Timestamp < c.start-tolerance {
			continue
		}
		c.produced++
		return f, nil
	}
}

func (c *Controller) finish(reason string) {
	c.state = Stopped
	c.logger.Debug("Stream stopped at %s after %d frames", reason, c.produced)
}

// NextBatch decodes up to n frames. The returned frames view an internal buffer
// that is overwritten by the next call. After the stream stops it returns an empty
// slice and a nil error. On failure the frames decoded before it are returned with
// the error.
func (c *Controller) NextBatch(n int) ([]frame.Frame, error) {
	if c.state == Idle {
		return nil, ErrNotStarted
	}
	if n <= 0 {
		return nil, nil
	}
	if c.buf == nil || c.buf.Cap() < n {
		c.buf = frame.NewBatch(n, c.s.Width(), c.s.Height())
	}
	c.buf.Frames = c.buf.Frames[:0]

	_, err := c.fill(n, func(int) []byte {
		return c.buf.Slot(c.buf.Len())
	}, func(f frame.Frame) {
		c.buf.Frames = append(c.buf.Frames, f)
	})
	return c.buf.Frames, err
}

// NextBatchInto decodes up to n frames into consecutive slots of dst and returns
// how many were written; 0 means the stream has stopped.
func (c *Controller) NextBatchInto(dst []byte, n int) (int, error) {
	if c.state == Idle {
		return 0, ErrNotStarted
	}
	if n <= 0 {
		return 0, nil
	}
	fs := c.s.FrameSize()
	if need := n * fs; len(dst) < need {
		return 0, fmt.Errorf("%w: need %d bytes for %d frames, have %d", batch.ErrBufferTooSmall, need, n, len(dst))
	}
	return c.fill(n, func(i int) []byte {
		return dst[i*fs : (i+1)*fs]
	}, nil)
}

func (c *Controller) fill(n int, slot func(i int) []byte, add func(frame.Frame)) (int, error) {
	for i := 0; i < n; i++ {
		if c.state != Streaming {
			return i, c.terminalErr()
		}
		f, err := c.Next(slot(i))
		if errors.Is(err, session.ErrEndOfStream) {
			return i, nil
		}
		if err != nil {
			return i, err
		}
		if add != nil {
			add(f)
		}
	}
	return n, nil
}

func (c *Controller) terminalErr() error {
	if c.state == Failed {
		return c.err
	}
	return nil
}

// Frame decodes the next frame into a scratch buffer owned by the controller.
// Its Data is overwritten by the next call.
func (c *Controller) Frame() (frame.Frame, error) {
	if c.scratch == nil {
		c.scratch = make([]byte, c.s.FrameSize())
	}
	return c.Next(c.scratch)
}

var _ Session = (*session.Session)(nil)
