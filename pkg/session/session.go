// Package session drives one opened video through a ports.DecoderBackend.
//
// A Session pulls frames one at a time in presentation order, repositions by
// timestamp or frame index, and owns the backend until Close. It is not safe for
// concurrent use; independent sessions on different files may run in parallel.
package session

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/ports"
)

var (
	// ErrOpen is returned when a file cannot be opened for decoding.
	ErrOpen = errors.New("session: open failed")

	// ErrSeek is returned when a reposition is rejected. The session stays usable.
	ErrSeek = errors.New("session: seek failed")

	// ErrDecode is returned when decoding fails mid-stream. The session is unusable afterwards.
	ErrDecode = errors.New("session: decode failed")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrEndOfStream signals that every frame has been delivered. It is not a failure.
	ErrEndOfStream = io.EOF
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used by the session.
func WithLogger(l ports.Logger) Option {
	return func(s *Session) {
		s.logger = l.WithComponent("session")
	}
}

// Session is an open video decode session.
type Session struct {
	backend ports.DecoderBackend
	path    string
	info    ports.VideoInfo
	logger  ports.Logger

	scratch  []byte
	position int64   // index of the next frame to decode
	current  float64 // timestamp of the last delivered frame, or the last seek target
	eos      bool
	err      error // sticky decode failure
	closed   bool
	released bool // backend closed

	cur     frame.Frame
	iterErr error
}

// Open opens path on backend. On failure the backend is closed and nothing is retained.
func Open(backend ports.DecoderBackend, path string, opts ...Option) (*Session, error) {
	s := &Session{
		backend: backend,
		path:    path,
		logger:  logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	info, err := backend.Open(path)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		backend.Close()
		return nil, fmt.Errorf("%w: %s: invalid dimensions %dx%d", ErrOpen, path, info.Width, info.Height)
	}
	if info.FPS <= 0 || math.IsNaN(info.FPS) || math.IsInf(info.FPS, 0) {
		backend.Close()
		return nil, fmt.Errorf("%w: %s: invalid frame rate %v", ErrOpen, path, info.FPS)
	}
	if info.Duration <= 0 && info.FrameCount > 0 {
		info.Duration = float64(info.FrameCount) / info.FPS
	}
	s.info = info

	s.logger.Debug("Opened %s: %dx%d @ %.2f fps, %d frames (%s)",
		path, info.Width, info.Height, info.FPS, info.FrameCount, info.Codec)
	return s, nil
}

// Width returns the frame width in pixels.
func (s *Session) Width() int { return s.info.Width }

// Height returns the frame height in pixels.
func (s *Session) Height() int { return s.info.Height }

// FPS returns the nominal frame rate.
func (s *Session) FPS() float64 { return s.info.FPS }

// TotalFrames returns the frame count from container metadata.
// It is an upper bound; a full decode may deliver fewer frames.
func (s *Session) TotalFrames() int64 { return s.info.FrameCount }

// Duration returns the stream duration in seconds.
func (s *Session) Duration() float64 { return s.info.Duration }

// Codec returns the codec name reported by the backend.
func (s *Session) Codec() string { return s.info.Codec }

// Path returns the opened file path.
func (s *Session) Path() string { return s.path }

// Info returns the stream properties reported at open.
func (s *Session) Info() ports.VideoInfo { return s.info }

// FrameSize returns the byte size of one decoded frame.
func (s *Session) FrameSize() int { return frame.Size(s.info.Width, s.info.Height) }

// Position returns the index of the next frame DecodeNext will deliver.
func (s *Session) Position() int64 { return s.position }

// CurrentTime returns the timestamp of the last delivered frame or seek target.
func (s *Session) CurrentTime() float64 { return s.current }

// IsOpen reports whether the session can still decode.
func (s *Session) IsOpen() bool { return !s.closed && s.err == nil }

// Done reports whether the end of the stream has been reached.
func (s *Session) Done() bool { return s.eos }

// String returns a short description such as "<Session 1920x1080 @ 30.00 fps>".
func (s *Session) String() string {
	return fmt.Sprintf("<Session %dx%d @ %.2f fps>", s.info.Width, s.info.Height, s.info.FPS)
}

// DecodeNext decodes the next frame into a scratch buffer owned by the session.
// The returned frame is borrowed: its Data is overwritten by the next decode call.
func (s *Session) DecodeNext() (frame.Frame, error) {
	if err := s.usable(); err != nil {
		return frame.Frame{}, err
	}
	if s.scratch == nil {
		s.scratch = make([]byte, s.FrameSize())
	}
	return s.DecodeInto(s.scratch)
}

// DecodeInto decodes the next frame directly into dst, which must hold FrameSize bytes.
//
// It returns ErrEndOfStream once the stream is exhausted, and again on every later call.
// Any other failure wraps ErrDecode, closes the backend and is returned from then on.
func (s *Session) DecodeInto(dst []byte) (frame.Frame, error) {
	if err := s.usable(); err != nil {
		return frame.Frame{}, err
	}
	if s.eos {
		return frame.Frame{}, ErrEndOfStream
	}
	size := s.FrameSize()
	if len(dst) < size {
		return frame.Frame{}, fmt.Errorf("%w: need %d bytes, have %d", frame.ErrShortBuffer, size, len(dst))
	}

	df, err := s.backend.DecodeNext(dst[:size])
	if errors.Is(err, io.EOF) {
		s.eos = true
		s.logger.Debug("End of stream after %d frames", s.position)
		return frame.Frame{}, ErrEndOfStream
	}
	if err != nil {
		s.err = fmt.Errorf("%w: frame %d: %w", ErrDecode, s.position, err)
		s.logger.Warn("Decode failed at frame %d: %v", s.position, err)
		s.release()
		return frame.Frame{}, s.err
	}

	s.position = df.Index + 1
	s.current = df.Timestamp
	return frame.Frame{
		Data:      dst[:size:size],
		Width:     s.info.Width,
		Height:    s.info.Height,
		Channels:  frame.Channels,
		Format:    frame.FormatBGRA,
		Number:    df.Index,
		Timestamp: df.Timestamp,
	}, nil
}

// Seek repositions to the first frame presented at or after ts seconds.
// ts must lie within [0, Duration]. On failure the position is unchanged.
func (s *Session) Seek(ts float64) error {
	if err := s.usable(); err != nil {
		return err
	}
	if math.IsNaN(ts) || ts < 0 || (s.info.Duration > 0 && ts > s.info.Duration) {
		return fmt.Errorf("%w: %.3fs outside [0, %.3f]", ErrSeek, ts, s.info.Duration)
	}
	if !s.info.Seekable {
		return fmt.Errorf("%w: %s is not seekable", ErrSeek, s.path)
	}

	idx, err := s.backend.Seek(ts)
	if err != nil {
		return fmt.Errorf("%w: %.3fs: %w", ErrSeek, ts, err)
	}
	s.position = idx
	s.current = ts
	s.eos = false
	s.logger.Debug("Seeked to %.3fs (frame %d)", ts, idx)
	return nil
}

// SeekFrame repositions to the frame with the given index.
func (s *Session) SeekFrame(index int64) error {
	if index < 0 {
		return fmt.Errorf("%w: negative frame index %d", ErrSeek, index)
	}
	return s.Seek(float64(index) / s.info.FPS)
}

// Reset restarts iteration from the first frame.
func (s *Session) Reset() error {
	return s.Seek(0)
}

// Next advances to the next frame for range-style iteration:
//
//	for s.Next() {
//		f := s.Frame()
//	}
//	if err := s.Err(); err != nil { ... }
func (s *Session) Next() bool {
	f, err := s.DecodeNext()
	if err != nil {
		s.cur = frame.Frame{}
		if !errors.Is(err, ErrEndOfStream) {
			s.iterErr = err
		}
		return false
	}
	s.cur = f
	return true
}

// Frame returns the frame loaded by the last successful Next.
func (s *Session) Frame() frame.Frame { return s.cur }

// Err returns the first failure seen by Next, if any. End of stream is not reported.
func (s *Session) Err() error { return s.iterErr }

// Close releases the backend. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.scratch = nil
	s.cur = frame.Frame{}
	return s.release()
}

func (s *Session) usable() error {
	if s.err != nil {
		return s.err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Session) release() error {
	if s.released {
		return nil
	}
	s.released = true
	return s.backend.Close()
}
