// Package viteo is the high-level entry point for decoding video files into frames.
//
//	x := viteo.New(viteo.NewConfigBuilder().WithBatchSize(64).Build())
//	all, err := x.ExtractAll(ctx, "clip.mp4")
//
// Bulk extraction returns one contiguous BGRA buffer. Streaming delivers frames of a
// time range through a bounded queue fed by a background decoder.
package viteo

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/adapters/nativedecoder"
	"github.com/user/viteo/pkg/adapters/osfilesystem"
	"github.com/user/viteo/pkg/batch"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/framepool"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/queue"
	"github.com/user/viteo/pkg/session"
	"github.com/user/viteo/pkg/stream"
)

// BackendFactory creates a fresh decoder backend for each opened file.
type BackendFactory func() ports.DecoderBackend

// Extractor opens sessions and runs extraction with one Config.
type Extractor struct {
	cfg     Config
	backend BackendFactory
	fs      ports.FileSystem
	logger  ports.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithBackend replaces the native decoder.
func WithBackend(f BackendFactory) Option {
	return func(e *Extractor) { e.backend = f }
}

// WithFileSystem sets the filesystem the native decoder reads from.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(e *Extractor) { e.fs = fs }
}

// New creates an Extractor.
func New(cfg Config, opts ...Option) *Extractor {
	e := &Extractor{
		cfg:    cfg,
		fs:     osfilesystem.New(),
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.backend == nil {
		e.backend = func() ports.DecoderBackend {
			return nativedecoder.New(e.fs, nativedecoder.Options{
				Engine:     e.cfg.Engine,
				FFmpegPath: e.cfg.FFmpegPath,
			}, e.logger)
		}
	}
	return e
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Open opens a decode session. The caller must Close it.
func (e *Extractor) Open(path string) (*session.Session, error) {
	return session.Open(e.backend(), path, session.WithLogger(e.logger))
}

// ExtractAll decodes every frame of path into one BGRA batch. When decoding fails
// part way, the frames decoded so far are returned with the error.
func (e *Extractor) ExtractAll(ctx context.Context, path string) (*frame.Batch, error) {
	return batch.New(e.Open, e.logger).ExtractAll(ctx, path, e.cfg.BatchSize)
}

// Stream is a running background extraction over one session.
type Stream struct {
	*queue.Stream
	session *session.Session
	pool    *framepool.Pool
}

// Session returns the session being streamed.
func (s *Stream) Session() *session.Session { return s.session }

// Close stops the producer, releases queued frames and closes the session.
func (s *Stream) Close() error {
	err := s.Stream.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(err, s.session.Close())
}

// StreamFrames starts decoding [start, end] seconds of path in the background.
// end 0 means until the end of the stream. Range and seek failures are returned
// immediately.
func (e *Extractor) StreamFrames(ctx context.Context, path string, start, end float64) (*Stream, error) {
	s, err := e.Open(path)
	if err != nil {
		return nil, err
	}

	var pool *framepool.Pool
	if e.cfg.PoolSize > 0 {
		pool, err = framepool.New(e.cfg.PoolSize, s.Width(), s.Height())
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	qs, err := queue.Start(ctx, stream.New(s, e.logger), queue.Options{
		Capacity: e.cfg.QueueCapacity,
		Start:    start,
		End:      end,
		Pool:     pool,
		Format:   e.cfg.Format,
	}, e.logger)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		s.Close()
		return nil, err
	}
	return &Stream{Stream: qs, session: s, pool: pool}, nil
}

// BatchFunc receives each streamed batch. The frames view a buffer reused by the
// next batch.
type BatchFunc func(frames []frame.Frame) error

// StreamBatches decodes [start, end] seconds of path synchronously in batches of
// InternalBatch frames and returns the number of frames delivered.
func (e *Extractor) StreamBatches(ctx context.Context, path string, start, end float64, fn BatchFunc) (int64, error) {
	s, err := e.Open(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	ctrl := stream.New(s, e.logger)
	if err := ctrl.Start(start, end); err != nil {
		return 0, err
	}
	defer ctrl.Stop()

	var n int64
	for ctrl.IsStreaming() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		frames, err := ctrl.NextBatch(e.cfg.InternalBatch)
		if len(frames) > 0 {
			n += int64(len(frames))
			if ferr := fn(frames); ferr != nil {
				return n, ferr
			}
		}
		if err != nil {
			return n, fmt.Errorf("viteo: stream %s: %w", path, err)
		}
	}
	return n, nil
}

// Package-level helpers use a default Extractor.

// Open opens path with the default configuration.
func Open(path string) (*session.Session, error) {
	return New(NewConfigBuilder().Build()).Open(path)
}

// ExtractAll decodes every frame of path with the default configuration.
func ExtractAll(ctx context.Context, path string) (*frame.Batch, error) {
	return New(NewConfigBuilder().Build()).ExtractAll(ctx, path)
}

// StreamFrames streams [start, end] seconds of path with the default configuration.
func StreamFrames(ctx context.Context, path string, start, end float64) (*Stream, error) {
	return New(NewConfigBuilder().Build()).StreamFrames(ctx, path, start, end)
}
