// Package batch pulls runs of frames from a decode session into contiguous buffers.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/framepool"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/session"
)

// DefaultBatchSize is used when a non-positive batch size is requested.
const DefaultBatchSize = 32

// ErrBufferTooSmall is returned when a destination cannot hold the requested frames.
var ErrBufferTooSmall = errors.New("batch: destination buffer too small")

// Source decodes frames into caller buffers. *session.Session implements it.
type Source interface {
	DecodeInto(dst []byte) (frame.Frame, error)
	FrameSize() int
}

// ExtractBatch decodes up to maxCount frames into consecutive slots of dst and
// returns how many were written. A count of 0 with a nil error means the source
// is exhausted. On a decode failure the frames written before it remain valid and
// their count is returned with the error.
func ExtractBatch(src Source, dst []byte, maxCount int) (int, error) {
	if maxCount <= 0 {
		return 0, nil
	}
	fs := src.FrameSize()
	if need := maxCount * fs; len(dst) < need {
		return 0, fmt.Errorf("%w: need %d bytes for %d frames, have %d", ErrBufferTooSmall, need, maxCount, len(dst))
	}
	return fill(src, maxCount, func(i int) []byte {
		return dst[i*fs : (i+1)*fs]
	}, nil)
}

// ExtractFrames decodes up to maxCount frames into the unused slots of b,
// appending their metadata to b.Frames.
func ExtractFrames(src Source, b *frame.Batch, maxCount int) (int, error) {
	if free := b.Cap() - b.Len(); maxCount > free {
		return 0, fmt.Errorf("%w: %d free slots, %d requested", ErrBufferTooSmall, free, maxCount)
	}
	if b.FrameSize() < src.FrameSize() {
		return 0, fmt.Errorf("%w: slot %d bytes, frame %d bytes", ErrBufferTooSmall, b.FrameSize(), src.FrameSize())
	}
	return fill(src, maxCount, func(int) []byte {
		return b.Slot(b.Len())
	}, func(f frame.Frame) {
		b.Frames = append(b.Frames, f)
	})
}

func fill(src Source, maxCount int, slot func(i int) []byte, add func(frame.Frame)) (int, error) {
	for n := 0; n < maxCount; n++ {
		f, err := src.DecodeInto(slot(n))
		if errors.Is(err, session.ErrEndOfStream) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if add != nil {
			add(f)
		}
	}
	return maxCount, nil
}

// OpenFunc opens a decode session for path.
type OpenFunc func(path string) (*session.Session, error)

// Extractor performs whole-file and pooled extraction.
type Extractor struct {
	open   OpenFunc
	logger ports.Logger
}

// New creates an Extractor that opens files with open.
func New(open OpenFunc, log ports.Logger) *Extractor {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Extractor{
		open:   open,
		logger: log.WithComponent("batch"),
	}
}

// ExtractAll opens path and decodes every frame into one contiguous batch.
func (e *Extractor) ExtractAll(ctx context.Context, path string, batchSize int) (*frame.Batch, error) {
	s, err := e.open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return e.ExtractSession(ctx, s, batchSize)
}

// ExtractSession decodes the remaining frames of s in runs of batchSize.
//
// The buffer is preallocated for the reported frame count, which is treated as an
// upper bound: the returned batch holds only the filled prefix and never more frames
// than reported. When the count is unknown the buffer grows as needed. If decoding
// fails, the frames decoded so far are returned together with the error.
func (e *Extractor) ExtractSession(ctx context.Context, s *session.Session, batchSize int) (*frame.Batch, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total := s.TotalFrames()
	capacity := int(total)
	if total <= 0 {
		capacity = batchSize
	}
	b := frame.NewBatch(capacity, s.Width(), s.Height())
	e.logger.Debug("Extracting %s in batches of %d (%d frames reported)", s.Path(), batchSize, total)

	calls := 0
	for {
		if err := ctx.Err(); err != nil {
			b.Truncate(b.Len())
			return b, err
		}
		if b.Len() == b.Cap() {
			if total > 0 {
				break
			}
			b.Grow(2 * b.Cap())
		}

		n := min(batchSize, b.Cap()-b.Len())
		written, err := ExtractFrames(s, b, n)
		calls++
		if err != nil {
			b.Truncate(b.Len())
			e.logger.Warn("Extraction stopped after %d frames: %v", b.Len(), err)
			return b, err
		}
		if written == 0 {
			break
		}
	}

	b.Truncate(b.Len())
	if total > 0 && int64(b.Len()) < total {
		e.logger.Debug("Decoder delivered %d of %d reported frames", b.Len(), total)
	}
	e.logger.Debug("Extracted %d frames in %d calls", b.Len(), calls)
	return b, nil
}

// DeliverFunc receives a frame decoded into a pool buffer. It owns buf and must
// release it once the frame has been consumed.
type DeliverFunc func(f frame.Frame, buf *framepool.Buffer) error

// ExtractPooled decodes every remaining frame of src into buffers taken from pool
// and hands each one to deliver. Acquire blocks while all buffers are held, so the
// decode rate follows the rate at which deliver's consumers release them.
func (e *Extractor) ExtractPooled(ctx context.Context, src Source, pool *framepool.Pool, deliver DeliverFunc) (int64, error) {
	if pool.FrameSize() < src.FrameSize() {
		return 0, fmt.Errorf("%w: pool slot %d bytes, frame %d bytes", ErrBufferTooSmall, pool.FrameSize(), src.FrameSize())
	}

	var count int64
	for {
		buf, err := pool.Acquire(ctx)
		if err != nil {
			return count, err
		}

		f, err := src.DecodeInto(buf.Data)
		if err != nil {
			buf.Release()
			if errors.Is(err, session.ErrEndOfStream) {
				e.logger.Debug("Delivered %d pooled frames", count)
				return count, nil
			}
			return count, err
		}

		if err := deliver(f, buf); err != nil {
			return count, err
		}
		count++
	}
}
