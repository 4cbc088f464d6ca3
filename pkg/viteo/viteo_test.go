package viteo

import (
	"context"
	"errors"
	"testing"

	"github.com/user/viteo/pkg/adapters/nativedecoder"
	"github.com/user/viteo/pkg/config"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/mocks"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/session"
	"github.com/user/viteo/pkg/stream"
)

// newTestExtractor serves a fresh 90-frame 30 fps mock video on every Open.
func newTestExtractor(cfg Config) (*Extractor, *[]*mocks.Backend) {
	var opened []*mocks.Backend
	x := New(cfg, WithLogger(mocks.NewLogger()), WithBackend(func() ports.DecoderBackend {
		b := mocks.NewBackend(4, 2, 30, 90)
		opened = append(opened, b)
		return b
	}))
	return x, &opened
}

func TestConfigBuilder(t *testing.T) {
	cfg := NewConfigBuilder().Build()
	if cfg.BatchSize != 32 || cfg.InternalBatch != 32 || cfg.QueueCapacity != 64 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Engine != nativedecoder.EngineAuto || cfg.Format != frame.FormatBGRA {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	cfg = NewConfigBuilder().
		WithBatchSize(0).
		WithInternalBatch(-3).
		WithQueueCapacity(-1).
		WithPoolSize(-2).
		WithEngine("").
		Build()
	if cfg.BatchSize != 32 || cfg.InternalBatch != 32 || cfg.QueueCapacity != 0 || cfg.PoolSize != 0 {
		t.Errorf("expected invalid sizes to be clamped, got %+v", cfg)
	}
	if cfg.Engine != nativedecoder.EngineAuto {
		t.Errorf("expected auto engine, got %q", cfg.Engine)
	}
}

func TestNewConfigBuilderFrom(t *testing.T) {
	file := config.Defaults()
	file.Engine = "ffmpeg"
	file.Format = "rgba"
	file.PoolSize = 8

	cfg := NewConfigBuilderFrom(file).WithBatchSize(4).Build()
	if cfg.Engine != nativedecoder.EngineFFmpeg || cfg.Format != frame.FormatRGBA {
		t.Errorf("unexpected conversion %+v", cfg)
	}
	if cfg.PoolSize != 8 || cfg.BatchSize != 4 {
		t.Errorf("unexpected sizes %+v", cfg)
	}
}

func TestExtractor_ExtractAll(t *testing.T) {
	x, opened := newTestExtractor(NewConfigBuilder().WithBatchSize(8).Build())

	b, err := x.ExtractAll(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if b.Len() != 90 {
		t.Fatalf("expected 90 frames, got %d", b.Len())
	}
	for i, f := range b.Frames {
		if f.Number != int64(i) || mocks.FrameIndex(f.Data) != int64(i) {
			t.Fatalf("frame %d out of order (number %d)", i, f.Number)
		}
	}
	if len(*opened) != 1 || !(*opened)[0].Closed() {
		t.Error("expected the session to be closed after extraction")
	}
}

func collect(t *testing.T, st *Stream) []frame.Frame {
	t.Helper()
	var frames []frame.Frame
	for {
		it, err := st.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if it.End {
			return frames
		}
		frames = append(frames, it.Frame.Clone())
		it.Release()
	}
}

func TestExtractor_StreamFrames(t *testing.T) {
	x, opened := newTestExtractor(NewConfigBuilder().
		WithQueueCapacity(2).
		WithPoolSize(3).
		WithFormat(frame.FormatRGB).
		Build())

	st, err := x.StreamFrames(context.Background(), "clip.mp4", 1, 2)
	if err != nil {
		t.Fatalf("StreamFrames failed: %v", err)
	}
	frames := collect(t, st)
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(frames) != 31 {
		t.Fatalf("expected frames 30..60, got %d", len(frames))
	}
	if frames[0].Number != 30 || frames[30].Number != 60 {
		t.Errorf("unexpected range %d..%d", frames[0].Number, frames[30].Number)
	}
	if frames[0].Format != frame.FormatRGB || frames[0].Channels != 3 {
		t.Errorf("expected RGB frames, got %s with %d channels", frames[0].Format, frames[0].Channels)
	}
	if st.State() != stream.Stopped {
		t.Errorf("expected Stopped, got %s", st.State())
	}
	if !(*opened)[0].Closed() {
		t.Error("expected the session to be closed")
	}
}

func TestExtractor_StreamFramesInvalidRange(t *testing.T) {
	x, opened := newTestExtractor(NewConfigBuilder().WithPoolSize(2).Build())

	if _, err := x.StreamFrames(context.Background(), "clip.mp4", 2, 1); !errors.Is(err, stream.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if !(*opened)[0].Closed() {
		t.Error("expected the session to be closed after a failed start")
	}
}

func TestExtractor_StreamBatches(t *testing.T) {
	x, _ := newTestExtractor(NewConfigBuilder().WithInternalBatch(7).Build())

	var sizes []int
	next := int64(0)
	n, err := x.StreamBatches(context.Background(), "clip.mp4", 0, 0, func(frames []frame.Frame) error {
		sizes = append(sizes, len(frames))
		for _, f := range frames {
			if f.Number != next {
				t.Fatalf("expected frame %d, got %d", next, f.Number)
			}
			next++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamBatches failed: %v", err)
	}
	if n != 90 {
		t.Errorf("expected 90 frames, got %d", n)
	}
	if len(sizes) != 13 || sizes[0] != 7 || sizes[12] != 6 {
		t.Errorf("unexpected batch sizes %v", sizes)
	}
}

func TestExtractor_StreamBatchesCallbackError(t *testing.T) {
	x, _ := newTestExtractor(NewConfigBuilder().WithInternalBatch(10).Build())
	stop := errors.New("enough")

	n, err := x.StreamBatches(context.Background(), "clip.mp4", 0, 0, func([]frame.Frame) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
	if n != 10 {
		t.Errorf("expected one batch delivered, got %d", n)
	}
}

func TestExtractor_DefaultBackendReadsFileSystem(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("/junk.mp4", []byte("not a video"))
	x := New(NewConfigBuilder().Build(), WithFileSystem(fs))

	_, err := x.Open("/junk.mp4")
	if !errors.Is(err, session.ErrOpen) || !errors.Is(err, nativedecoder.ErrUnsupportedContainer) {
		t.Errorf("expected ErrOpen wrapping ErrUnsupportedContainer, got %v", err)
	}
}
