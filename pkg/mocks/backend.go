package mocks

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/user/viteo/pkg/ports"
)

var (
	// ErrMockDecode is the default error returned at FailAt.
	ErrMockDecode = errors.New("mock: decode failure")

	// ErrMockSeek is returned by Seek when the backend is not seekable.
	ErrMockSeek = errors.New("mock: seek unsupported")
)

// Backend is a synthetic ports.DecoderBackend.
//
// It delivers Frames frames of a deterministic pattern (see Fill) at FPS, with
// frame i presented at i/FPS seconds.
type Backend struct {
	mu sync.Mutex

	Width  int
	Height int
	FPS    float64
	Frames int64 // frames actually decodable

	// ExtraCount is added to the reported FrameCount to model optimistic metadata.
	ExtraCount int64
	// UnknownCount reports a FrameCount of 0.
	UnknownCount bool
	// FailAt makes decoding of that frame index fail; negative disables it.
	FailAt    int64
	DecodeErr error
	OpenErr   error
	SeekErr   error
	// NotSeekable makes every Seek fail with ErrMockSeek.
	NotSeekable bool

	OpenFunc func(path string) (ports.VideoInfo, error)

	// Recorded calls for verification
	OpenCalls   []string
	SeekCalls   []float64
	DecodeCalls int
	CloseCalls  int

	pos    int64
	closed bool
}

// NewBackend creates a backend serving frames frames of width x height at fps.
func NewBackend(width, height int, fps float64, frames int64) *Backend {
	return &Backend{
		Width:  width,
		Height: height,
		FPS:    fps,
		Frames: frames,
		FailAt: -1,
	}
}

func (m *Backend) Open(path string) (ports.VideoInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls = append(m.OpenCalls, path)
	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	if m.OpenErr != nil {
		return ports.VideoInfo{}, m.OpenErr
	}
	m.pos = 0
	m.closed = false

	count := m.Frames + m.ExtraCount
	if m.UnknownCount {
		count = 0
	}
	return ports.VideoInfo{
		Width:      m.Width,
		Height:     m.Height,
		FPS:        m.FPS,
		FrameCount: count,
		Duration:   float64(m.Frames) / m.FPS,
		Codec:      "mock",
		Seekable:   !m.NotSeekable,
	}, nil
}

func (m *Backend) Seek(ts float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeekCalls = append(m.SeekCalls, ts)
	if m.NotSeekable {
		return m.pos, ErrMockSeek
	}
	if m.SeekErr != nil {
		return m.pos, m.SeekErr
	}
	idx := int64(math.Ceil(ts*m.FPS - 1e-9))
	if idx < 0 {
		idx = 0
	}
	if idx > m.Frames {
		idx = m.Frames
	}
	m.pos = idx
	return idx, nil
}

func (m *Backend) DecodeNext(dst []byte) (ports.DecodedFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecodeCalls++
	if m.closed {
		return ports.DecodedFrame{}, errors.New("mock: backend closed")
	}
	if m.FailAt >= 0 && m.pos == m.FailAt {
		if m.DecodeErr != nil {
			return ports.DecodedFrame{}, m.DecodeErr
		}
		return ports.DecodedFrame{}, ErrMockDecode
	}
	if m.pos >= m.Frames {
		return ports.DecodedFrame{}, io.EOF
	}
	if need := m.Width * m.Height * 4; len(dst) < need {
		return ports.DecodedFrame{}, fmt.Errorf("mock: destination %d bytes, need %d", len(dst), need)
	}

	Fill(dst, m.Width, m.Height, m.pos)
	f := ports.DecodedFrame{Index: m.pos, Timestamp: float64(m.pos) / m.FPS}
	m.pos++
	return f, nil
}

func (m *Backend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	m.closed = true
	return nil
}

// Closed reports whether Close has been called since the last Open.
func (m *Backend) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns the number of DecodeNext calls so far.
func (m *Backend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DecodeCalls
}

var _ ports.DecoderBackend = (*Backend)(nil)

// Fill writes the synthetic BGRA pattern of frame index into dst.
// Blue and green carry the low and high byte of the index, red the pixel position.
func Fill(dst []byte, width, height int, index int64) {
	n := width * height
	for i := 0; i < n; i++ {
		p := dst[i*4 : i*4+4]
		p[0] = byte(index)
		p[1] = byte(index >> 8)
		p[2] = byte(i)
		p[3] = 0xff
	}
}

// Pattern returns a newly allocated frame filled by Fill.
func Pattern(width, height int, index int64) []byte {
	b := make([]byte, width*height*4)
	Fill(b, width, height, index)
	return b
}

// FrameIndex recovers the frame index encoded by Fill from the first pixel.
func FrameIndex(data []byte) int64 {
	return int64(data[0]) | int64(data[1])<<8
}
