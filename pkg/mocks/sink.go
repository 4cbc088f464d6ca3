package mocks

import (
	"image"
	"sync"

	"github.com/user/viteo/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink.
type FrameSink struct {
	mu sync.Mutex

	SaveFrameFunc func(index int64, img image.Image) error

	Frames map[int64]image.Image
	Sheets map[string]image.Image
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink() *FrameSink {
	return &FrameSink{
		Frames: make(map[int64]image.Image),
		Sheets: make(map[string]image.Image),
	}
}

func (m *FrameSink) SaveFrame(index int64, img image.Image) error {
	if m.SaveFrameFunc != nil {
		return m.SaveFrameFunc(index, img)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[index] = img
	return nil
}

func (m *FrameSink) SaveSheet(name string, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sheets[name] = img
	return nil
}

// FrameCount returns the number of saved frames.
func (m *FrameSink) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}

var _ ports.FrameSink = (*FrameSink)(nil)
