package mocks

import (
	"image"
	"image/color"
	"sync"

	"github.com/user/viteo/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	mu sync.Mutex

	EncodeImageFunc func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)

	// Canvases records every canvas created, in order.
	Canvases []*Canvas
	Resizes  int
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	c := &Canvas{Width: width, Height: height}
	m.Canvases = append(m.Canvases, c)
	return c
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte(format.String()), nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	m.mu.Lock()
	m.Resizes++
	m.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ ports.Renderer = (*Renderer)(nil)

// DrawCall records one DrawImageScaled call.
type DrawCall struct {
	X, Y, Width, Height int
}

// Canvas is a mock implementation of ports.Canvas.
type Canvas struct {
	Width  int
	Height int

	Draws []DrawCall
	Texts []string
}

func (m *Canvas) DrawImageScaled(img image.Image, x, y, width, height int) {
	m.Draws = append(m.Draws, DrawCall{X: x, Y: y, Width: width, Height: height})
}

func (m *Canvas) DrawRect(x, y, w, h int, c color.Color) {}

func (m *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	m.Texts = append(m.Texts, text)
}

func (m *Canvas) ToImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
}

var _ ports.Canvas = (*Canvas)(nil)
