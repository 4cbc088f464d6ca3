package ports

import (
	"image"
	"image/color"
)

// Renderer abstracts image encoding and drawing.
type Renderer interface {
	// CreateCanvas creates a drawing canvas filled with bg.
	CreateCanvas(width, height int, bg color.Color) Canvas

	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)

	// ResizeImage returns img resampled to width × height.
	ResizeImage(img image.Image, width, height int) image.Image
}

// Canvas provides the drawing operations used for contact sheets.
type Canvas interface {
	// DrawImageScaled draws an image scaled into the given rectangle.
	DrawImageScaled(img image.Image, x, y, width, height int)

	// DrawRect draws a filled rectangle.
	DrawRect(x, y, w, h int, c color.Color)

	// DrawText draws a single line of text anchored at x, y.
	DrawText(text string, x, y int, style TextStyle)

	// ToImage returns the canvas as an image.Image.
	ToImage() image.Image
}

// TextStyle defines text rendering properties.
type TextStyle struct {
	FontSize float64
	FontPath string
	Color    color.Color
	Align    TextAlign
}

// TextAlign specifies text alignment.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)

// String returns the file extension of the format.
func (f ImageFormat) String() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}
