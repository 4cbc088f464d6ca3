package ports

import "image"

// FrameSink receives exported frames.
type FrameSink interface {
	// SaveFrame stores one frame image under its frame index.
	SaveFrame(index int64, img image.Image) error

	// SaveSheet stores a composed contact sheet.
	SaveSheet(name string, img image.Image) error
}
