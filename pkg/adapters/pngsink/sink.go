// Package pngsink writes exported frames and contact sheets as image files.
package pngsink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/viteo/pkg/ports"
)

// Sink saves images below a base directory.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
	format   ports.ImageFormat
	quality  int
}

// Option configures a Sink.
type Option func(*Sink)

// WithJPEG writes JPEG files at the given quality instead of PNG.
func WithJPEG(quality int) Option {
	return func(s *Sink) {
		s.format = ports.FormatJPEG
		s.quality = quality
	}
}

// New creates a sink writing into baseDir.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer, opts ...Option) *Sink {
	s := &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		format:   ports.FormatPNG,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FramePath returns the file path used for frame index.
func (s *Sink) FramePath(index int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("frame-%06d.%s", index, s.format))
}

// SaveFrame encodes img and writes it to FramePath(index).
func (s *Sink) SaveFrame(index int64, img image.Image) error {
	data, err := s.renderer.EncodeImage(img, s.format, s.quality)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	return s.fs.WriteFile(s.FramePath(index), data)
}

// SaveSheet encodes a contact sheet as <name>.<ext>.
func (s *Sink) SaveSheet(name string, img image.Image) error {
	data, err := s.renderer.EncodeImage(img, s.format, s.quality)
	if err != nil {
		return fmt.Errorf("encode sheet %s: %w", name, err)
	}
	return s.fs.WriteFile(filepath.Join(s.baseDir, name+"."+s.format.String()), data)
}

var _ ports.FrameSink = (*Sink)(nil)
