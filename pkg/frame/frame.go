// Package frame defines decoded video frames and batches.
//
// Pixel data uses one fixed layout everywhere: row-major, height × width × 4 bytes,
// in the decoder's native BGRA channel order. Conversions to other channel orders are
// explicit and always copy.
package frame

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Channels is the channel count of the native layout.
const Channels = 4

var (
	// ErrShortBuffer is returned when a destination cannot hold the converted frame.
	ErrShortBuffer = errors.New("frame: destination buffer too small")

	// ErrUnknownFormat is returned for an unrecognized channel format.
	ErrUnknownFormat = errors.New("frame: unknown format")
)

// Size returns the byte size of one native frame.
func Size(width, height int) int {
	return width * height * Channels
}

// Frame is one decoded image.
//
// Data is either borrowed (a session scratch buffer or a pool slot, valid until that
// buffer is reused) or owned by the caller after Clone or Convert.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Channels  int
	Format    Format
	Number    int64   // frame index, 0-based
	Timestamp float64 // presentation time in seconds
}

// Stride returns the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * f.Channels
}

// Len returns the number of pixel bytes the frame occupies.
func (f Frame) Len() int {
	return f.Stride() * f.Height
}

// Clone returns a copy of the frame that owns its pixel data.
func (f Frame) Clone() Frame {
	c := f
	c.Data = make([]byte, f.Len())
	copy(c.Data, f.Data)
	return c
}

// Convert returns a newly allocated copy of the frame in the requested format.
func (f Frame) Convert(to Format) (Frame, error) {
	if !to.valid() {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownFormat, to)
	}
	dst := make([]byte, f.Width*f.Height*to.Channels())
	if err := f.ConvertInto(dst, to); err != nil {
		return Frame{}, err
	}
	c := f
	c.Data = dst
	c.Format = to
	c.Channels = to.Channels()
	return c, nil
}

// ConvertInto writes the frame's pixels into dst using the requested format.
func (f Frame) ConvertInto(dst []byte, to Format) error {
	if !to.valid() || !f.Format.valid() {
		return ErrUnknownFormat
	}
	pixels := f.Width * f.Height
	need := pixels * to.Channels()
	if len(dst) < need {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, need, len(dst))
	}
	if f.Format == to {
		copy(dst, f.Data[:need])
		return nil
	}

	src := f.Data
	sc, dc := f.Format.Channels(), to.Channels()
	sr, sg, sb, sa := f.Format.offsets()
	dr, dg, db, da := to.offsets()
	for i := 0; i < pixels; i++ {
		s := src[i*sc : i*sc+sc]
		d := dst[i*dc : i*dc+dc]
		d[dr] = s[sr]
		d[dg] = s[sg]
		d[db] = s[sb]
		if da >= 0 {
			if sa >= 0 {
				d[da] = s[sa]
			} else {
				d[da] = 0xff
			}
		}
	}
	return nil
}

// Image returns an RGBA copy of the frame.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	// Pix is exactly width*height*4 bytes, so the conversion cannot fail on size.
	_ = f.ConvertInto(img.Pix, FormatRGBA)
	return img
}

// Scale returns an RGBA copy of the frame resized to width × height.
func (f Frame) Scale(width, height int) *image.RGBA {
	src := f.Image()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Batch is an ordered run of frames that share one contiguous buffer.
type Batch struct {
	Data   []byte
	Frames []Frame
	Width  int
	Height int
}

// NewBatch allocates a batch buffer large enough for capacity native frames.
func NewBatch(capacity, width, height int) *Batch {
	return &Batch{
		Data:   make([]byte, capacity*Size(width, height)),
		Frames: make([]Frame, 0, capacity),
		Width:  width,
		Height: height,
	}
}

// Len returns the number of frames in the batch.
func (b *Batch) Len() int {
	return len(b.Frames)
}

// Cap returns how many frames the buffer can hold.
func (b *Batch) Cap() int {
	fs := b.FrameSize()
	if fs == 0 {
		return 0
	}
	return len(b.Data) / fs
}

// FrameSize returns the byte size of one frame slot.
func (b *Batch) FrameSize() int {
	return Size(b.Width, b.Height)
}

// Slot returns the byte range for frame slot i.
func (b *Batch) Slot(i int) []byte {
	fs := b.FrameSize()
	return b.Data[i*fs : (i+1)*fs : (i+1)*fs]
}

// Bytes returns the filled prefix of the buffer.
func (b *Batch) Bytes() []byte {
	return b.Data[:len(b.Frames)*b.FrameSize()]
}

// Truncate drops all frames after the first n and shrinks the buffer to match.
func (b *Batch) Truncate(n int) {
	if n < len(b.Frames) {
		b.Frames = b.Frames[:n]
	}
	b.Data = b.Data[:len(b.Frames)*b.FrameSize()]
}

// Grow enlarges the buffer to hold at least capacity frames, keeping the filled
// prefix and re-pointing existing frames at the new memory.
func (b *Batch) Grow(capacity int) {
	if capacity <= b.Cap() {
		return
	}
	data := make([]byte, capacity*b.FrameSize())
	copy(data, b.Bytes())
	b.Data = data
	for i := range b.Frames {
		b.Frames[i].Data = b.Slot(i)
	}
}
