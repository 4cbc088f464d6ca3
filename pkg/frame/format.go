package frame

import (
	"fmt"
	"strings"
)

// Format is a packed 8-bit channel order.
type Format int

const (
	// FormatBGRA is the decoder-native order and the layout of every extracted buffer.
	FormatBGRA Format = iota
	FormatRGBA
	FormatBGR
	FormatRGB
)

// String returns the lower-case name of the format.
func (f Format) String() string {
	switch f {
	case FormatBGRA:
		return "bgra"
	case FormatRGBA:
		return "rgba"
	case FormatBGR:
		return "bgr"
	case FormatRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name such as "bgra" or "rgb".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "bgra":
		return FormatBGRA, nil
	case "rgba":
		return FormatRGBA, nil
	case "bgr":
		return FormatBGR, nil
	case "rgb":
		return FormatRGB, nil
	default:
		return FormatBGRA, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Channels returns the number of bytes per pixel.
func (f Format) Channels() int {
	switch f {
	case FormatBGR, FormatRGB:
		return 3
	default:
		return 4
	}
}

// HasAlpha reports whether the format carries an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Channels() == 4
}

func (f Format) valid() bool {
	return f >= FormatBGRA && f <= FormatRGB
}

// offsets returns the byte index of R, G, B and A within a pixel; a is -1 without alpha.
func (f Format) offsets() (r, g, b, a int) {
	switch f {
	case FormatBGRA:
		return 2, 1, 0, 3
	case FormatRGBA:
		return 0, 1, 2, 3
	case FormatBGR:
		return 2, 1, 0, -1
	default:
		return 0, 1, 2, -1
	}
}
