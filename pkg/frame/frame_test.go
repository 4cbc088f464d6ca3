package frame

import (
	"bytes"
	"errors"
	"testing"
)

func testFrame() Frame {
	// 2x1 BGRA: pixel 0 = B1 G2 R3 A4, pixel 1 = B5 G6 R7 A8
	return Frame{
		Data:     []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Width:    2,
		Height:   1,
		Channels: Channels,
		Format:   FormatBGRA,
		Number:   7,
	}
}

func TestFrame_Convert(t *testing.T) {
	tests := []struct {
		to   Format
		want []byte
	}{
		{FormatBGRA, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{FormatRGBA, []byte{3, 2, 1, 4, 7, 6, 5, 8}},
		{FormatBGR, []byte{1, 2, 3, 5, 6, 7}},
		{FormatRGB, []byte{3, 2, 1, 7, 6, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.to.String(), func(t *testing.T) {
			src := testFrame()
			got, err := src.Convert(tt.to)
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if !bytes.Equal(got.Data, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got.Data)
			}
			if got.Channels != tt.to.Channels() {
				t.Errorf("expected %d channels, got %d", tt.to.Channels(), got.Channels)
			}
			if got.Number != 7 {
				t.Errorf("expected frame number to be kept, got %d", got.Number)
			}
			// Source must never be modified by a conversion.
			if !bytes.Equal(src.Data, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
				t.Error("source frame was modified")
			}
		})
	}
}

func TestFrame_ConvertAddsOpaqueAlpha(t *testing.T) {
	rgb := Frame{Data: []byte{10, 20, 30}, Width: 1, Height: 1, Channels: 3, Format: FormatRGB}

	got, err := rgb.Convert(FormatBGRA)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	want := []byte{30, 20, 10, 0xff}
	if !bytes.Equal(got.Data, want) {
		t.Errorf("expected %v, got %v", want, got.Data)
	}
}

func TestFrame_ConvertIntoShortBuffer(t *testing.T) {
	err := testFrame().ConvertInto(make([]byte, 3), FormatRGB)
	if !errors.Is(err, ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

func TestFrame_CloneOwnsData(t *testing.T) {
	src := testFrame()
	c := src.Clone()
	c.Data[0] = 99

	if src.Data[0] != 1 {
		t.Error("clone shares memory with source")
	}
}

func TestFrame_Image(t *testing.T) {
	img := testFrame().Image()

	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	c := img.RGBAAt(0, 0)
	if c.R != 3 || c.G != 2 || c.B != 1 || c.A != 4 {
		t.Errorf("unexpected pixel %+v", c)
	}
}

func TestFrame_Scale(t *testing.T) {
	f := Frame{Data: make([]byte, Size(8, 4)), Width: 8, Height: 4, Channels: Channels}

	img := f.Scale(4, 2)
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("expected 4x2, got %v", img.Bounds())
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"bgra", "RGBA", "bgr", "rgb", ""} {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", name, err)
		}
	}
	if _, err := ParseFormat("yuv"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestBatch(t *testing.T) {
	b := NewBatch(3, 2, 2)

	if b.Cap() != 3 {
		t.Errorf("expected capacity 3, got %d", b.Cap())
	}
	if len(b.Slot(1)) != Size(2, 2) {
		t.Errorf("expected slot of %d bytes, got %d", Size(2, 2), len(b.Slot(1)))
	}

	b.Frames = append(b.Frames, Frame{Number: 0}, Frame{Number: 1})
	if len(b.Bytes()) != 2*Size(2, 2) {
		t.Errorf("expected filled prefix of 2 frames, got %d bytes", len(b.Bytes()))
	}

	b.Truncate(1)
	if b.Len() != 1 || len(b.Data) != Size(2, 2) {
		t.Errorf("truncate left %d frames, %d bytes", b.Len(), len(b.Data))
	}
}

func TestBatch_GrowRepointsFrames(t *testing.T) {
	b := NewBatch(1, 1, 1)
	copy(b.Slot(0), []byte{9, 8, 7, 6})
	b.Frames = append(b.Frames, Frame{Data: b.Slot(0), Width: 1, Height: 1, Channels: Channels})

	b.Grow(4)
	if b.Cap() != 4 {
		t.Fatalf("expected capacity 4, got %d", b.Cap())
	}
	if &b.Frames[0].Data[0] != &b.Data[0] {
		t.Error("frame still points at the old buffer")
	}
	if !bytes.Equal(b.Frames[0].Data, []byte{9, 8, 7, 6}) {
		t.Errorf("frame data lost: %v", b.Frames[0].Data)
	}
}
