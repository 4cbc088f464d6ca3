package pngsink

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/user/viteo/pkg/mocks"
	"github.com/user/viteo/pkg/ports"
)

var testBaseDir = filepath.Join("out")

func TestSink_SaveFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs, &mocks.Renderer{})

	if err := sink.SaveFrame(42, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}

	path := filepath.Join(testBaseDir, "frame-000042.png")
	data, ok := fs.GetFile(path)
	if !ok {
		t.Fatalf("expected file at %s, have %v", path, fs.Paths())
	}
	if string(data) != "png" {
		t.Errorf("expected PNG-encoded data, got %q", data)
	}
}

func TestSink_JPEG(t *testing.T) {
	fs := mocks.NewFileSystem()
	var gotQuality int
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			gotQuality = quality
			return []byte(format.String()), nil
		},
	}
	sink := New(testBaseDir, fs, renderer, WithJPEG(85))

	if err := sink.SaveFrame(7, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}
	if _, ok := fs.GetFile(filepath.Join(testBaseDir, "frame-000007.jpg")); !ok {
		t.Errorf("expected jpg file, have %v", fs.Paths())
	}
	if gotQuality != 85 {
		t.Errorf("expected quality 85, got %d", gotQuality)
	}
}

func TestSink_SaveSheet(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs, &mocks.Renderer{})

	if err := sink.SaveSheet("sheet", image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("SaveSheet failed: %v", err)
	}
	if _, ok := fs.GetFile(filepath.Join(testBaseDir, "sheet.png")); !ok {
		t.Errorf("expected sheet.png, have %v", fs.Paths())
	}
}

func TestSink_EncodeError(t *testing.T) {
	fs := mocks.NewFileSystem()
	boom := errors.New("boom")
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(image.Image, ports.ImageFormat, int) ([]byte, error) {
			return nil, boom
		},
	}
	sink := New(testBaseDir, fs, renderer)

	if err := sink.SaveFrame(1, image.NewRGBA(image.Rect(0, 0, 1, 1))); !errors.Is(err, boom) {
		t.Errorf("expected encode error, got %v", err)
	}
	if len(fs.Paths()) != 0 {
		t.Errorf("expected no files written, have %v", fs.Paths())
	}
}
