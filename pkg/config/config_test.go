package config

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/viteo/pkg/adapters/nativedecoder"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/ports"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.BatchSize != 32 || cfg.InternalBatch != 32 || cfg.QueueCapacity != 64 {
		t.Errorf("unexpected sizes %d/%d/%d", cfg.BatchSize, cfg.InternalBatch, cfg.QueueCapacity)
	}
	if cfg.FrameFormat() != frame.FormatBGRA {
		t.Errorf("expected bgra, got %s", cfg.FrameFormat())
	}
	if cfg.DecoderOptions().Engine != nativedecoder.EngineAuto {
		t.Errorf("expected auto engine, got %s", cfg.DecoderOptions().Engine)
	}
	if cfg.Level() != ports.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.Level())
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
engine: ffmpeg
ffmpeg_path: /opt/ffmpeg
batch_size: 8
queue_capacity: 0
format: rgb
sheet:
  columns: 6
  background_color: "#102030"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.BatchSize != 8 || cfg.QueueCapacity != 0 {
		t.Errorf("unexpected sizes %d/%d", cfg.BatchSize, cfg.QueueCapacity)
	}
	if cfg.InternalBatch != 32 {
		t.Errorf("expected unset internal_batch to keep default, got %d", cfg.InternalBatch)
	}
	opts := cfg.DecoderOptions()
	if opts.Engine != nativedecoder.EngineFFmpeg || opts.FFmpegPath != "/opt/ffmpeg" {
		t.Errorf("unexpected decoder options %+v", opts)
	}
	if cfg.FrameFormat() != frame.FormatRGB {
		t.Errorf("expected rgb, got %s", cfg.FrameFormat())
	}

	sheet := cfg.SheetOptions()
	if sheet.Columns != 6 || sheet.TileWidth != 240 {
		t.Errorf("unexpected sheet options %+v", sheet)
	}
	if sheet.Theme.Background != (color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}) {
		t.Errorf("unexpected background %v", sheet.Theme.Background)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"engine":         "engine: cuda",
		"format":         "format: yuv420p",
		"negative queue": "queue_capacity: -1",
		"zero batch":     "batch_size: 0",
		"negative pool":  "pool_size: -4",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("batch_size: [1, 2")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viteo.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\npool_size: 16\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Level() != ports.LevelDebug || cfg.PoolSize != 16 {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseColor(t *testing.T) {
	tests := map[string]color.Color{
		"#ff8000": color.RGBA{R: 0xff, G: 0x80, A: 0xff},
		"00FF00":  color.RGBA{G: 0xff, A: 0xff},
		"#abc":    color.Black,
		"":        color.Black,
	}
	for in, want := range tests {
		if got := ParseColor(in); got != want {
			t.Errorf("ParseColor(%q) = %v, want %v", in, got, want)
		}
	}
}
