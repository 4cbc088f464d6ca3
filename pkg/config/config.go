// Package config loads viteo settings from YAML.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/viteo/pkg/adapters/nativedecoder"
	"github.com/user/viteo/pkg/contactsheet"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/ports"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config represents the full configuration for viteo.
type Config struct {
	// Decoding
	Engine     string `yaml:"engine"`
	FFmpegPath string `yaml:"ffmpeg_path"`

	// Extraction
	BatchSize     int    `yaml:"batch_size"`
	InternalBatch int    `yaml:"internal_batch"`
	QueueCapacity int    `yaml:"queue_capacity"` // 0 = unbounded
	PoolSize      int    `yaml:"pool_size"`      // 0 = no pool
	Format        string `yaml:"format"`

	// Output
	OutputDir string `yaml:"output_dir"`
	LogLevel  string `yaml:"log_level"`

	Sheet SheetConfig `yaml:"sheet"`
}

// SheetConfig configures contact sheet rendering.
type SheetConfig struct {
	Frames          int    `yaml:"frames"`
	Columns         int    `yaml:"columns"`
	TileWidth       int    `yaml:"tile_width"`
	Gap             int    `yaml:"gap"`
	LabelHeight     int    `yaml:"label_height"`
	FontPath        string `yaml:"font_path"`
	BackgroundColor string `yaml:"background_color"`
	LabelColor      string `yaml:"label_color"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Engine:        string(nativedecoder.EngineAuto),
		BatchSize:     32,
		InternalBatch: 32,
		QueueCapacity: 64,
		Format:        "bgra",
		OutputDir:     "./frames",
		LogLevel:      "info",
		Sheet: SheetConfig{
			Frames:          16,
			Columns:         4,
			TileWidth:       240,
			Gap:             8,
			LabelHeight:     18,
			BackgroundColor: "#181818",
			LabelColor:      "#f0f0f0",
		},
	}
}

// LoadFromFile loads configuration from a YAML file over Defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(data)
}

// Parse decodes YAML over Defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects negative sizes, unknown engines and unknown formats.
func (c Config) Validate() error {
	if _, err := nativedecoder.ParseEngine(c.Engine); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := frame.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for name, v := range map[string]int{
		"batch_size":     c.BatchSize,
		"internal_batch": c.InternalBatch,
		"queue_capacity": c.QueueCapacity,
		"pool_size":      c.PoolSize,
		"sheet.frames":   c.Sheet.Frames,
		"sheet.columns":  c.Sheet.Columns,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalid, name, v)
		}
	}
	if c.BatchSize == 0 || c.InternalBatch == 0 {
		return fmt.Errorf("%w: batch sizes must be positive", ErrInvalid)
	}
	return nil
}

// FrameFormat returns the parsed output format.
func (c Config) FrameFormat() frame.Format {
	f, _ := frame.ParseFormat(c.Format)
	return f
}

// Level returns the parsed log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}

// DecoderOptions converts the decoding settings.
func (c Config) DecoderOptions() nativedecoder.Options {
	e, _ := nativedecoder.ParseEngine(c.Engine)
	return nativedecoder.Options{Engine: e, FFmpegPath: c.FFmpegPath}
}

// SheetOptions converts the sheet settings.
func (c Config) SheetOptions() contactsheet.Options {
	opts := contactsheet.DefaultOptions()
	opts.Columns = c.Sheet.Columns
	opts.TileWidth = c.Sheet.TileWidth
	opts.Gap = c.Sheet.Gap
	opts.LabelHeight = c.Sheet.LabelHeight
	opts.Theme.FontPath = c.Sheet.FontPath
	if c.Sheet.BackgroundColor != "" {
		opts.Theme.Background = ParseColor(c.Sheet.BackgroundColor)
	}
	if c.Sheet.LabelColor != "" {
		opts.Theme.LabelColor = ParseColor(c.Sheet.LabelColor)
	}
	return opts
}

// ParseColor parses a #rrggbb hex string. Malformed input yields black.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}
	var rgb [3]uint8
	for i := range rgb {
		rgb[i] = hexValue(hex[2*i])<<4 | hexValue(hex[2*i+1])
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
