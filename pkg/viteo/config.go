package viteo

import (
	"github.com/user/viteo/pkg/adapters/nativedecoder"
	"github.com/user/viteo/pkg/batch"
	"github.com/user/viteo/pkg/config"
	"github.com/user/viteo/pkg/frame"
)

// Config represents the extraction settings.
type Config struct {
	// Decoding
	Engine     nativedecoder.Engine
	FFmpegPath string

	// Bulk extraction
	BatchSize int // frames per decode call (default: 32)

	// Streaming
	InternalBatch int          // frames per NextBatch call in StreamBatches (default: 32)
	QueueCapacity int          // queued frames before the producer blocks, 0 = unbounded
	PoolSize      int          // reusable frame buffers, 0 = allocate per frame
	Format        frame.Format // channel order of streamed frames
}

// ConfigBuilder provides a fluent interface for building Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a ConfigBuilder with default settings.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: defaults()}
}

// NewConfigBuilderFrom starts from a loaded file configuration.
func NewConfigBuilderFrom(c config.Config) *ConfigBuilder {
	opts := c.DecoderOptions()
	return &ConfigBuilder{config: Config{
		Engine:        opts.Engine,
		FFmpegPath:    opts.FFmpegPath,
		BatchSize:     c.BatchSize,
		InternalBatch: c.InternalBatch,
		QueueCapacity: c.QueueCapacity,
		PoolSize:      c.PoolSize,
		Format:        c.FrameFormat(),
	}}
}

func defaults() Config {
	return Config{
		Engine:        nativedecoder.EngineAuto,
		BatchSize:     batch.DefaultBatchSize,
		InternalBatch: batch.DefaultBatchSize,
		QueueCapacity: 64,
		Format:        frame.FormatBGRA,
	}
}

// WithEngine selects the decoder engine.
func (b *ConfigBuilder) WithEngine(e nativedecoder.Engine) *ConfigBuilder {
	b.config.Engine = e
	return b
}

// WithFFmpegPath sets the ffmpeg executable used by the ffmpeg engine.
func (b *ConfigBuilder) WithFFmpegPath(path string) *ConfigBuilder {
	b.config.FFmpegPath = path
	return b
}

// WithBatchSize sets the number of frames decoded per bulk batch.
func (b *ConfigBuilder) WithBatchSize(n int) *ConfigBuilder {
	b.config.BatchSize = n
	return b
}

// WithInternalBatch sets the number of frames per streamed batch.
func (b *ConfigBuilder) WithInternalBatch(n int) *ConfigBuilder {
	b.config.InternalBatch = n
	return b
}

// WithQueueCapacity sets the frame queue capacity. Zero means unbounded.
func (b *ConfigBuilder) WithQueueCapacity(n int) *ConfigBuilder {
	b.config.QueueCapacity = n
	return b
}

// WithPoolSize sets the number of reusable frame buffers. Zero allocates per frame.
func (b *ConfigBuilder) WithPoolSize(n int) *ConfigBuilder {
	b.config.PoolSize = n
	return b
}

// WithFormat sets the channel order of streamed frames.
func (b *ConfigBuilder) WithFormat(f frame.Format) *ConfigBuilder {
	b.config.Format = f
	return b
}

// Build returns the final Config with sizes clamped to usable values.
func (b *ConfigBuilder) Build() Config {
	cfg := b.config
	if cfg.BatchSize < 1 {
		cfg.BatchSize = batch.DefaultBatchSize
	}
	if cfg.InternalBatch < 1 {
		cfg.InternalBatch = batch.DefaultBatchSize
	}
	if cfg.QueueCapacity < 0 {
		cfg.QueueCapacity = 0
	}
	if cfg.PoolSize < 0 {
		cfg.PoolSize = 0
	}
	if cfg.Engine == "" {
		cfg.Engine = nativedecoder.EngineAuto
	}
	return cfg
}
