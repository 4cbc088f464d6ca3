// Package report builds benchmark summaries for extraction runs.
package report

import "time"

// Summary contains everything measured during one benchmark run.
type Summary struct {
	GeneratedAt time.Time

	Video    VideoInfo
	Settings Settings
	Results  []Result
}

// VideoInfo describes the benchmarked file.
type VideoInfo struct {
	Path       string
	Codec      string
	Width      int
	Height     int
	FPS        float64
	FrameCount int64
	Duration   float64 // seconds
	FileSize   int64
}

// Settings contains the extraction configuration.
type Settings struct {
	Engine        string
	BatchSize     int
	InternalBatch int
	QueueCapacity int
	PoolSize      int
	Format        string
}

// Result is the measurement of one extraction mode.
type Result struct {
	Mode    string // e.g. "bulk", "stream", "queue"
	Frames  int64
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

// FPS returns decoded frames per second.
func (r Result) FPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

// MsPerFrame returns milliseconds spent per frame.
func (r Result) MsPerFrame() float64 {
	if r.Frames == 0 {
		return 0
	}
	return float64(r.Elapsed.Microseconds()) / 1000 / float64(r.Frames)
}

// Speedup returns how many times faster than real time the mode ran.
func (r Result) Speedup(videoFPS float64) float64 {
	if videoFPS <= 0 {
		return 0
	}
	return r.FPS() / videoFPS
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a Builder stamped with the current time.
func NewBuilder() *Builder {
	return &Builder{summary: &Summary{GeneratedAt: time.Now()}}
}

func (b *Builder) WithVideo(v VideoInfo) *Builder {
	b.summary.Video = v
	return b
}

func (b *Builder) WithSettings(s Settings) *Builder {
	b.summary.Settings = s
	return b
}

// AddResult appends a measurement.
func (b *Builder) AddResult(r Result) *Builder {
	b.summary.Results = append(b.summary.Results, r)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
