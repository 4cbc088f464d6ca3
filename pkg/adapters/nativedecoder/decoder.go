// Package nativedecoder decodes MP4/MOV video into BGRA frames using platform decoders.
//   - macOS: VideoToolbox (H.264)
//   - any platform, any codec: ffmpeg (external process)
//
// Container parsing is done in Go with mp4ff; the engines only see coded samples or
// the file path.
//
// The first non-empty edit list entry sets where presentation starts. Samples
// before it are decoded as references only and never counted or delivered.
// Empty edits and later edit segments are ignored.
package nativedecoder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/ports"
)

var (
	// ErrUnsupportedContainer is returned when the file is not a readable MP4/MOV.
	ErrUnsupportedContainer = errors.New("nativedecoder: unsupported container")

	// ErrNoVideoTrack is returned when the file has no decodable video track.
	ErrNoVideoTrack = errors.New("nativedecoder: no video track")

	// ErrNoDecoderAvailable is returned when no engine can decode the track's codec.
	ErrNoDecoderAvailable = errors.New("nativedecoder: no decoder available")

	// ErrDecodeFailed is returned when decoding a frame fails.
	ErrDecodeFailed = errors.New("nativedecoder: decode failed")

	// ErrPlatformNotSupported is returned when the native engine is requested on a
	// platform that does not have one.
	ErrPlatformNotSupported = errors.New("nativedecoder: platform not supported")

	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("nativedecoder: ffmpeg not found")

	// ErrNotSeekable is returned for a seek target outside the stream.
	ErrNotSeekable = errors.New("nativedecoder: position not seekable")

	// ErrNotOpen is returned when the decoder is used before Open or after Close.
	ErrNotOpen = errors.New("nativedecoder: not open")
)

// Engine selects the decoding engine.
type Engine string

const (
	// EngineAuto uses VideoToolbox for H.264 where available and ffmpeg otherwise.
	EngineAuto         Engine = "auto"
	EngineVideoToolbox Engine = "videotoolbox"
	EngineFFmpeg       Engine = "ffmpeg"
)

// ParseEngine parses an engine name. The empty string means EngineAuto.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(strings.ToLower(s)); e {
	case "", EngineAuto:
		return EngineAuto, nil
	case EngineVideoToolbox, EngineFFmpeg:
		return e, nil
	default:
		return "", fmt.Errorf("nativedecoder: unknown engine %q", s)
	}
}

// Options configures the decoder.
type Options struct {
	Engine Engine
	// FFmpegPath is an optional path to the ffmpeg binary.
	FFmpegPath string
}

// engine turns a demuxed track into BGRA frames in presentation order.
type engine interface {
	name() Engine
	// start prepares output beginning at presentation index from.
	start(t *track, from int) error
	// next writes the next frame into dst, returning io.EOF when no frame remains.
	next(dst []byte) error
	close() error
}

// Decoder implements ports.DecoderBackend for MP4/MOV files.
type Decoder struct {
	opts   Options
	fs     ports.FileSystem
	logger ports.Logger

	path    string
	file    io.ReadSeekCloser
	track   *track
	eng     engine
	pos     int // presentation index of the next frame
	running bool
}

// New creates a decoder that reads files through fs.
func New(fs ports.FileSystem, opts Options, log ports.Logger) *Decoder {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Decoder{
		opts:   opts,
		fs:     fs,
		logger: log.WithComponent("nativedecoder"),
	}
}

// Open demuxes path and selects an engine for its video track.
func (d *Decoder) Open(path string) (ports.VideoInfo, error) {
	if d.track != nil {
		d.Close()
	}

	f, err := d.fs.Open(path)
	if err != nil {
		return ports.VideoInfo{}, fmt.Errorf("nativedecoder: open %s: %w", path, err)
	}

	t, err := demux(f)
	if err != nil {
		f.Close()
		return ports.VideoInfo{}, err
	}
	if t.Len() == 0 {
		f.Close()
		return ports.VideoInfo{}, fmt.Errorf("%w: track has no samples", ErrNoVideoTrack)
	}
	if t.width <= 0 || t.height <= 0 {
		f.Close()
		return ports.VideoInfo{}, fmt.Errorf("%w: missing frame dimensions", ErrNoVideoTrack)
	}

	eng, err := d.selectEngine(t, path, f)
	if err != nil {
		f.Close()
		return ports.VideoInfo{}, err
	}

	d.path, d.file, d.track, d.eng = path, f, t, eng
	d.pos, d.running = 0, false

	info := ports.VideoInfo{
		Width:      t.width,
		Height:     t.height,
		FPS:        t.fps(),
		FrameCount: int64(t.Len()),
		Duration:   t.duration(),
		Codec:      string(t.codec),
		Seekable:   true,
	}
	d.logger.Debug("Opened %s with %s engine: %s %dx%d, %d samples",
		path, eng.name(), t.codec, t.width, t.height, t.Len())
	return info, nil
}

func (d *Decoder) selectEngine(t *track, path string, r io.ReadSeeker) (engine, error) {
	native := t.codec == CodecH264 && len(t.sps) > 0 && len(t.pps) > 0

	switch d.opts.Engine {
	case "", EngineAuto:
		if native && nativeAvailable() {
			return newNativeEngine(r)
		}
		bin, err := findFFmpeg(d.opts.FFmpegPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoDecoderAvailable, t.codec, err)
		}
		return newFFmpegEngine(bin, path), nil

	case EngineVideoToolbox:
		if !nativeAvailable() {
			return nil, ErrPlatformNotSupported
		}
		if !native {
			return nil, fmt.Errorf("%w: VideoToolbox cannot decode %s", ErrNoDecoderAvailable, t.codec)
		}
		return newNativeEngine(r)

	case EngineFFmpeg:
		bin, err := findFFmpeg(d.opts.FFmpegPath)
		if err != nil {
			return nil, err
		}
		return newFFmpegEngine(bin, path), nil

	default:
		return nil, fmt.Errorf("nativedecoder: unknown engine %q", d.opts.Engine)
	}
}

// Seek moves to the first frame presented at or after ts. The engine restarts
// lazily on the next DecodeNext.
func (d *Decoder) Seek(ts float64) (int64, error) {
	if d.track == nil {
		return 0, ErrNotOpen
	}
	if ts < 0 || ts > d.track.duration()+seekTolerance {
		return int64(d.pos), fmt.Errorf("%w: %.3fs outside [0, %.3f]", ErrNotSeekable, ts, d.track.duration())
	}

	idx := d.track.seekIndex(ts)
	d.stopEngine()
	d.pos = idx
	d.logger.Debug("Seek to %.3fs resolved to frame %d", ts, idx)
	return int64(idx), nil
}

// DecodeNext decodes the next frame in presentation order into dst.
func (d *Decoder) DecodeNext(dst []byte) (ports.DecodedFrame, error) {
	if d.track == nil {
		return ports.DecodedFrame{}, ErrNotOpen
	}
	if d.pos >= d.track.Len() {
		return ports.DecodedFrame{}, io.EOF
	}
	size := d.track.width * d.track.height * 4
	if len(dst) < size {
		return ports.DecodedFrame{}, fmt.Errorf("nativedecoder: destination has %d bytes, need %d", len(dst), size)
	}

	if !d.running {
		if err := d.eng.start(d.track, d.pos); err != nil {
			return ports.DecodedFrame{}, fmt.Errorf("%w: start at frame %d: %w", ErrDecodeFailed, d.pos, err)
		}
		d.running = true
	}

	if err := d.eng.next(dst[:size]); err != nil {
		if errors.Is(err, io.EOF) {
			// The container promised more samples than the engine produced.
			d.logger.Debug("Engine ended at frame %d of %d", d.pos, d.track.Len())
			d.pos = d.track.Len()
			return ports.DecodedFrame{}, io.EOF
		}
		return ports.DecodedFrame{}, fmt.Errorf("%w: frame %d: %w", ErrDecodeFailed, d.pos, err)
	}

	f := ports.DecodedFrame{
		Index:     int64(d.pos),
		Timestamp: d.track.timestamp(d.pos),
	}
	d.pos++
	return f, nil
}

func (d *Decoder) stopEngine() {
	if d.running {
		d.eng.close()
		d.running = false
	}
}

// Close stops the engine and closes the file. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.track == nil {
		return nil
	}
	d.stopEngine()
	var err error
	if d.file != nil {
		err = d.file.Close()
	}
	d.file, d.track, d.eng = nil, nil, nil
	return err
}

var _ ports.DecoderBackend = (*Decoder)(nil)
