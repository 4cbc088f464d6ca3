package nativedecoder

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/adapters/osfilesystem"
	"github.com/user/viteo/pkg/mocks"
)

// buildFragmented writes a fragmented av01 MP4 with n samples of 1/30 s each and a
// sync sample every gop samples.
func buildFragmented(t *testing.T, n, gop int) []byte {
	t.Helper()
	return buildFragments(t, n, n, func(i int) uint32 {
		if i%gop == 0 {
			return mp4.SyncSampleFlags
		}
		return mp4.NonSyncSampleFlags
	})
}

// av1Init returns an init segment with one 64x48 av01 video track.
func av1Init() *mp4.InitSegment {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(30000, "video", "en")
	trak := init.Moov.Trak
	av1C := &mp4.Av1CBox{CodecConfRec: av1.CodecConfRec{
		Version:            1,
		SeqLevelIdx0:       8,
		ChromaSubsamplingX: 1,
		ChromaSubsamplingY: 1,
	}}
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("av01", 64, 48, av1C))
	trak.Tkhd.Width = mp4.Fixed32(64 << 16)
	trak.Tkhd.Height = mp4.Fixed32(48 << 16)
	return init
}

// buildFragments writes n samples split into fragments of perFrag samples, with
// sample flags from flagsOf.
func buildFragments(t *testing.T, n, perFrag int, flagsOf func(i int) uint32) []byte {
	t.Helper()

	init := av1Init()
	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		t.Fatalf("encode ftyp: %v", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		t.Fatalf("encode moov: %v", err)
	}

	for start := 0; start < n; start += perFrag {
		frag, err := mp4.CreateFragment(uint32(start/perFrag+1), 1)
		if err != nil {
			t.Fatalf("create fragment: %v", err)
		}
		for i := start; i < n && i < start+perFrag; i++ {
			data := []byte{byte(i), 0xAA, 0xBB}
			frag.AddFullSample(mp4.FullSample{
				Sample:     mp4.Sample{Flags: flagsOf(i), Size: uint32(len(data)), Dur: 1000},
				DecodeTime: uint64(i) * 1000,
				Data:       data,
			})
		}
		if err := frag.Encode(&buf); err != nil {
			t.Fatalf("encode fragment: %v", err)
		}
	}
	return buf.Bytes()
}

func TestDemux_Fragmented(t *testing.T) {
	tr, err := demux(bytes.NewReader(buildFragmented(t, 10, 5)))
	if err != nil {
		t.Fatalf("demux failed: %v", err)
	}

	if tr.Len() != 10 {
		t.Errorf("expected 10 samples, got %d", tr.Len())
	}
	if tr.codec != CodecAV1 {
		t.Errorf("expected av1, got %s", tr.codec)
	}
	if tr.width != 64 || tr.height != 48 {
		t.Errorf("expected 64x48, got %dx%d", tr.width, tr.height)
	}
	if fps := tr.fps(); fps < 29.999 || fps > 30.001 {
		t.Errorf("expected 30 fps, got %f", fps)
	}
	if d := tr.duration(); d < 0.333 || d > 0.334 {
		t.Errorf("expected duration 1/3 s, got %f", d)
	}
	if got := tr.decodeStart(7); got != 5 {
		t.Errorf("expected decode start 5 for frame 7, got %d", got)
	}
	if got := tr.seekIndex(0.2); got != 6 {
		t.Errorf("expected frame 6 at 0.2s, got %d", got)
	}

	data, err := tr.sampleData(nil, 3)
	if err != nil {
		t.Fatalf("sampleData failed: %v", err)
	}
	if !bytes.Equal(data, []byte{3, 0xAA, 0xBB}) {
		t.Errorf("unexpected sample data %v", data)
	}
}

func TestDemux_RejectsJunk(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty": {},
		"junk":  []byte("definitely not an mp4 file"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := demux(bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedContainer) {
				t.Errorf("expected ErrUnsupportedContainer, got %v", err)
			}
		})
	}
}

func TestPresentationOrder_BFrames(t *testing.T) {
	// Decode order I P B B with presentation order I B B P.
	samples := []sample{
		{dts: 0, cto: 1000},
		{dts: 1000, cto: 3000},
		{dts: 2000, cto: 0},
		{dts: 3000, cto: 0},
	}
	got := presentationOrder(samples)
	want := []int{0, 2, 3, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func bframeTrack() *track {
	tr := &track{
		width: 2, height: 2, timescale: 1000,
		samples: []sample{
			{dts: 0, cto: 1000, dur: 1000, sync: true},
			{dts: 1000, cto: 3000, dur: 1000},
			{dts: 2000, cto: 0, dur: 1000},
			{dts: 3000, cto: 0, dur: 1000},
			{dts: 4000, cto: 1000, dur: 1000, sync: true},
			{dts: 5000, cto: 1000, dur: 1000},
		},
	}
	tr.finish()
	return tr
}

func TestTrack_Timing(t *testing.T) {
	tr := bframeTrack()

	if tr.fps() != 1 {
		t.Errorf("expected 1 fps, got %f", tr.fps())
	}
	for i := 0; i < tr.Len(); i++ {
		if got := tr.timestamp(i); got != float64(i) {
			t.Errorf("frame %d: expected timestamp %d, got %f", i, i, got)
		}
	}
	if got := tr.seekIndex(2.5); got != 3 {
		t.Errorf("expected frame 3 at 2.5s, got %d", got)
	}
	if got := tr.seekIndex(99); got != tr.Len() {
		t.Errorf("expected end index past the last frame, got %d", got)
	}
	if got := tr.decodeStart(3); got != 0 {
		t.Errorf("expected decode start 0, got %d", got)
	}
	if got := tr.decodeStart(5); got != 4 {
		t.Errorf("expected decode start 4, got %d", got)
	}
}

func TestCodecFromType(t *testing.T) {
	tests := map[string]Codec{
		"avc1": CodecH264,
		"avc3": CodecH264,
		"hvc1": CodecHEVC,
		"hev1": CodecHEVC,
		"av01": CodecAV1,
		"vp09": CodecVP9,
		"mp4v": CodecMPEG4,
		"xxxx": CodecUnknown,
	}
	for typ, want := range tests {
		if got := codecFromType(typ); got != want {
			t.Errorf("codecFromType(%q) = %s, want %s", typ, got, want)
		}
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("in.mp4", 0)
	want := []string{"-v", "error", "-nostdin", "-i", "in.mp4", "-map", "0:v:0", "-an", "-sn",
		"-f", "rawvideo", "-pix_fmt", "bgra", "-vsync", "passthrough", "pipe:1"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("unexpected args %v", args)
	}

	args = ffmpegArgs("in.mp4", 1.25)
	if args[3] != "-ss" || args[4] != "1.250000" {
		t.Errorf("expected -ss 1.250000, got %v", args[:5])
	}
}

func TestStartOffset(t *testing.T) {
	tr := bframeTrack()

	if got := startOffset(tr, 0); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
	if got := startOffset(tr, 3); got != 2.5 {
		t.Errorf("expected half a frame before 3s, got %f", got)
	}
}

func TestParseEngine(t *testing.T) {
	for in, want := range map[string]Engine{"": EngineAuto, "AUTO": EngineAuto, "ffmpeg": EngineFFmpeg, "videotoolbox": EngineVideoToolbox} {
		got, err := ParseEngine(in)
		if err != nil || got != want {
			t.Errorf("ParseEngine(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseEngine("cuda"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestDecoder_OpenErrors(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("/junk.mp4", []byte("junk"))
	fs.WriteFile("/clip.mp4", buildFragmented(t, 4, 2))

	dec := New(fs, Options{}, logger.NewNoop())
	if _, err := dec.Open("/missing.mp4"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := dec.Open("/junk.mp4"); !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("expected ErrUnsupportedContainer, got %v", err)
	}

	dec = New(fs, Options{Engine: EngineFFmpeg, FFmpegPath: "/nonexistent/ffmpeg"}, nil)
	if _, err := dec.Open("/clip.mp4"); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound, got %v", err)
	}

	dec = New(fs, Options{Engine: EngineVideoToolbox}, nil)
	_, err := dec.Open("/clip.mp4")
	if runtime.GOOS == "darwin" {
		if !errors.Is(err, ErrNoDecoderAvailable) {
			t.Errorf("expected ErrNoDecoderAvailable for av1, got %v", err)
		}
	} else if !errors.Is(err, ErrPlatformNotSupported) {
		t.Errorf("expected ErrPlatformNotSupported, got %v", err)
	}
}

func TestDecoder_NotOpen(t *testing.T) {
	dec := New(mocks.NewFileSystem(), Options{}, nil)

	if _, err := dec.Seek(0); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen from Seek, got %v", err)
	}
	if _, err := dec.DecodeNext(make([]byte, 16)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen from DecodeNext, got %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Errorf("Close on unopened decoder failed: %v", err)
	}
}

// fakeEngine emits frames whose first byte is the presentation index.
type fakeEngine struct {
	t      *track
	pos    int
	starts []int
	closes int
	failAt int
	limit  int // stop producing here when > 0
}

func (e *fakeEngine) name() Engine { return "fake" }

func (e *fakeEngine) start(t *track, from int) error {
	e.t, e.pos = t, from
	e.starts = append(e.starts, from)
	return nil
}

func (e *fakeEngine) next(dst []byte) error {
	if e.pos >= e.t.Len() || (e.limit > 0 && e.pos >= e.limit) {
		return io.EOF
	}
	if e.pos == e.failAt {
		return errors.New("corrupt sample")
	}
	dst[0] = byte(e.pos)
	e.pos++
	return nil
}

func (e *fakeEngine) close() error {
	e.closes++
	return nil
}

func openFake(t *testing.T) (*Decoder, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{failAt: -1}
	d := New(mocks.NewFileSystem(), Options{}, nil)
	d.track = bframeTrack()
	d.eng = eng
	return d, eng
}

func TestDecoder_DecodeAndSeek(t *testing.T) {
	d, eng := openFake(t)
	dst := make([]byte, 2*2*4)

	for i := 0; i < 2; i++ {
		f, err := d.DecodeNext(dst)
		if err != nil {
			t.Fatalf("DecodeNext %d failed: %v", i, err)
		}
		if f.Index != int64(i) || f.Timestamp != float64(i) || dst[0] != byte(i) {
			t.Errorf("frame %d: got index %d ts %f byte %d", i, f.Index, f.Timestamp, dst[0])
		}
	}
	if !reflect.DeepEqual(eng.starts, []int{0}) {
		t.Errorf("expected one engine start at 0, got %v", eng.starts)
	}

	idx, err := d.Seek(3.5)
	if err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if idx != 4 {
		t.Errorf("expected seek to frame 4, got %d", idx)
	}
	if eng.closes != 1 {
		t.Errorf("expected the engine to stop on seek, got %d closes", eng.closes)
	}

	f, err := d.DecodeNext(dst)
	if err != nil {
		t.Fatalf("DecodeNext after seek failed: %v", err)
	}
	if f.Index != 4 || dst[0] != 4 {
		t.Errorf("expected frame 4 after seek, got %d", f.Index)
	}
	if !reflect.DeepEqual(eng.starts, []int{0, 4}) {
		t.Errorf("expected restart at 4, got %v", eng.starts)
	}

	d.DecodeNext(dst)
	if _, err := d.DecodeNext(dst); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
}

func TestDecoder_SeekOutOfRange(t *testing.T) {
	d, _ := openFake(t)

	if _, err := d.Seek(-1); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("expected ErrNotSeekable for negative time, got %v", err)
	}
	if _, err := d.Seek(100); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("expected ErrNotSeekable past the end, got %v", err)
	}
}

func TestDecoder_ShortBufferAndFailure(t *testing.T) {
	d, eng := openFake(t)
	eng.failAt = 1

	if _, err := d.DecodeNext(make([]byte, 3)); err == nil {
		t.Error("expected error for short destination")
	}

	dst := make([]byte, 16)
	if _, err := d.DecodeNext(dst); err != nil {
		t.Fatalf("DecodeNext failed: %v", err)
	}
	if _, err := d.DecodeNext(dst); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecoder_EngineEndsEarly(t *testing.T) {
	d, eng := openFake(t)
	eng.limit = 3
	dst := make([]byte, 16)

	var count int
	for {
		_, err := d.DecodeNext(dst)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("DecodeNext failed: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 frames before the engine ran dry, got %d", count)
	}
	if _, err := d.DecodeNext(dst); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF to repeat, got %v", err)
	}
}

// TestDecoder_FFmpeg decodes a generated clip end to end when ffmpeg is installed.
func TestDecoder_FFmpeg(t *testing.T) {
	bin, err := findFFmpeg("")
	if err != nil {
		t.Skip("ffmpeg not available")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command(bin, "-v", "error", "-f", "lavfi", "-i", "testsrc=size=64x48:rate=30",
		"-t", "1", "-c:v", "mpeg4", "-g", "10", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test clip: %v: %s", err, out)
	}

	dec := New(osfilesystem.New(), Options{Engine: EngineFFmpeg}, nil)
	info, err := dec.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dec.Close()

	if info.Width != 64 || info.Height != 48 || info.FrameCount != 30 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Codec != string(CodecMPEG4) {
		t.Errorf("expected mpeg4, got %s", info.Codec)
	}

	dst := make([]byte, 64*48*4)
	var count int
	for {
		f, err := dec.DecodeNext(dst)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("DecodeNext failed at %d: %v", count, err)
		}
		if f.Index != int64(count) {
			t.Errorf("expected index %d, got %d", count, f.Index)
		}
		count++
	}
	if count != 30 {
		t.Errorf("expected 30 frames, got %d", count)
	}

	idx, err := dec.Seek(0.5)
	if err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if idx != 15 {
		t.Errorf("expected frame 15 at 0.5s, got %d", idx)
	}
	f, err := dec.DecodeNext(dst)
	if err != nil {
		t.Fatalf("DecodeNext after seek failed: %v", err)
	}
	if f.Index != 15 {
		t.Errorf("expected frame 15, got %d", f.Index)
	}
}
