package nativedecoder

import (
	"fmt"
	"io"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"
)

// seekTolerance absorbs rounding between requested times and sample timestamps.
const seekTolerance = 1e-6

// sample is one coded video sample in decode order.
type sample struct {
	offset uint64
	size   uint32
	dts    uint64
	cto    int32
	dur    uint32
	sync   bool
	data   []byte // set for fragmented files, read lazily otherwise
}

func (s sample) pts() int64 {
	return int64(s.dts) + int64(s.cto)
}

// track is the demuxed video track of a file.
type track struct {
	id        uint32
	codec     Codec
	width     int
	height    int
	timescale uint32
	sps       [][]byte
	pps       [][]byte

	// editStart is the media time where presentation begins, from the first
	// non-empty edit list entry.
	editStart int64
	hasEdit   bool

	samples []sample // decode order
	order   []int    // presentation index -> decode index
	presOf  []int    // decode index -> presentation index, -1 when cut by the edit list
	pts0    int64
	span    uint64 // summed durations of presented samples
}

// Len returns the number of presented frames.
func (t *track) Len() int { return len(t.order) }

// timestamp returns the presentation time of frame i in seconds, relative to the first frame.
func (t *track) timestamp(i int) float64 {
	return float64(t.samples[t.order[i]].pts()-t.pts0) / float64(t.timescale)
}

// duration returns the track duration in seconds.
func (t *track) duration() float64 {
	return float64(t.span) / float64(t.timescale)
}

// fps derives the frame rate from the frame count and total duration.
func (t *track) fps() float64 {
	if t.span == 0 {
		return 0
	}
	return float64(len(t.order)) * float64(t.timescale) / float64(t.span)
}

// seekIndex returns the first presentation index with a timestamp at or after ts.
func (t *track) seekIndex(ts float64) int {
	return sort.Search(len(t.order), func(i int) bool {
		return t.timestamp(i) >= ts-seekTolerance
	})
}

// decodeStart returns the decode index of the last sync sample at or before the
// sample presented at index i.
func (t *track) decodeStart(i int) int {
	d := t.order[i]
	for k := d; k >= 0; k-- {
		if t.samples[k].sync {
			return k
		}
	}
	return 0
}

// sampleData returns the coded bytes of decode index k.
func (t *track) sampleData(r io.ReadSeeker, k int) ([]byte, error) {
	s := t.samples[k]
	if s.data != nil {
		return s.data, nil
	}
	if _, err := r.Seek(int64(s.offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample %d: %w", k, err)
	}
	data := make([]byte, s.size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read sample %d: %w", k, err)
	}
	return data, nil
}

// finish computes presentation order and timing once samples are collected.
// Samples presented before the edit start are still decoded as references but
// never delivered.
func (t *track) finish() {
	order := presentationOrder(t.samples)
	if t.hasEdit {
		var visible []int
		for _, d := range order {
			if t.samples[d].pts() >= t.editStart {
				visible = append(visible, d)
			}
		}
		if len(visible) > 0 {
			order = visible
		}
	}
	t.order = order

	t.presOf = make([]int, len(t.samples))
	for d := range t.presOf {
		t.presOf[d] = -1
	}
	t.span = 0
	for p, d := range t.order {
		t.presOf[d] = p
		t.span += uint64(t.samples[d].dur)
	}
	if len(t.order) > 0 {
		t.pts0 = t.samples[t.order[0]].pts()
	}
}

// presentationOrder sorts decode indices by presentation time, keeping decode
// order for equal timestamps.
func presentationOrder(samples []sample) []int {
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return samples[order[a]].pts() < samples[order[b]].pts()
	})
	return order
}

// demux parses an MP4/MOV stream and returns its first video track.
func demux(r io.ReadSeeker) (*track, error) {
	f, err := mp4.DecodeFile(r, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedContainer, err)
	}

	if f.IsFragmented() {
		// Fragment samples are read from mdat, so the file is decoded fully.
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedContainer, err)
		}
		f, err = mp4.DecodeFile(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedContainer, err)
		}
		return fragmentedTrack(f)
	}

	if f.Moov == nil {
		return nil, fmt.Errorf("%w: no moov box", ErrUnsupportedContainer)
	}
	return progressiveTrack(f.Moov)
}

func videoTrak(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

// newTrack reads the track header, timescale and sample description.
func newTrack(trak *mp4.TrakBox) (*track, error) {
	t := &track{codec: CodecUnknown, timescale: 1000}
	if trak.Tkhd != nil {
		t.id = trak.Tkhd.TrackID
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale != 0 {
		t.timescale = trak.Mdia.Mdhd.Timescale
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil, fmt.Errorf("%w: no sample description", ErrNoVideoTrack)
	}
	t.editStart, t.hasEdit = editStart(trak)

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		t.codec = codecFromType(child.Type())
		if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
			t.width = int(vse.Width)
			t.height = int(vse.Height)
			if vse.AvcC != nil {
				t.sps = vse.AvcC.SPSnalus
				t.pps = vse.AvcC.PPSnalus
			}
		}
		break
	}
	return t, nil
}

// editStart returns the media time of the first non-empty edit. Empty edits
// (media time -1) only delay presentation and are skipped.
func editStart(trak *mp4.TrakBox) (int64, bool) {
	if trak.Edts == nil {
		return 0, false
	}
	for _, elst := range trak.Edts.Elst {
		for _, e := range elst.Entries {
			if e.MediaTime >= 0 {
				return e.MediaTime, true
			}
		}
	}
	return 0, false
}

func progressiveTrack(moov *mp4.MoovBox) (*track, error) {
	trak := videoTrak(moov)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}
	t, err := newTrack(trak)
	if err != nil {
		return nil, err
	}

	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil || stbl.Stts == nil {
		return nil, fmt.Errorf("%w: incomplete sample table", ErrNoVideoTrack)
	}

	// No stss box means every sample is a sync sample.
	var syncSamples map[uint32]bool
	if stbl.Stss != nil {
		syncSamples = make(map[uint32]bool, len(stbl.Stss.SampleNumber))
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	count := stbl.Stsz.SampleNumber
	t.samples = make([]sample, 0, count)
	for nr := uint32(1); nr <= count; nr++ {
		offset, err := sampleOffset(stbl, nr)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", nr, err)
		}
		dts, dur := stbl.Stts.GetDecodeTime(nr)
		var cto int32
		if stbl.Ctts != nil {
			cto = stbl.Ctts.GetCompositionTimeOffset(nr)
		}
		t.samples = append(t.samples, sample{
			offset: offset,
			size:   stbl.Stsz.GetSampleSize(int(nr)),
			dts:    dts,
			cto:    cto,
			dur:    dur,
			sync:   syncSamples == nil || syncSamples[nr],
		})
	}

	t.finish()
	return t, nil
}

// sampleOffset resolves the file offset of a 1-based sample number through the chunk tables.
func sampleOffset(stbl *mp4.StblBox, nr uint32) (uint64, error) {
	chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
	if err != nil {
		return 0, fmt.Errorf("chunk lookup: %w", err)
	}

	var offset uint64
	switch {
	case stbl.Stco != nil:
		offset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, fmt.Errorf("chunk %d out of range", chunkNr)
		}
		offset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return 0, fmt.Errorf("no stco or co64 box")
	}

	for s := uint32(firstInChunk); s < nr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	return offset, nil
}

func fragmentedTrack(f *mp4.File) (*track, error) {
	if f.Init == nil || f.Init.Moov == nil {
		return nil, fmt.Errorf("%w: no init segment", ErrUnsupportedContainer)
	}
	moov := f.Init.Moov
	trak := videoTrak(moov)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}
	t, err := newTrack(trak)
	if err != nil {
		return nil, err
	}

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, tr := range moov.Mvex.Trexs {
			if tr.TrackID == t.id {
				trex = tr
				break
			}
		}
	}

	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			// Without a trex, mp4ff reads the first traf whatever its track.
			if trex == nil && len(frag.Moof.Trafs) > 1 {
				return nil, fmt.Errorf("%w: no trex for track %d in a multi-track fragment", ErrNoVideoTrack, t.id)
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != t.id {
					continue
				}
				flagged := sampleFlagsSignalled(traf, trex)
				var current uint64
				if traf.Tfdt != nil {
					current = traf.Tfdt.BaseMediaDecodeTime()
				}

				full, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("fragment samples: %w", err)
				}
				for i, s := range full {
					t.samples = append(t.samples, sample{
						size: uint32(len(s.Data)),
						dts:  current,
						cto:  s.CompositionTimeOffset,
						dur:  s.Dur,
						sync: mp4.IsSyncSampleFlags(s.Flags) || (!flagged && i == 0),
						data: s.Data,
					})
					current += uint64(s.Dur)
				}
			}
		}
	}

	t.finish()
	return t, nil
}

// sampleFlagsSignalled reports whether the fragment carries sample flags for traf,
// either per sample, for the first sample, or as a default.
func sampleFlagsSignalled(traf *mp4.TrafBox, trex *mp4.TrexBox) bool {
	if traf.Tfhd.HasDefaultSampleFlags() || (trex != nil && trex.DefaultSampleFlags != 0) {
		return true
	}
	for _, trun := range traf.Truns {
		if trun.HasSampleFlags() || trun.HasFirstSampleFlags() {
			return true
		}
	}
	return false
}
