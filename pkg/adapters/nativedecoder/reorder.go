package nativedecoder

import (
	"errors"
	"fmt"
	"io"
)

// errNoImage is returned when the decoder accepts a sample but outputs no frame for it.
var errNoImage = errors.New("decoder produced no image")

// decodeFunc decodes one coded sample. A nil frame with a nil error means the decoder
// produced no image. The returned frame is only valid until the next call.
type decodeFunc func(data []byte) ([]byte, error)

// reorderer feeds samples in decode order, starting at the sync sample before the
// target, and hands frames out in presentation order.
type reorderer struct {
	t *track

	decodeIdx int            // next sample to feed, decode order
	want      int            // next frame to emit, presentation order
	pending   map[int][]byte // decoded ahead of want
	spare     [][]byte
}

// reset positions the reorderer at presentation index from and recycles pending frames.
func (o *reorderer) reset(t *track, from int) {
	o.t = t
	o.want = from
	o.decodeIdx = 0
	if from < t.Len() {
		o.decodeIdx = t.decodeStart(from)
	}
	o.release()
	if o.pending == nil {
		o.pending = make(map[int][]byte)
	}
}

// next writes the frame at the current presentation index into dst.
func (o *reorderer) next(r io.ReadSeeker, dst []byte, decode decodeFunc) error {
	size := o.t.width * o.t.height * 4
	for {
		if buf, ok := o.pending[o.want]; ok {
			copy(dst, buf)
			delete(o.pending, o.want)
			o.spare = append(o.spare, buf)
			o.want++
			return nil
		}
		if o.want >= o.t.Len() || o.decodeIdx >= len(o.t.samples) {
			return io.EOF
		}

		k := o.decodeIdx
		data, err := o.t.sampleData(r, k)
		if err != nil {
			return err
		}
		p := o.t.presOf[k]
		o.decodeIdx++

		var out []byte
		if len(data) > 0 {
			if out, err = decode(data); err != nil {
				return fmt.Errorf("sample %d: %w", k, err)
			}
		}
		if p < o.want {
			// Lead-in from the sync sample, or cut by the edit list.
			continue
		}
		// A missing frame at or after want would never be emitted.
		if out == nil {
			return fmt.Errorf("%w: frame %d (sample %d)", errNoImage, p, k)
		}

		if p == o.want {
			copy(dst, out[:size])
			o.want++
			return nil
		}
		buf := o.buffer(size)
		copy(buf, out[:size])
		o.pending[p] = buf
	}
}

func (o *reorderer) buffer(size int) []byte {
	if n := len(o.spare); n > 0 {
		buf := o.spare[n-1]
		o.spare = o.spare[:n-1]
		return buf
	}
	return make([]byte, size)
}

// release moves every pending frame back to the spare list.
func (o *reorderer) release() {
	for k, buf := range o.pending {
		o.spare = append(o.spare, buf)
		delete(o.pending, k)
	}
}

// buffered returns the number of frames decoded ahead of the current position.
func (o *reorderer) buffered() int { return len(o.pending) }
