package ports

// VideoInfo describes an opened video stream.
//
// FrameCount is derived from container metadata and is an upper bound on the
// number of frames a full decode delivers; it may be 0 when the container does
// not record it.
type VideoInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int64
	Duration   float64 // seconds
	Codec      string
	Seekable   bool
}

// DecodedFrame carries the metadata of a frame written by DecoderBackend.DecodeNext.
type DecodedFrame struct {
	Index     int64   // 0-based position in presentation order
	Timestamp float64 // presentation time in seconds
}

// DecoderBackend is a platform video decoder that produces BGRA frames.
//
// A backend serves one file for its whole lifetime and is not safe for
// concurrent use.
type DecoderBackend interface {
	// Open reads the stream properties and prepares decoding from the first frame.
	Open(path string) (VideoInfo, error)

	// Seek repositions to the first frame presented at or after ts and returns the index
	// of the frame the next DecodeNext will deliver. On failure the position is unchanged.
	Seek(ts float64) (int64, error)

	// DecodeNext decodes the next frame into dst, which holds at least
	// width*height*4 bytes. It returns io.EOF once the stream is exhausted.
	DecodeNext(dst []byte) (DecodedFrame, error)

	// Close releases all decoder and file resources. It is safe to call more than once.
	Close() error
}
