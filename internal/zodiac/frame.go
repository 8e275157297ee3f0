package zodiac

import "encoding/binary"

// Wire layout, all little-endian 16-bit words:
//
//	sync(1w) | id(1w) | payload words(1w) | flags(1w) | header checksum(1w)
//	payload(N w) | payload checksum(1w, omitted when N == 0)
//
// The header checksum covers the four words preceding it; the payload
// checksum covers the payload words only.
const (
	syncWord    = 0x81FF
	headerBytes = 10
	headerWords = headerBytes / 2

	// defaultBufferBytes bounds the ingest buffer. A frame larger than this
	// can never complete and is treated as a framing error.
	defaultBufferBytes = 4096
)

// Frame is one validated receiver message, transient between the reader and
// the decoder.
type Frame struct {
	ID      uint16
	Flags   uint16
	Payload []uint16
}

// IngestResult reports what one Ingest call produced. The counters are
// advisory: framing problems are recovered locally by resync.
type IngestResult struct {
	Frames []Frame

	// ResyncBytes counts bytes discarded while hunting for a sync word.
	ResyncBytes int
	// ChecksumErrors counts sync matches rejected for a bad header or
	// payload checksum.
	ChecksumErrors int
	// Overflow is set when the bounded buffer filled and the oldest
	// buffered bytes were dropped to make room.
	Overflow bool
}

// Reader accumulates raw serial bytes and yields complete, checksum-valid
// frames. Unconsumed bytes persist across Ingest calls.
type Reader struct {
	buf []byte
	max int
}

func NewReader() *Reader {
	return NewReaderSize(defaultBufferBytes)
}

func NewReaderSize(max int) *Reader {
	if max < headerBytes+2 {
		max = headerBytes + 2
	}
	return &Reader{max: max}
}

// Buffered returns the number of bytes retained for the next Ingest call.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Ingest appends p to the internal buffer and extracts every complete frame
// now available. Bytes of a trailing partial frame are kept for later calls.
func (r *Reader) Ingest(p []byte) IngestResult {
	var res IngestResult

	r.buf = append(r.buf, p...)
	if len(r.buf) > r.max {
		// Keep the newest bytes; a partial frame at the old head is lost
		// but the stream re-synchronizes on the next sync word.
		drop := len(r.buf) - r.max
		r.buf = append(r.buf[:0], r.buf[drop:]...)
		res.Overflow = true
	}

	for {
		// Hunt for the sync word, discarding anything before it.
		start := findSync(r.buf)
		if start > 0 {
			res.ResyncBytes += start
			r.buf = append(r.buf[:0], r.buf[start:]...)
		} else if start < 0 {
			// No sync candidate. A trailing 0xFF may be the first half
			// of one, keep it.
			keep := 0
			if n := len(r.buf); n > 0 && r.buf[n-1] == 0xFF {
				keep = 1
			}
			res.ResyncBytes += len(r.buf) - keep
			r.buf = r.buf[:keep]
			return res
		}

		if len(r.buf) < headerBytes {
			return res
		}

		var header [headerWords]uint16
		for i := range header {
			header[i] = binary.LittleEndian.Uint16(r.buf[2*i:])
		}
		if wordChecksum(header[:headerWords-1]) != header[headerWords-1] {
			// Spurious sync match; step past it and keep scanning rather
			// than flushing the buffer.
			res.ChecksumErrors++
			r.buf = append(r.buf[:0], r.buf[2:]...)
			continue
		}

		plen := int(header[2])
		total := headerBytes
		if plen > 0 {
			total += 2*plen + 2
		}
		if total > r.max {
			// Advertised length can never fit the buffer; the header must
			// be garbage that happened to checksum.
			res.ChecksumErrors++
			r.buf = append(r.buf[:0], r.buf[2:]...)
			continue
		}
		if len(r.buf) < total {
			// Await the rest of the frame.
			return res
		}

		frame := Frame{ID: header[1], Flags: header[3]}
		if plen > 0 {
			payload := make([]uint16, plen)
			for i := range payload {
				payload[i] = binary.LittleEndian.Uint16(r.buf[headerBytes+2*i:])
			}
			sum := binary.LittleEndian.Uint16(r.buf[total-2:])
			if wordChecksum(payload) != sum {
				res.ChecksumErrors++
				r.buf = append(r.buf[:0], r.buf[2:]...)
				continue
			}
			frame.Payload = payload
		}

		res.Frames = append(res.Frames, frame)
		r.buf = append(r.buf[:0], r.buf[total:]...)
	}
}

// findSync returns the offset of the first sync word candidate, or -1.
func findSync(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == 0xFF && b[i+1] == 0x81 {
			return i
		}
	}
	return -1
}

// Encode serializes f into wire bytes with freshly computed checksums.
func Encode(f Frame) []byte {
	header := [headerWords]uint16{syncWord, f.ID, uint16(len(f.Payload)), f.Flags}
	header[headerWords-1] = wordChecksum(header[:headerWords-1])

	total := headerBytes
	if len(f.Payload) > 0 {
		total += 2*len(f.Payload) + 2
	}
	out := make([]byte, total)
	for i, w := range header {
		binary.LittleEndian.PutUint16(out[2*i:], w)
	}
	for i, w := range f.Payload {
		binary.LittleEndian.PutUint16(out[headerBytes+2*i:], w)
	}
	if len(f.Payload) > 0 {
		binary.LittleEndian.PutUint16(out[total-2:], wordChecksum(f.Payload))
	}
	return out
}
