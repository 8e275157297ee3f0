package zodiac

import (
	"bytes"
	"reflect"
	"testing"
)

func TestWordChecksum_SumsToZero(t *testing.T) {
	words := []uint16{0x81FF, 0x0454, 0x0003, 0x0000}
	sum := wordChecksum(words)
	var total uint16
	for _, w := range words {
		total += w
	}
	if total+sum != 0 {
		t.Fatalf("checksum 0x%04x does not cancel sum 0x%04x", sum, total)
	}
}

func TestEncodeIngest_RoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
	}{
		{"pulse", EncodePulse(PulseMessage{SecondsIntoWeek: 302400, Valid: true, UTCSynced: true})},
		{"geodetic", EncodeGeodetic(PositionMessage{NavValid: true, GPSWeek: 1000, SecondsIntoWeek: 5})},
		{"empty payload", Frame{ID: 1217, Flags: 0x0020}},
		{"arbitrary", Frame{ID: 42, Flags: 7, Payload: []uint16{0xDEAD, 0xBEEF, 0x0000, 0xFFFF}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader()
			res := r.Ingest(Encode(tc.frame))
			if len(res.Frames) != 1 {
				t.Fatalf("frames=%d want 1", len(res.Frames))
			}
			if res.ResyncBytes != 0 || res.ChecksumErrors != 0 || res.Overflow {
				t.Fatalf("unexpected framing events: %+v", res)
			}
			if !reflect.DeepEqual(res.Frames[0], tc.frame) {
				t.Fatalf("frame=%+v want %+v", res.Frames[0], tc.frame)
			}
			if r.Buffered() != 0 {
				t.Fatalf("buffered=%d want 0", r.Buffered())
			}
		})
	}
}

func TestIngest_GarbagePrefixResyncs(t *testing.T) {
	frame := EncodePulse(PulseMessage{SecondsIntoWeek: 100, Valid: true, UTCSynced: true})
	in := append([]byte{0x01, 0x02, 0x03}, Encode(frame)...)

	r := NewReader()
	res := r.Ingest(in)
	if len(res.Frames) != 1 {
		t.Fatalf("frames=%d want 1", len(res.Frames))
	}
	if res.ResyncBytes != 3 {
		t.Fatalf("resync bytes=%d want 3", res.ResyncBytes)
	}
	if !reflect.DeepEqual(res.Frames[0], frame) {
		t.Fatalf("frame=%+v want %+v", res.Frames[0], frame)
	}
}

func TestIngest_CorruptedByteRecovers(t *testing.T) {
	bad := Encode(EncodePulse(PulseMessage{SecondsIntoWeek: 100, Valid: true, UTCSynced: true}))
	// Flip a payload byte so the payload checksum fails.
	bad[headerBytes] ^= 0xA5
	good := EncodeGeodetic(PositionMessage{NavValid: true, GPSWeek: 1500, SecondsIntoWeek: 12345})

	r := NewReader()
	res := r.Ingest(append(bad, Encode(good)...))
	if res.ChecksumErrors == 0 {
		t.Fatalf("expected a checksum error, got %+v", res)
	}
	if len(res.Frames) != 1 {
		t.Fatalf("frames=%d want 1", len(res.Frames))
	}
	if !reflect.DeepEqual(res.Frames[0], good) {
		t.Fatalf("frame=%+v want %+v", res.Frames[0], good)
	}
}

func TestIngest_BadHeaderChecksumDoesNotFlushBuffer(t *testing.T) {
	// A spurious sync word directly before a valid frame: the reader must
	// step past it and still decode the real frame in the same call.
	good := EncodeGeodetic(PositionMessage{NavValid: true, GPSWeek: 1500, SecondsIntoWeek: 1})
	in := append([]byte{0xFF, 0x81, 0x00, 0x11, 0x22, 0x33}, Encode(good)...)

	r := NewReader()
	res := r.Ingest(in)
	if res.ChecksumErrors == 0 {
		t.Fatalf("expected checksum errors, got %+v", res)
	}
	if len(res.Frames) != 1 || !reflect.DeepEqual(res.Frames[0], good) {
		t.Fatalf("frames=%+v want the valid frame", res.Frames)
	}
}

func TestIngest_PartialFrameAcrossCalls(t *testing.T) {
	frame := EncodePulse(PulseMessage{SecondsIntoWeek: 604799, Valid: true, UTCSynced: true})
	wire := Encode(frame)

	r := NewReader()
	for i := 0; i < len(wire)-1; i++ {
		res := r.Ingest(wire[i : i+1])
		if len(res.Frames) != 0 {
			t.Fatalf("frame emitted early at byte %d", i)
		}
	}
	res := r.Ingest(wire[len(wire)-1:])
	if len(res.Frames) != 1 || !reflect.DeepEqual(res.Frames[0], frame) {
		t.Fatalf("frames=%+v want %+v", res.Frames, frame)
	}
}

func TestIngest_TrailingBytesPreserved(t *testing.T) {
	a := Encode(EncodePulse(PulseMessage{SecondsIntoWeek: 1, Valid: true, UTCSynced: true}))
	b := Encode(EncodeGeodetic(PositionMessage{NavValid: true, GPSWeek: 900, SecondsIntoWeek: 2}))
	in := append(append([]byte{}, a...), b[:4]...)

	r := NewReader()
	res := r.Ingest(in)
	if len(res.Frames) != 1 {
		t.Fatalf("frames=%d want 1", len(res.Frames))
	}
	res = r.Ingest(b[4:])
	if len(res.Frames) != 1 {
		t.Fatalf("frames=%d want 1 after completing second frame", len(res.Frames))
	}
}

func TestIngest_OverflowDropsOldestAndReports(t *testing.T) {
	r := NewReaderSize(32)
	junk := bytes.Repeat([]byte{0x00}, 64)
	res := r.Ingest(junk)
	if !res.Overflow {
		t.Fatalf("expected overflow, got %+v", res)
	}
	if r.Buffered() > 32 {
		t.Fatalf("buffered=%d exceeds capacity", r.Buffered())
	}

	// The reader must still work after truncation.
	frame := EncodePulse(PulseMessage{SecondsIntoWeek: 7, Valid: true, UTCSynced: true})
	res = r.Ingest(Encode(frame))
	if len(res.Frames) != 1 || !reflect.DeepEqual(res.Frames[0], frame) {
		t.Fatalf("frames=%+v want %+v after overflow", res.Frames, frame)
	}
}

func TestIngest_OversizedLengthTreatedAsFramingError(t *testing.T) {
	wire := Encode(Frame{ID: 1, Payload: []uint16{0xAAAA}})
	// Rewrite the length word to something that can never fit, fixing up the
	// header checksum so only the length guard can reject it.
	header := []uint16{syncWord, 1, 0x7000, 0}
	hsum := wordChecksum(header)
	wire[4] = byte(0x7000 & 0xFF)
	wire[5] = byte(0x7000 >> 8)
	wire[8] = byte(hsum & 0xFF)
	wire[9] = byte(hsum >> 8)

	r := NewReader()
	res := r.Ingest(wire)
	if len(res.Frames) != 0 {
		t.Fatalf("frames=%d want 0", len(res.Frames))
	}
	if res.ChecksumErrors == 0 {
		t.Fatalf("expected the oversized header to be rejected: %+v", res)
	}
}
