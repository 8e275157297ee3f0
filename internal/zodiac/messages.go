package zodiac

import "fmt"

// Message type identifiers for the two frames the time-sync logic consumes.
// Everything else the receiver emits is accepted and dropped.
const (
	MsgIDPulse    = 1108
	MsgIDGeodetic = 1000
)

// Pulse message payload flag bits.
const (
	pulseFlagValid = 0x0001
	pulseFlagUTC   = 0x0002
)

// PulseMessage is the once-per-second time mark. SecondsIntoWeek labels the
// pulse edge; it is raw off the wire and may need normalization into
// [0, WEEKSECS).
type PulseMessage struct {
	SecondsIntoWeek uint32
	Valid           bool
	UTCSynced       bool
}

// PositionMessage is the intermittent navigation fix. It is the only message
// that carries the GPS week number. SecondsIntoWeek may exceed one week
// before normalization.
type PositionMessage struct {
	NavValid        bool
	GPSWeek         uint32
	SecondsIntoWeek uint32
}

// Message is a decoded receiver record.
type Message interface {
	isMessage()
}

func (PulseMessage) isMessage()    {}
func (PositionMessage) isMessage() {}

// Payload word layouts. A 32-bit field is two consecutive words, low word
// first.
const (
	pulseWords    = 3 // sweek(2) flags(1)
	geodeticWords = 4 // navval(1) gweek(1) sweek(2)
)

// Decode maps a frame to its typed record. Unrecognized IDs are not an
// error: they decode to (nil, nil) and are dropped by the caller. A
// recognized frame with a short payload is malformed.
func Decode(f Frame) (Message, error) {
	switch f.ID {
	case MsgIDPulse:
		if len(f.Payload) < pulseWords {
			return nil, fmt.Errorf("zodiac: pulse payload too short: %d words", len(f.Payload))
		}
		flags := f.Payload[2]
		return PulseMessage{
			SecondsIntoWeek: u32(f.Payload[0:2]),
			Valid:           flags&pulseFlagValid != 0,
			UTCSynced:       flags&pulseFlagUTC != 0,
		}, nil
	case MsgIDGeodetic:
		if len(f.Payload) < geodeticWords {
			return nil, fmt.Errorf("zodiac: geodetic payload too short: %d words", len(f.Payload))
		}
		return PositionMessage{
			NavValid:        f.Payload[0] == 0,
			GPSWeek:         uint32(f.Payload[1]),
			SecondsIntoWeek: u32(f.Payload[2:4]),
		}, nil
	default:
		return nil, nil
	}
}

// EncodePulse builds a pulse frame, the inverse of Decode for MsgIDPulse.
func EncodePulse(m PulseMessage) Frame {
	var flags uint16
	if m.Valid {
		flags |= pulseFlagValid
	}
	if m.UTCSynced {
		flags |= pulseFlagUTC
	}
	return Frame{
		ID:      MsgIDPulse,
		Payload: []uint16{uint16(m.SecondsIntoWeek), uint16(m.SecondsIntoWeek >> 16), flags},
	}
}

// EncodeGeodetic builds a geodetic position frame.
func EncodeGeodetic(m PositionMessage) Frame {
	navval := uint16(1)
	if m.NavValid {
		navval = 0
	}
	return Frame{
		ID: MsgIDGeodetic,
		Payload: []uint16{
			navval,
			uint16(m.GPSWeek),
			uint16(m.SecondsIntoWeek),
			uint16(m.SecondsIntoWeek >> 16),
		},
	}
}

func u32(w []uint16) uint32 {
	return uint32(w[1])<<16 | uint32(w[0])
}
