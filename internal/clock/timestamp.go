// Package clock turns resolved GPS week state and captured hardware edges
// into dated, validated timestamps for the host's clock-filtering subsystem.
package clock

import (
	"fmt"
	"time"

	"refclockd/internal/week"
)

// gpsEpoch is the Unix time of the GPS epoch, 1980-01-06T00:00:00Z.
const gpsEpoch = 315964800

// CorrectedTimestamp is the sole artifact this driver delivers: whole Unix
// seconds from the decoded message stream plus a 32-bit binary fraction of a
// second from the hardware edge. Immutable once produced.
type CorrectedTimestamp struct {
	UnixSeconds int64
	// Fraction is a fixed-point fraction of one second in units of 2^-32.
	Fraction uint32
}

// UnixFromGPS maps a resolved (week, seconds-into-week) pair onto Unix
// seconds through the fixed GPS epoch offset.
func UnixFromGPS(gpsWeek, secondsIntoWeek uint32) int64 {
	return gpsEpoch + int64(gpsWeek)*week.Seconds + int64(secondsIntoWeek)
}

// FractionFromNanos converts a sub-second nanosecond count into the binary
// fraction representation.
func FractionFromNanos(nsec int32) uint32 {
	return uint32((uint64(uint32(nsec)) << 32) / 1e9)
}

// Time returns the timestamp as a time.Time, with the fraction rounded to
// nanoseconds.
func (t CorrectedTimestamp) Time() time.Time {
	nsec := (uint64(t.Fraction)*1e9 + 1<<31) >> 32
	return time.Unix(t.UnixSeconds, int64(nsec)).UTC()
}

func (t CorrectedTimestamp) String() string {
	return fmt.Sprintf("%s (+%d/2^32)", t.Time().Format(time.RFC3339Nano), t.Fraction)
}
