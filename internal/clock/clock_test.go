package clock

import (
	"testing"
	"time"

	"refclockd/internal/pps"
	"refclockd/internal/week"
)

func TestUnixFromGPS(t *testing.T) {
	cases := []struct {
		name        string
		gpsWeek     uint32
		sweek       uint32
		wantUnix    int64
		wantRFC3339 string
	}{
		{"gps epoch", 0, 0, 315964800, "1980-01-06T00:00:00Z"},
		{"one week in", 1, 0, 315964800 + week.Seconds, "1980-01-13T00:00:00Z"},
		{"mid week", 2000, 302400, 315964800 + 2000*week.Seconds + 302400, "2018-05-09T12:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := UnixFromGPS(tc.gpsWeek, tc.sweek)
			if got != tc.wantUnix {
				t.Fatalf("unix=%d want %d", got, tc.wantUnix)
			}
			if s := time.Unix(got, 0).UTC().Format(time.RFC3339); s != tc.wantRFC3339 {
				t.Fatalf("utc=%s want %s", s, tc.wantRFC3339)
			}
		})
	}
}

func TestFractionFromNanos(t *testing.T) {
	cases := []struct {
		nsec int32
		want uint32
	}{
		{0, 0},
		{500000000, 0x80000000},
		{250000000, 0x40000000},
		{999999999, 0xFFFFFFFB},
	}
	for _, tc := range cases {
		if got := FractionFromNanos(tc.nsec); got != tc.want {
			t.Fatalf("FractionFromNanos(%d)=0x%08x want 0x%08x", tc.nsec, got, tc.want)
		}
	}
}

func TestCorrectedTimestamp_TimeRoundsFraction(t *testing.T) {
	ts := CorrectedTimestamp{UnixSeconds: 1000, Fraction: 0x80000000}
	got := ts.Time()
	want := time.Unix(1000, 500000000).UTC()
	if !got.Equal(want) {
		t.Fatalf("time=%s want %s", got, want)
	}
}

func TestCorrelator_DedupesBySequence(t *testing.T) {
	c := NewCorrelator(pps.EdgeAssert)
	s := pps.Sample{Sec: 100, Nsec: 1000, Sequence: 7, Edge: pps.EdgeAssert}

	if _, ok := c.Correlate(s, 315964800); !ok {
		t.Fatalf("first sample rejected")
	}
	// Identical fetch result: must not produce a second timestamp.
	if _, ok := c.Correlate(s, 315964801); ok {
		t.Fatalf("repeated sequence produced a timestamp")
	}

	s.Sequence = 8
	s.Sec = 101
	if _, ok := c.Correlate(s, 315964801); !ok {
		t.Fatalf("new sequence rejected")
	}
}

func TestCorrelator_DedupesByRawTimestamp(t *testing.T) {
	c := NewCorrelator(pps.EdgeAssert)
	s := pps.Sample{Sec: 100, Nsec: 1000, Sequence: 7, Edge: pps.EdgeAssert}
	if _, ok := c.Correlate(s, 315964800); !ok {
		t.Fatalf("first sample rejected")
	}
	// Sequence moved but the raw edge timestamp is bit-for-bit the same.
	s.Sequence = 8
	if _, ok := c.Correlate(s, 315964801); ok {
		t.Fatalf("identical raw timestamp produced a timestamp")
	}
}

func TestCorrelator_FiltersWrongEdgeKind(t *testing.T) {
	c := NewCorrelator(pps.EdgeClear)
	s := pps.Sample{Sec: 100, Nsec: 0, Sequence: 1, Edge: pps.EdgeAssert}
	if _, ok := c.Correlate(s, 315964800); ok {
		t.Fatalf("assert sample accepted by clear correlator")
	}
}

func TestCorrelator_CombinesSecondsAndFraction(t *testing.T) {
	c := NewCorrelator(pps.EdgeAssert)
	s := pps.Sample{Sec: 100, Nsec: 250000000, Sequence: 3, Edge: pps.EdgeAssert}
	ts, ok := c.Correlate(s, 1234567890)
	if !ok {
		t.Fatalf("sample rejected")
	}
	if ts.UnixSeconds != 1234567890 {
		t.Fatalf("unix=%d want 1234567890", ts.UnixSeconds)
	}
	if ts.Fraction != 0x40000000 {
		t.Fatalf("fraction=0x%08x want 0x40000000", ts.Fraction)
	}
}

func TestCorrelator_SetEdgeResetsDedupState(t *testing.T) {
	c := NewCorrelator(pps.EdgeAssert)
	if _, ok := c.Correlate(pps.Sample{Sec: 100, Nsec: 1, Sequence: 7, Edge: pps.EdgeAssert}, 1); !ok {
		t.Fatalf("first sample rejected")
	}
	c.SetEdge(pps.EdgeClear)
	// Clear-edge sequences are independent; the same number must pass.
	if _, ok := c.Correlate(pps.Sample{Sec: 100, Nsec: 1, Sequence: 7, Edge: pps.EdgeClear}, 2); !ok {
		t.Fatalf("sample rejected after edge switch")
	}
}
