package clock

import "refclockd/internal/pps"

// Correlator fuses captured hardware edges with the resolver's week state.
// Repeated notifications for the same edge are filtered out: the kernel
// reports the latest capture on every fetch, so the same edge can be seen
// many times between pulses.
type Correlator struct {
	edge pps.EdgeKind

	lastSeq  uint32
	haveSeq  bool
	lastSec  int64
	lastNsec int32
	haveTS   bool
}

func NewCorrelator(edge pps.EdgeKind) *Correlator {
	return &Correlator{edge: edge}
}

// Edge returns the edge kind currently accepted.
func (c *Correlator) Edge() pps.EdgeKind {
	return c.edge
}

// SetEdge switches the accepted edge kind and discards the dedup state,
// since sequence numbers are per edge kind.
func (c *Correlator) SetEdge(edge pps.EdgeKind) {
	if c.edge == edge {
		return
	}
	c.edge = edge
	c.haveSeq = false
	c.haveTS = false
}

// Correlate combines a captured edge with the Unix seconds derived from the
// current week state. It returns ok=false when the sample repeats the
// previously accepted edge (same sequence number, or a bit-for-bit identical
// raw timestamp) or is for the wrong edge kind.
func (c *Correlator) Correlate(s pps.Sample, unixSeconds int64) (CorrectedTimestamp, bool) {
	if s.Edge != c.edge {
		return CorrectedTimestamp{}, false
	}
	if c.haveSeq && s.Sequence == c.lastSeq {
		return CorrectedTimestamp{}, false
	}
	if c.haveTS && s.Sec == c.lastSec && s.Nsec == c.lastNsec {
		return CorrectedTimestamp{}, false
	}

	c.lastSeq = s.Sequence
	c.haveSeq = true
	c.lastSec = s.Sec
	c.lastNsec = s.Nsec
	c.haveTS = true

	return CorrectedTimestamp{
		UnixSeconds: unixSeconds,
		Fraction:    FractionFromNanos(s.Nsec),
	}, true
}
