// Package pps captures hardware pulse-per-second edge timestamps.
//
// Two Linux backends are provided: the kernel PPS character device
// (/dev/ppsN, RFC 2783 style) and a GPIO line via the GPIO character
// device. Both expose the same non-blocking Source interface.
package pps

import "fmt"

// EdgeKind selects which pulse polarity is timestamped.
type EdgeKind int

const (
	// EdgeAssert is the rising / asserting edge.
	EdgeAssert EdgeKind = iota
	// EdgeClear is the falling / clearing edge.
	EdgeClear
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeAssert:
		return "assert"
	case EdgeClear:
		return "clear"
	}
	return "unknown"
}

// ParseEdgeKind maps a configuration string onto an EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch s {
	case "", "assert":
		return EdgeAssert, nil
	case "clear":
		return EdgeClear, nil
	}
	return 0, fmt.Errorf("pps: unknown edge kind %q", s)
}

// Sample is one captured edge: the raw CLOCK_REALTIME timestamp of the edge
// plus the kernel's running sequence number for that edge kind.
type Sample struct {
	Sec      int64
	Nsec     int32
	Sequence uint32
	Edge     EdgeKind
}

// Source produces the most recently captured edge of the configured kind.
//
// FetchLatest must never block: it returns ok=false when no edge has been
// captured yet, and otherwise the latest sample even if it was already
// returned before. Deduplication of repeats is the caller's concern.
type Source interface {
	FetchLatest() (s Sample, ok bool, err error)

	// Configure switches the captured edge kind and, where the backend
	// supports it, delegates edge discipline to the kernel. It may be
	// called while the source is live.
	Configure(edge EdgeKind, kernelDiscipline bool) error

	Close() error
}
