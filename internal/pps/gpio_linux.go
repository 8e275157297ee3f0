//go:build linux

package pps

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOSource is a Source backed by edge events on a GPIO line, for boards
// where the receiver's pulse output is wired to a header pin instead of a
// UART modem line. Event timestamps use CLOCK_REALTIME so they are directly
// comparable with the decoded message stream.
type GPIOSource struct {
	chip   string
	offset int

	mu     sync.Mutex
	line   *gpiocdev.Line
	edge   EdgeKind
	latest Sample
	have   bool
}

// OpenGPIO requests the given line and starts capturing edges of the given
// kind.
func OpenGPIO(chip string, offset int, edge EdgeKind) (*GPIOSource, error) {
	s := &GPIOSource{chip: chip, offset: offset}
	if err := s.request(edge); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GPIOSource) request(edge EdgeKind) error {
	edgeOpt := gpiocdev.WithRisingEdge
	if edge == EdgeClear {
		edgeOpt = gpiocdev.WithFallingEdge
	}

	line, err := gpiocdev.RequestLine(s.chip, s.offset,
		gpiocdev.AsInput,
		edgeOpt,
		gpiocdev.WithRealtimeEventClock,
		gpiocdev.WithConsumer("refclockd-pps"),
		gpiocdev.WithEventHandler(s.onEvent),
	)
	if err != nil {
		return fmt.Errorf("pps: request %s line %d: %w", s.chip, s.offset, err)
	}

	s.mu.Lock()
	s.line = line
	s.edge = edge
	s.latest = Sample{}
	s.have = false
	s.mu.Unlock()
	return nil
}

func (s *GPIOSource) onEvent(evt gpiocdev.LineEvent) {
	ts := time.Duration(evt.Timestamp)
	sample := Sample{
		Sec:      int64(ts / time.Second),
		Nsec:     int32(ts % time.Second),
		Sequence: uint32(evt.LineSeqno),
	}

	s.mu.Lock()
	sample.Edge = s.edge
	s.latest = sample
	s.have = true
	s.mu.Unlock()
}

// FetchLatest returns the most recent captured edge without blocking.
func (s *GPIOSource) FetchLatest() (Sample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		return Sample{}, false, nil
	}
	return s.latest, true, nil
}

// Configure switches the captured edge by re-requesting the line. Kernel
// discipline is a PPS-device capability and cannot be delegated from a GPIO
// line.
func (s *GPIOSource) Configure(edge EdgeKind, kernelDiscipline bool) error {
	if kernelDiscipline {
		return fmt.Errorf("pps: kernel discipline is not available on a gpio source")
	}

	s.mu.Lock()
	line := s.line
	same := s.line != nil && s.edge == edge
	s.mu.Unlock()
	if same {
		return nil
	}
	if line != nil {
		_ = line.Close()
	}
	return s.request(edge)
}

func (s *GPIOSource) Close() error {
	s.mu.Lock()
	line := s.line
	s.line = nil
	s.mu.Unlock()
	if line == nil {
		return nil
	}
	return line.Close()
}
