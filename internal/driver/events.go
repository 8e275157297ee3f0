package driver

// Event is an advisory condition raised while processing receiver traffic.
// Events never fault the driver; they are counted and handed to the
// configured diagnostics hook.
type Event int

const (
	// EventBadTime fires when a pulse is not valid or not UTC-synced.
	EventBadTime Event = iota
	// EventTimeout fires when the receiver stops talking for the
	// configured number of poll ticks.
	EventTimeout
	// EventWeekUnknown fires when a pulse arrives before any usable fix.
	EventWeekUnknown
	// EventSweekStalled fires when seconds-into-week repeats.
	EventSweekStalled
	// EventSweekJumped fires on a non-contiguous, non-rollover transition.
	EventSweekJumped
	// EventBufferOverflow fires when the frame buffer dropped old bytes.
	EventBufferOverflow

	eventCount
)

func (e Event) String() string {
	switch e {
	case EventBadTime:
		return "bad_time"
	case EventTimeout:
		return "timeout"
	case EventWeekUnknown:
		return "week_unknown"
	case EventSweekStalled:
		return "sweek_stalled"
	case EventSweekJumped:
		return "sweek_jumped"
	case EventBufferOverflow:
		return "buffer_overflow"
	}
	return "unknown"
}

// EventCounts is the per-event tally exposed in snapshots.
type EventCounts struct {
	BadTime        uint64 `json:"bad_time"`
	Timeout        uint64 `json:"timeout"`
	WeekUnknown    uint64 `json:"week_unknown"`
	SweekStalled   uint64 `json:"sweek_stalled"`
	SweekJumped    uint64 `json:"sweek_jumped"`
	BufferOverflow uint64 `json:"buffer_overflow"`
}
