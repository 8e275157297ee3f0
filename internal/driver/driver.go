// Package driver implements the satellite-receiver reference clock: it
// decodes the receiver's binary message stream, tracks the GPS week, fuses
// the once-per-second hardware edge with the decoded week state, and
// delivers corrected timestamps to the host's clock-filtering subsystem.
package driver

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"refclockd/internal/clock"
	"refclockd/internal/pps"
	"refclockd/internal/week"
	"refclockd/internal/zodiac"
)

// Startup command sequence for the receiver's text control channel: silence
// everything the receiver chats about by default, then enable the one
// periodic message the time-sync logic needs.
var setupCommands = []string{
	"dm,/cur/term",
	"set,/par/nmea/notime,off",
	"em,,jps/TM:1",
}

// Config controls the driver core. The serial transport and the PPS source
// are collaborators owned by the caller.
type Config struct {
	// Edge selects the timestamped pulse polarity.
	Edge pps.EdgeKind
	// KernelDiscipline delegates edge discipline to the kernel hardpps
	// path where the PPS backend supports it. It has no effect on the
	// correlation algorithm.
	KernelDiscipline bool
	// TimeoutPolls is how many poll ticks may pass without receiver
	// traffic before a timeout event fires and the receiver is
	// reconfigured. Zero means 2.
	TimeoutPolls int
	// OnEvent, when set, receives every advisory event as it fires.
	OnEvent func(Event)
}

// TimeSink consumes the produced timestamps.
type TimeSink interface {
	Deliver(ts clock.CorrectedTimestamp)
}

// Snapshot is a point-in-time view of the driver for diagnostics.
type Snapshot struct {
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	Edge             string `json:"edge"`
	KernelDiscipline bool   `json:"kernel_discipline"`

	WeekKnown       bool    `json:"week_known"`
	GPSWeek         uint32  `json:"gps_week,omitempty"`
	SecondsIntoWeek *uint32 `json:"seconds_into_week,omitempty"`

	LastTimestampUTC string `json:"last_timestamp_utc,omitempty"`

	FramesTotal    uint64 `json:"frames_total"`
	ResyncBytes    uint64 `json:"resync_bytes"`
	ChecksumErrors uint64 `json:"checksum_errors"`

	Events EventCounts `json:"events"`
}

// Driver is one receiver instance. All state is mutated from a single
// dispatch goroutine: OnBytesReceived, OnPollTick and OnReconfigure must be
// serialized by the caller (the Service does this). Snapshot alone is safe
// to call from anywhere.
type Driver struct {
	cfg     Config
	control io.Writer
	source  pps.Source
	sink    TimeSink

	reader     *zodiac.Reader
	resolver   *week.Resolver
	correlator *clock.Correlator

	pollcnt        int
	counters       [eventCount]uint64
	framesTotal    uint64
	resyncBytes    uint64
	checksumErrors uint64
	lastTimestamp  clock.CorrectedTimestamp
	hasTimestamp   bool

	snap atomic.Value // Snapshot
}

// New builds a driver and configures the receiver over the control channel.
// A configuration failure is fatal: a misconfigured receiver floods the
// line with messages the frame reader would spend its life resyncing over.
func New(cfg Config, control io.Writer, source pps.Source, sink TimeSink) (*Driver, error) {
	if cfg.TimeoutPolls <= 0 {
		cfg.TimeoutPolls = 2
	}
	d := &Driver{
		cfg:        cfg,
		control:    control,
		source:     source,
		sink:       sink,
		reader:     zodiac.NewReader(),
		resolver:   week.NewResolver(),
		correlator: clock.NewCorrelator(cfg.Edge),
		pollcnt:    cfg.TimeoutPolls,
	}
	if err := d.configureReceiver(); err != nil {
		return nil, fmt.Errorf("driver: receiver init failed: %w", err)
	}
	d.publishSnapshot()
	return d, nil
}

// OnBytesReceived folds newly arrived serial bytes into the frame reader and
// dispatches every complete message. Decode order matches arrival order.
func (d *Driver) OnBytesReceived(p []byte) {
	res := d.reader.Ingest(p)
	d.resyncBytes += uint64(res.ResyncBytes)
	d.checksumErrors += uint64(res.ChecksumErrors)
	if res.Overflow {
		d.event(EventBufferOverflow)
		log.Printf("driver: frame buffer overflow, oldest bytes dropped")
	}
	if len(res.Frames) > 0 {
		// Receiver is alive; rearm the watchdog.
		d.pollcnt = d.cfg.TimeoutPolls
	}

	for _, f := range res.Frames {
		d.framesTotal++
		msg, err := zodiac.Decode(f)
		if err != nil {
			log.Printf("driver: drop malformed frame id=%d: %v", f.ID, err)
			continue
		}
		switch m := msg.(type) {
		case zodiac.PulseMessage:
			d.handlePulse(m)
		case zodiac.PositionMessage:
			d.handleFix(m)
		case nil:
			// Recognized-but-ignored message type.
		}
	}
	d.publishSnapshot()
}

// OnPollTick runs the watchdog and performs one non-blocking edge fetch,
// correlating it with the current week state.
func (d *Driver) OnPollTick() {
	if d.pollcnt > 0 {
		d.pollcnt--
	} else {
		d.event(EventTimeout)
		log.Printf("driver: receiver silent, reconfiguring")
		if err := d.configureReceiver(); err != nil {
			log.Printf("driver: reconfigure failed: %v", err)
		}
		d.pollcnt = d.cfg.TimeoutPolls
	}

	s, ok, err := d.source.FetchLatest()
	if err != nil {
		log.Printf("driver: pps fetch: %v", err)
		d.publishSnapshot()
		return
	}
	if ok {
		if sec, known := d.unixSeconds(); known {
			if ts, fresh := d.correlator.Correlate(s, sec); fresh {
				d.lastTimestamp = ts
				d.hasTimestamp = true
				if d.sink != nil {
					d.sink.Deliver(ts)
				}
			}
		}
	}
	d.publishSnapshot()
}

// OnReconfigure switches the timestamped edge and the kernel discipline
// binding at runtime. The dedup state is discarded with the old edge.
func (d *Driver) OnReconfigure(edge pps.EdgeKind, kernelDiscipline bool) error {
	if err := d.source.Configure(edge, kernelDiscipline); err != nil {
		return fmt.Errorf("driver: pps reconfigure: %w", err)
	}
	d.correlator.SetEdge(edge)
	d.cfg.Edge = edge
	d.cfg.KernelDiscipline = kernelDiscipline
	log.Printf("driver: pps edge=%s kernel_discipline=%v", edge, kernelDiscipline)
	d.publishSnapshot()
	return nil
}

// Snapshot returns the latest published view. Safe for concurrent use.
func (d *Driver) Snapshot() Snapshot {
	v := d.snap.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (d *Driver) handlePulse(m zodiac.PulseMessage) {
	res := d.resolver.ApplyPulse(m.SecondsIntoWeek, m.Valid, m.UTCSynced)
	switch res.Status {
	case week.PulseBadTime:
		d.event(EventBadTime)
		if !m.Valid {
			log.Printf("driver: time mark not valid")
		} else {
			log.Printf("driver: time mark not synced to utc")
		}
		return
	case week.PulseWeekUnknown:
		d.event(EventWeekUnknown)
		log.Printf("driver: gps week unknown, awaiting a navigation fix")
		return
	}

	for _, a := range res.Anomalies {
		switch a {
		case week.AnomalyStalled:
			d.event(EventSweekStalled)
			log.Printf("driver: seconds-into-week not incrementing sweek=%d", res.PrevSecondsIntoWeek)
		case week.AnomalyJumped:
			d.event(EventSweekJumped)
			last, _ := d.resolver.LastSecondsIntoWeek()
			log.Printf("driver: seconds-into-week jumped was=%d now=%d", res.PrevSecondsIntoWeek, last)
		}
	}
	if res.WeekRolled {
		w, _ := d.resolver.Current()
		log.Printf("driver: new gps week %d", w)
	}

	if sec, known := d.unixSeconds(); known {
		w, _ := d.resolver.Current()
		last, _ := d.resolver.LastSecondsIntoWeek()
		log.Printf("driver: timecode utc=%s gweek=%d sweek=%d",
			time.Unix(sec, 0).UTC().Format(time.RFC3339), w, last)
	}
}

func (d *Driver) handleFix(m zodiac.PositionMessage) {
	if !d.resolver.ApplyFix(m.NavValid, m.GPSWeek, m.SecondsIntoWeek) {
		log.Printf("driver: navigation solution not valid")
		return
	}
	w, sw, _ := d.resolver.Fix()
	log.Printf("driver: fix gweek=%d sweek=%d utc=%s",
		w, sw, time.Unix(clock.UnixFromGPS(w, sw), 0).UTC().Format(time.RFC3339))
}

// unixSeconds maps the resolver's week state onto Unix seconds, when both
// the week and a pulse have been observed.
func (d *Driver) unixSeconds() (int64, bool) {
	w, ok := d.resolver.Current()
	if !ok {
		return 0, false
	}
	last, ok := d.resolver.LastSecondsIntoWeek()
	if !ok {
		return 0, false
	}
	return clock.UnixFromGPS(w, last), true
}

func (d *Driver) configureReceiver() error {
	for _, cmd := range setupCommands {
		if err := d.sendCommand(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) sendCommand(cmd string) error {
	buf := []byte(cmd + "\r")
	n, err := d.control.Write(buf)
	if err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	if n != len(buf) {
		return fmt.Errorf("send %q: short write (%d != %d)", cmd, n, len(buf))
	}
	return nil
}

func (d *Driver) event(e Event) {
	d.counters[e]++
	if d.cfg.OnEvent != nil {
		d.cfg.OnEvent(e)
	}
}

func (d *Driver) publishSnapshot() {
	snap := Snapshot{
		Edge:             d.cfg.Edge.String(),
		KernelDiscipline: d.cfg.KernelDiscipline,
		FramesTotal:      d.framesTotal,
		ResyncBytes:      d.resyncBytes,
		ChecksumErrors:   d.checksumErrors,
		Events: EventCounts{
			BadTime:        d.counters[EventBadTime],
			Timeout:        d.counters[EventTimeout],
			WeekUnknown:    d.counters[EventWeekUnknown],
			SweekStalled:   d.counters[EventSweekStalled],
			SweekJumped:    d.counters[EventSweekJumped],
			BufferOverflow: d.counters[EventBufferOverflow],
		},
	}
	if w, ok := d.resolver.Current(); ok {
		snap.WeekKnown = true
		snap.GPSWeek = w
	}
	if last, ok := d.resolver.LastSecondsIntoWeek(); ok {
		v := last
		snap.SecondsIntoWeek = &v
	}
	if d.hasTimestamp {
		snap.LastTimestampUTC = d.lastTimestamp.Time().Format(time.RFC3339Nano)
	}
	d.snap.Store(snap)
}
