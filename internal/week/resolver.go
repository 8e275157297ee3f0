// Package week tracks the GPS week number across restarts, rollovers and
// message gaps. The receiver only ever reports seconds into the current
// week; the week itself has to be seeded from an occasional navigation fix
// and then carried forward pulse by pulse.
package week

// Seconds is one week of seconds, the modulus of the receiver's
// seconds-into-week counter.
const Seconds = 7 * 24 * 60 * 60

// PulseStatus classifies the outcome of applying one pulse message.
type PulseStatus int

const (
	// PulseOK means the week state was updated and a timestamp may be
	// produced from it.
	PulseOK PulseStatus = iota
	// PulseBadTime means the pulse was not valid or not UTC-synced; the
	// state is untouched.
	PulseBadTime
	// PulseWeekUnknown means no usable fix has arrived yet, so the week
	// cannot be established.
	PulseWeekUnknown
)

func (s PulseStatus) String() string {
	switch s {
	case PulseOK:
		return "ok"
	case PulseBadTime:
		return "bad_time"
	case PulseWeekUnknown:
		return "week_unknown"
	}
	return "unknown"
}

// Anomaly flags a suspicious seconds-into-week transition. Anomalies are
// advisory: a warp may be legitimate (receiver time-base reset), so they
// never block timestamp production.
type Anomaly int

const (
	// AnomalyStalled fires when seconds-into-week repeats, typically a
	// missing hardware pulse.
	AnomalyStalled Anomaly = iota + 1
	// AnomalyJumped fires when the counter moves by anything other than +1
	// outside a clean week rollover.
	AnomalyJumped
)

func (a Anomaly) String() string {
	switch a {
	case AnomalyStalled:
		return "sweek_stalled"
	case AnomalyJumped:
		return "sweek_jumped"
	}
	return "unknown"
}

// PulseResult is the outcome of Resolver.ApplyPulse.
type PulseResult struct {
	Status    PulseStatus
	Anomalies []Anomaly
	// WeekRolled is set when the week number advanced on a clean
	// end-of-week rollover.
	WeekRolled bool
	// PrevSecondsIntoWeek is the previous pulse's counter value, recorded
	// alongside any anomaly so diagnostics can show the transition.
	PrevSecondsIntoWeek uint32
}

// Resolver owns the per-device week state. Absent values are modeled
// explicitly with set flags rather than in-domain sentinels. Not safe for
// concurrent use; the driver serializes all access.
type Resolver struct {
	current    uint32
	currentSet bool

	last    uint32
	lastSet bool

	fixWeek  uint32
	fixSweek uint32
	fixSet   bool
}

// NewResolver returns a resolver with no week established.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Reset discards all week state, forcing a fresh seed from the next fix.
func (r *Resolver) Reset() {
	*r = Resolver{}
}

// ApplyFix folds a navigation fix into the resolver. The fix carries GPS
// time (no UTC leap adjustment at this layer); seconds-into-week is
// normalized into [0, Seconds) with the excess rolled into the week number.
// An invalid fix clears the stored fix and reports false.
func (r *Resolver) ApplyFix(navValid bool, gpsWeek, secondsIntoWeek uint32) bool {
	if !navValid {
		r.fixWeek = 0
		r.fixSweek = 0
		r.fixSet = false
		return false
	}
	for secondsIntoWeek >= Seconds {
		secondsIntoWeek -= Seconds
		gpsWeek++
	}
	r.fixWeek = gpsWeek
	r.fixSweek = secondsIntoWeek
	r.fixSet = true
	return true
}

// Fix returns the last usable navigation fix, if any.
func (r *Resolver) Fix() (gpsWeek, secondsIntoWeek uint32, ok bool) {
	return r.fixWeek, r.fixSweek, r.fixSet
}

// ApplyPulse advances the week state with a once-per-second time mark.
//
// Validity gating comes first: an unusable pulse mutates nothing. With no
// week established the fix seeds it, corrected for up to one week of skew
// between the (possibly stale) fix and the live pulse. An established week
// increments exactly once on a clean rollover from Seconds-1 to 0.
func (r *Resolver) ApplyPulse(secondsIntoWeek uint32, valid, utcSynced bool) PulseResult {
	if !valid || !utcSynced {
		return PulseResult{Status: PulseBadTime}
	}

	sweek := secondsIntoWeek % Seconds
	var res PulseResult

	if !r.currentSet {
		if !r.fixSet {
			return PulseResult{Status: PulseWeekUnknown}
		}
		r.current = r.fixWeek
		r.currentSet = true

		// The fix and the pulse straddle a week boundary when they are
		// more than half a week apart.
		if r.fixSweek >= sweek {
			if r.fixSweek-sweek > Seconds/2 {
				r.current++
			}
		} else {
			if sweek-r.fixSweek > Seconds/2 {
				r.current--
			}
		}
	} else if sweek == 0 && r.lastSet && r.last == Seconds-1 {
		r.current++
		res.WeekRolled = true
	}

	if r.lastSet {
		prev := r.last
		if prev == sweek {
			res.Anomalies = append(res.Anomalies, AnomalyStalled)
			res.PrevSecondsIntoWeek = prev
		} else if prev+1 != sweek && !(sweek == 0 && prev == Seconds-1) {
			res.Anomalies = append(res.Anomalies, AnomalyJumped)
			res.PrevSecondsIntoWeek = prev
		}
	}
	r.last = sweek
	r.lastSet = true

	res.Status = PulseOK
	return res
}

// Current returns the resolved week number, if established.
func (r *Resolver) Current() (uint32, bool) {
	return r.current, r.currentSet
}

// LastSecondsIntoWeek returns the most recent normalized pulse
// seconds-into-week, if one has been observed.
func (r *Resolver) LastSecondsIntoWeek() (uint32, bool) {
	return r.last, r.lastSet
}

// GPSSeconds returns the count of seconds since the GPS epoch for the
// current week state. ok is false until both the week and a pulse have been
// observed.
func (r *Resolver) GPSSeconds() (uint64, bool) {
	if !r.currentSet || !r.lastSet {
		return 0, false
	}
	return uint64(r.current)*Seconds + uint64(r.last), true
}
