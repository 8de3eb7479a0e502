// Package progress turns per-phase completion fractions into a single
// monotonic 0-100 percentage and delivers throttled, coalesced events to a
// subscriber.
package progress

// Phase identifies one stage of a conversion job.
type Phase string

// Phases shared by the conversion pipelines.
const (
	PhaseOpen     Phase = "open"
	PhaseChapters Phase = "chapters"
	PhaseAssemble Phase = "assemble"
	PhasePrepare  Phase = "prepare"
	PhaseMeasure  Phase = "measure"
	PhaseCapture  Phase = "capture"
	PhaseFinalize Phase = "finalize"
	PhaseDone     Phase = "done"
	PhaseError    Phase = "error"
)

// Unit describes progress through a countable sub-task, e.g. PDF pages.
type Unit struct {
	Label   string
	Current int
	Total   int
}

// Event is one progress update. Seq increases with every accepted publish;
// consumers use it to discard stale events from an abandoned job.
type Event struct {
	Seq     int64
	Running bool
	Phase   Phase
	Percent int
	Stage   string
	Detail  string
	Unit    *Unit
}

// PhaseWeight assigns a relative weight to a phase. Weights need not sum to
// one; NewScale normalizes them.
type PhaseWeight struct {
	Phase  Phase
	Weight float64
}

// Scale maps (phase, fraction-within-phase) onto an integer percentage.
// Percentages never decrease across calls, even for out-of-order phases or
// regressing fractions: the last-known maximum is returned instead.
type Scale struct {
	base  map[Phase]float64
	width map[Phase]float64
	last  int
}

// NewScale precomputes cumulative phase offsets from the given weights.
// Phases are laid out in slice order.
func NewScale(weights []PhaseWeight) *Scale {
	total := 0.0
	for _, w := range weights {
		total += w.Weight
	}
	s := &Scale{
		base:  make(map[Phase]float64, len(weights)),
		width: make(map[Phase]float64, len(weights)),
	}
	if total <= 0 {
		return s
	}
	acc := 0.0
	for _, w := range weights {
		s.base[w.Phase] = acc / total
		s.width[w.Phase] = w.Weight / total
		acc += w.Weight
	}
	return s
}

// PercentFor returns the overall percentage for fraction completed of the
// given phase, clamped to [0,100] and to the running maximum.
func (s *Scale) PercentFor(phase Phase, fraction float64) int {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	base, ok := s.base[phase]
	if !ok {
		return s.last
	}
	pct := int(100*(base+s.width[phase]*fraction) + 0.5)
	if pct > 100 {
		pct = 100
	}
	if pct < s.last {
		return s.last
	}
	s.last = pct
	return pct
}
