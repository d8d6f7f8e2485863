// Package timeline tracks where a session is on its overall viewing timeline
// as playback moves between the main source and diverted clips.
package timeline

// Tracker accumulates watched time across source segments. Within a segment
// the cumulative time is the segment base plus the distance travelled on the
// local clock since the segment started.
//
// The zero value is a tracker at cumulative time 0 on a segment starting at 0.
type Tracker struct {
	base         float64
	segmentStart float64
	last         float64
}

// Observe records the latest local position and returns the cumulative time.
func (t *Tracker) Observe(local float64) float64 {
	t.last = local
	return t.At(local)
}

// At returns the cumulative time for a local position in the current segment
// without recording it.
func (t *Tracker) At(local float64) float64 {
	d := local - t.segmentStart
	if d < 0 {
		d = 0
	}
	return t.base + d
}

// Cumulative returns the cumulative time at the last observed position.
func (t *Tracker) Cumulative() float64 {
	return t.At(t.last)
}

// StartSegment closes the current segment at leaveLocal and opens a new one
// starting at startLocal, which may be on a different source. Used on source
// switches and seeks so jumps are never counted as watched time.
func (t *Tracker) StartSegment(leaveLocal, startLocal float64) {
	t.base = t.At(leaveLocal)
	t.segmentStart = startLocal
	t.last = startLocal
}

// Reset places the tracker at an absolute cumulative time on a segment
// starting at startLocal. Used when rewinding to an earlier point.
func (t *Tracker) Reset(cumulative, startLocal float64) {
	t.base = cumulative
	t.segmentStart = startLocal
	t.last = startLocal
}
