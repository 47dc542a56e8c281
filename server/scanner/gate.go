package scanner

import "time"

// FrameGate lets through at most one frame per interval
type FrameGate struct {
	interval time.Duration
	last     time.Time
}

func NewFrameGate(interval time.Duration) FrameGate {
	return FrameGate{interval: interval}
}

// Allow returns true if a frame at time 'now' should be analyzed.
// A rejected frame does not change the gate's state.
func (g *FrameGate) Allow(now time.Time) bool {
	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}
