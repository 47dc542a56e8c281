package scanner

import (
	"time"
)

// ScanSession is the state of the scan pipeline, for as long as the camera is active.
// Only the scan worker reads or writes it. Other threads see it through Status.
type ScanSession struct {
	gate         FrameGate
	buffers      [numFields]*FieldBuffer
	lastSavedKey string    // Primary ID of the most recent job handed to the resolver
	locked       bool      // Combiner may not fire while locked
	lockedUntil  time.Time //
	warning      string    // Shown to the user. Empty if all is well.
	lastMatchAt  time.Time // Last time that any field was stable
	lastEvent    *Event    // Most recent resolver result that we've seen
	startedAt    time.Time

	framesSeen     int64
	framesAnalyzed int64
	fires          int64
}

func newScanSession(settings *Settings, now time.Time) *ScanSession {
	s := &ScanSession{
		gate:        NewFrameGate(settings.ThrottleInterval),
		lastMatchAt: now,
		startedAt:   now,
	}
	for i := range s.buffers {
		s.buffers[i] = NewFieldBuffer(settings.BufferSize)
	}
	return s
}

func (s *ScanSession) clearBuffers() {
	for _, b := range s.buffers {
		b.Clear()
	}
}

func (s *ScanSession) lock(until time.Time) {
	s.locked = true
	s.lockedUntil = until
}

// Release the lock if it has expired. When it does expire, we throw away all candidates,
// so that the next product starts with a clean slate.
func (s *ScanSession) expireLock(now time.Time) {
	if s.locked && !now.Before(s.lockedUntil) {
		s.locked = false
		s.lockedUntil = time.Time{}
		s.clearBuffers()
	}
}

// stableValues returns the stable value of every field that has one,
// and whether all fields are stable.
func (s *ScanSession) stableValues(majority int) (map[Field]string, bool) {
	stable := map[Field]string{}
	for f, b := range s.buffers {
		if v, ok := b.Stable(majority); ok {
			stable[Field(f)] = v
		}
	}
	return stable, len(stable) == int(numFields)
}

// Status is an immutable snapshot of a ScanSession, for the UI
// SYNC-SCANNER-STATUS
type Status struct {
	Active         bool                `json:"active"`
	Warning        string              `json:"warning"`
	Locked         bool                `json:"locked"`
	LockedUntil    time.Time           `json:"lockedUntil,omitzero"`
	LastSaved      string              `json:"lastSaved,omitempty"`
	Candidates     map[string][]string `json:"candidates,omitempty"`
	Stable         map[string]string   `json:"stable,omitempty"`
	LastEvent      *Event              `json:"lastEvent,omitempty"`
	FramesSeen     int64               `json:"framesSeen"`
	FramesAnalyzed int64               `json:"framesAnalyzed"`
	Fires          int64               `json:"fires"`
	Time           time.Time           `json:"time"`
}

func (s *ScanSession) snapshot(majority int, now time.Time) *Status {
	st := &Status{
		Active:         true,
		Warning:        s.warning,
		Locked:         s.locked,
		LockedUntil:    s.lockedUntil,
		LastSaved:      s.lastSavedKey,
		Candidates:     map[string][]string{},
		Stable:         map[string]string{},
		LastEvent:      s.lastEvent,
		FramesSeen:     s.framesSeen,
		FramesAnalyzed: s.framesAnalyzed,
		Fires:          s.fires,
		Time:           now,
	}
	for f, b := range s.buffers {
		name := Field(f).String()
		st.Candidates[name] = append([]string(nil), b.Values()...)
		if v, ok := b.Stable(majority); ok {
			st.Stable[name] = v
		}
	}
	return st
}
