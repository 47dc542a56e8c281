// Package scanner turns a stream of camera frames into scanned inventory items.
//
// Each frame passes through these stages, in order:
//
//	gate -> quality -> text recognition -> ROI filter -> field extraction -> stabilization -> combiner
//
// When the combiner sees a stable primary ID and weight, it hands a job to the Resolver,
// which runs on its own goroutine, and writes the item to the Store.
// ProcessFrame never blocks on IO.
package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/vizcount/vizcount/pkg/gen"
	"github.com/vizcount/vizcount/pkg/geom"
	"github.com/vizcount/vizcount/pkg/ocr"
	"github.com/vizcount/vizcount/pkg/perfstats"
	"github.com/vizcount/vizcount/pkg/quality"
)

const WarnStall = "No label found, reposition and retry"

// Frame is one camera frame. The scanner does not retain it after ProcessFrame returns.
type Frame struct {
	Width  int
	Height int
	Image  *cimg.Image // May be nil if Text is populated. The quality check is skipped when nil.
	Text   *ocr.Result // If not nil, this is used instead of running the recognizer
	Time   time.Time   // If zero, the scanner's clock is used
}

// FrameOutcome says how far a frame made it through the pipeline
type FrameOutcome int

const (
	OutcomeInactive     FrameOutcome = iota // No session. The camera is off.
	OutcomeThrottled                        // Dropped by the frame gate
	OutcomeRejected                         // Failed the quality check
	OutcomeRecognizeErr                     // Text recognizer failed
	OutcomeNoLines                          // No text inside the ROI
	OutcomeUnstable                         // Not all fields are stable yet
	OutcomeLocked                           // All fields stable, but we're in the cool-down after a fire
	OutcomeDuplicateKey                     // All fields stable, but this is the product we just sent
	OutcomeQueueFull                        // Resolver queue is full
	OutcomeFired                            // Job sent to the resolver
)

func (o FrameOutcome) String() string {
	switch o {
	case OutcomeInactive:
		return "inactive"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeRecognizeErr:
		return "recognizeError"
	case OutcomeNoLines:
		return "noLines"
	case OutcomeUnstable:
		return "unstable"
	case OutcomeLocked:
		return "locked"
	case OutcomeDuplicateKey:
		return "duplicateKey"
	case OutcomeQueueFull:
		return "queueFull"
	case OutcomeFired:
		return "fired"
	}
	return "unknown"
}

// Options are the optional collaborators of a Scanner
type Options struct {
	Recognizer ocr.Recognizer    // Required unless every Frame carries Text
	Primitive  quality.Primitive // Defaults to quality.NewDefaultPrimitive()
	Clock      func() time.Time  // Defaults to time.Now
}

// Scanner owns the scan pipeline. ProcessFrame must only be called from one goroutine.
type Scanner struct {
	Log logs.Log

	settings   Settings
	analyzer   *quality.Analyzer
	recognizer ocr.Recognizer
	spatial    *SpatialFilter
	extractor  *FieldExtractor
	resolver   *Resolver
	now        func() time.Time
	lastErrAt  time.Time // Rate limit for recognizer error logs
	stats      perfstats.PipelineStats

	session atomic.Pointer[ScanSession] // nil when inactive
	status  atomic.Pointer[Status]      // Latest snapshot, for the UI

	// Held while changing session, or publishing status, so that a frame which is still
	// running when the session ends can't publish a stale snapshot.
	sessionLock sync.Mutex

	watchersLock sync.Mutex
	watchers     []chan *Event
	recentEvents ringbuffer.RingP[Event]
}

func NewScanner(log logs.Log, settings Settings, catalog Catalog, store Store, opts Options) *Scanner {
	settings.sanitize()
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Primitive == nil {
		opts.Primitive = quality.NewDefaultPrimitive()
	}
	s := &Scanner{
		Log:          log,
		settings:     settings,
		analyzer:     quality.NewAnalyzer(settings.Quality, opts.Primitive),
		recognizer:   opts.Recognizer,
		spatial:      NewSpatialFilter(settings.ROI, settings.MinConfidence),
		extractor:    NewFieldExtractor(),
		now:          opts.Clock,
		recentEvents: ringbuffer.NewRingP[Event](recentEventsSize),
	}
	s.resolver = NewResolver(log, catalog, store, &s.settings, &s.stats, opts.Clock, s.sendToWatchers)
	s.status.Store(&Status{Time: s.now()})
	log.Infof("Scanner: ROI %.0f,%.0f %.0fx%.0f on %.0fx%.0f screen", settings.ROI.X, settings.ROI.Y, settings.ROI.Width, settings.ROI.Height, settings.ScreenWidth, settings.ScreenHeight)
	return s
}

func (s *Scanner) Settings() Settings {
	return s.settings
}

func (s *Scanner) Stats() *perfstats.PipelineStats {
	return &s.stats
}

// Activate starts a new scan session, discarding any previous one
func (s *Scanner) Activate() {
	now := s.now()
	sess := newScanSession(&s.settings, now)
	s.sessionLock.Lock()
	s.session.Store(sess)
	s.status.Store(sess.snapshot(s.settings.MajorityCount, now))
	s.sessionLock.Unlock()
	s.Log.Infof("Scanner: session started")
}

// Deactivate discards the scan session. Jobs already handed to the resolver still complete.
func (s *Scanner) Deactivate() {
	s.sessionLock.Lock()
	old := s.session.Swap(nil)
	s.status.Store(&Status{Time: s.now()})
	s.sessionLock.Unlock()
	if old != nil {
		s.Log.Infof("Scanner: session ended")
	}
}

func (s *Scanner) IsActive() bool {
	return s.session.Load() != nil
}

// Close deactivates the scanner, and waits for the resolver to finish its queued jobs
func (s *Scanner) Close() {
	s.Deactivate()
	s.resolver.Close()
}

// Status returns the most recent snapshot of the scan session. Never nil.
func (s *Scanner) Status() *Status {
	return s.status.Load()
}

// ProcessFrame runs one frame through the pipeline.
func (s *Scanner) ProcessFrame(frame *Frame) FrameOutcome {
	sess := s.session.Load()
	if sess == nil {
		return OutcomeInactive
	}
	sess.framesSeen++
	s.drainResults(sess)

	now := frame.Time
	if now.IsZero() {
		now = s.now()
	}
	if !sess.gate.Allow(now) {
		return OutcomeThrottled
	}
	sess.framesAnalyzed++

	outcome := s.analyze(sess, frame, now)
	s.sessionLock.Lock()
	if s.session.Load() == sess {
		s.status.Store(sess.snapshot(s.settings.MajorityCount, now))
	}
	s.sessionLock.Unlock()
	return outcome
}

func (s *Scanner) analyze(sess *ScanSession, frame *Frame, now time.Time) FrameOutcome {
	sess.expireLock(now)

	if frame.Image != nil {
		start := time.Now()
		verdict, err := s.analyzer.Analyze(frame.Image)
		perfstats.Update(&s.stats.QualityNanoseconds, time.Since(start))
		if err != nil {
			s.logRateLimited("Scanner: quality check failed: %v", err)
			return OutcomeRejected
		}
		if !verdict.Pass {
			sess.warning = verdict.Warning
			return OutcomeRejected
		}
	}

	result := frame.Text
	if result == nil {
		if s.recognizer == nil || frame.Image == nil {
			return OutcomeRecognizeErr
		}
		start := time.Now()
		var err error
		result, err = s.recognizer.Recognize(frame.Image)
		perfstats.Update(&s.stats.RecognizeNanoseconds, time.Since(start))
		if err != nil {
			s.logRateLimited("Scanner: text recognition failed: %v", err)
			return OutcomeRecognizeErr
		}
	}

	start := time.Now()
	defer func() {
		perfstats.Update(&s.stats.ExtractNanoseconds, time.Since(start))
	}()

	width, height := frame.Width, frame.Height
	if (width == 0 || height == 0) && frame.Image != nil {
		width, height = frame.Image.Width, frame.Image.Height
	}
	xform := geom.NewCoverTransform(float32(width), float32(height), s.settings.ScreenWidth, s.settings.ScreenHeight)
	lines := s.spatial.Filter(result.AllLines(), xform)

	sess.warning = ""
	if len(lines) == 0 {
		s.checkStall(sess, now)
		return OutcomeNoLines
	}

	for f, v := range s.extractor.Extract(lines) {
		sess.buffers[f].Push(v)
	}
	stable, allStable := sess.stableValues(s.settings.MajorityCount)
	if len(stable) != 0 {
		sess.lastMatchAt = now
	}
	s.checkStall(sess, now)

	if sess.locked {
		return OutcomeLocked
	}
	if !allStable {
		return OutcomeUnstable
	}
	return s.combine(sess, stable, lines, now)
}

// combine hands a job to the resolver, unless it's the product we just sent
func (s *Scanner) combine(sess *ScanSession, stable map[Field]string, lines []string, now time.Time) FrameOutcome {
	pid := stable[FieldPrimaryID]
	if pid == sess.lastSavedKey {
		return OutcomeDuplicateKey
	}
	job := ResolveJob{
		PrimaryID: pid,
		Weight:    stable[FieldWeight],
		Lines:     gen.CopySlice(lines),
		Detected:  now,
	}
	if !s.resolver.Submit(job) {
		s.Log.Warnf("Scanner: resolver queue is falling behind - dropping %v", pid)
		s.sendToWatchers(newEvent(EventQueueOverflow, &job, now))
		return OutcomeQueueFull
	}
	sess.lastSavedKey = pid
	sess.lock(now.Add(s.settings.LockDuration))
	sess.fires++
	return OutcomeFired
}

func (s *Scanner) checkStall(sess *ScanSession, now time.Time) {
	if now.Sub(sess.lastMatchAt) > s.settings.StallWindow {
		sess.warning = WarnStall
	}
}

// drainResults reads resolver results without blocking.
// If the resolver gave up without writing, then we forget the last saved key,
// so that the user can scan the same label again once the lock expires.
// The lock itself is never shortened.
func (s *Scanner) drainResults(sess *ScanSession) {
	for _, ev := range gen.DrainChannelIntoSlice(s.resolver.results) {
		if ev.allowsRescan() && sess.lastSavedKey == ev.PrimaryID {
			sess.lastSavedKey = ""
		}
		sess.lastEvent = ev
	}
}

func (s *Scanner) logRateLimited(format string, args ...any) {
	if time.Since(s.lastErrAt) > 15*time.Second {
		s.Log.Errorf(format, args...)
		s.lastErrAt = time.Now()
	}
}
