package scanner

import (
	"time"

	"github.com/vizcount/vizcount/pkg/geom"
	"github.com/vizcount/vizcount/pkg/quality"
)

// Settings are the tunables of the scan pipeline.
// The zero value is not useful. Start from DefaultSettings().
type Settings struct {
	ThrottleInterval time.Duration      // Minimum time between frames that we analyze
	ScreenWidth      float32            // Size of the preview that the user sees, which the ROI is relative to
	ScreenHeight     float32            //
	ROI              geom.RectF         // Capture rectangle, in screen coordinates
	MinConfidence    float32            // Text lines below this confidence are ignored, if the recognizer reports confidence
	BufferSize       int                // Number of recent candidates kept per field
	MajorityCount    int                // Number of identical candidates required for a field to be stable
	LockDuration     time.Duration      // After firing, the combiner won't fire again for this long
	StallWindow      time.Duration      // Show a "reposition" warning if no field has been stable for this long
	ResolveQueueSize int                // Number of jobs that can be waiting for the resolver
	Location         *time.Location     // Time zone for dates printed on labels
	Quality          quality.Thresholds //
}

// DefaultSettings returns our standard tunables for a preview of the given size.
func DefaultSettings(screenWidth, screenHeight float32) Settings {
	return Settings{
		ThrottleInterval: 300 * time.Millisecond,
		ScreenWidth:      screenWidth,
		ScreenHeight:     screenHeight,
		ROI:              geom.DefaultROI(screenWidth, screenHeight),
		MinConfidence:    0.8,
		BufferSize:       5,
		MajorityCount:    3,
		LockDuration:     1500 * time.Millisecond,
		StallWindow:      3 * time.Second,
		ResolveQueueSize: 4,
		Location:         time.Local,
		Quality:          quality.DefaultThresholds(),
	}
}

func (s *Settings) sanitize() {
	if s.BufferSize < 1 {
		s.BufferSize = 5
	}
	if s.MajorityCount < 1 {
		s.MajorityCount = 3
	}
	if s.MajorityCount > s.BufferSize {
		s.MajorityCount = s.BufferSize
	}
	if s.ResolveQueueSize < 1 {
		s.ResolveQueueSize = 1
	}
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.ROI.IsEmpty() {
		s.ROI = geom.DefaultROI(s.ScreenWidth, s.ScreenHeight)
	}
}
