// Package ocr defines the shape of text recognition results, and the interface
// that a text recognition engine must implement to feed the scanner.
package ocr

import (
	"errors"
	"sync"

	"github.com/bmharper/cimg/v2"
	"github.com/vizcount/vizcount/pkg/geom"
)

// TextLine is a single line of recognized text, in frame coordinates
type TextLine struct {
	Text       string   `json:"text"`
	CenterX    float32  `json:"centerX"`
	CenterY    float32  `json:"centerY"`
	Width      float32  `json:"width"`
	Height     float32  `json:"height"`
	Confidence *float32 `json:"confidence,omitempty"` // nil if the engine doesn't report confidence
}

func (l *TextLine) Center() geom.PointF {
	return geom.PointF{X: l.CenterX, Y: l.CenterY}
}

// Block is a paragraph of text. Some engines only report geometry at the block level.
type Block struct {
	Text       string     `json:"text"`
	CenterX    float32    `json:"centerX"`
	CenterY    float32    `json:"centerY"`
	Width      float32    `json:"width"`
	Height     float32    `json:"height"`
	Confidence *float32   `json:"confidence,omitempty"`
	Lines      []TextLine `json:"lines,omitempty"`
}

// Result is the output of one recognition pass over one frame
type Result struct {
	Lines  []TextLine `json:"lines,omitempty"`
	Blocks []Block    `json:"blocks,omitempty"`
}

// AllLines returns the line level output of the recognizer.
// If the recognizer only produced blocks, then the lines inside the blocks are used,
// and any block without lines is treated as a single line.
func (r *Result) AllLines() []TextLine {
	if r == nil {
		return nil
	}
	if len(r.Lines) != 0 {
		return r.Lines
	}
	lines := []TextLine{}
	for _, b := range r.Blocks {
		if len(b.Lines) != 0 {
			lines = append(lines, b.Lines...)
			continue
		}
		lines = append(lines, TextLine{
			Text:       b.Text,
			CenterX:    b.CenterX,
			CenterY:    b.CenterY,
			Width:      b.Width,
			Height:     b.Height,
			Confidence: b.Confidence,
		})
	}
	return lines
}

// Recognizer is a text recognition engine.
// Recognize may be called from the real-time worker, so it must not retain img.
type Recognizer interface {
	Recognize(img *cimg.Image) (*Result, error)
}

var ErrScriptExhausted = errors.New("No more recognition results")

// ScriptedRecognizer returns a predetermined sequence of results.
// It is used to replay captured sessions, and in tests.
type ScriptedRecognizer struct {
	lock    sync.Mutex
	results []*Result
	next    int
}

func NewScriptedRecognizer(results []*Result) *ScriptedRecognizer {
	return &ScriptedRecognizer{
		results: results,
	}
}

// Push appends a result to the end of the script
func (s *ScriptedRecognizer) Push(r *Result) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.results = append(s.results, r)
}

func (s *ScriptedRecognizer) Recognize(img *cimg.Image) (*Result, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.next >= len(s.results) {
		return nil, ErrScriptExhausted
	}
	r := s.results[s.next]
	s.next++
	return r, nil
}

// Confidence is a helper for building a TextLine literal
func Confidence(c float32) *float32 {
	return &c
}
