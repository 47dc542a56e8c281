package geom

import (
	"github.com/chewxy/math32"
)

type PointF struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// RectF is an axis aligned rectangle in floating point coordinates
type RectF struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

func (r RectF) X2() float32 {
	return r.X + r.Width
}

func (r RectF) Y2() float32 {
	return r.Y + r.Height
}

func (r RectF) Center() PointF {
	return PointF{
		X: r.X + r.Width/2,
		Y: r.Y + r.Height/2,
	}
}

// Contains returns true if p is inside r. All four edges are inclusive.
func (r RectF) Contains(p PointF) bool {
	return p.X >= r.X && p.X <= r.X2() && p.Y >= r.Y && p.Y <= r.Y2()
}

func (r RectF) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// CoverTransform maps frame coordinates into screen coordinates, when the frame
// is scaled to completely cover the screen (preserving aspect ratio), and then
// centered, so that the overflow is cropped equally on both sides.
type CoverTransform struct {
	Scale   float32
	OffsetX float32
	OffsetY float32
}

// NewCoverTransform computes the transform for a frame of size frameW x frameH
// displayed on a screen of size screenW x screenH.
func NewCoverTransform(frameW, frameH, screenW, screenH float32) CoverTransform {
	if frameW <= 0 || frameH <= 0 {
		return CoverTransform{Scale: 1}
	}
	scale := max(screenW/frameW, screenH/frameH)
	return CoverTransform{
		Scale:   scale,
		OffsetX: (screenW - frameW*scale) / 2,
		OffsetY: (screenH - frameH*scale) / 2,
	}
}

// ToScreen maps a point from frame space into screen space
func (c CoverTransform) ToScreen(p PointF) PointF {
	return PointF{
		X: p.X*c.Scale + c.OffsetX,
		Y: p.Y*c.Scale + c.OffsetY,
	}
}

// DefaultROI is the capture rectangle we show on screen when the user hasn't configured one.
// It is horizontally centered, and covers the middle of the screen.
func DefaultROI(screenW, screenH float32) RectF {
	w := math32.Round(screenW * 0.8)
	h := math32.Round(screenH * 0.3)
	return RectF{
		X:      math32.Round((screenW - w) / 2),
		Y:      math32.Round((screenH - h) / 2),
		Width:  w,
		Height: h,
	}
}
