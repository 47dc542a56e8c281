package scanner

import (
	"slices"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/chewxy/math32"
	"github.com/vizcount/vizcount/pkg/geom"
	"github.com/vizcount/vizcount/pkg/ocr"
)

// SpatialFilter keeps the text lines whose center is inside the capture rectangle
type SpatialFilter struct {
	roi           geom.RectF
	minConfidence float32
}

func NewSpatialFilter(roi geom.RectF, minConfidence float32) *SpatialFilter {
	return &SpatialFilter{
		roi:           roi,
		minConfidence: minConfidence,
	}
}

func (f *SpatialFilter) ROI() geom.RectF {
	return f.roi
}

// Filter returns the text of the lines whose screen-space center lies inside the ROI.
// The ROI edges are inclusive. Order is preserved.
func (f *SpatialFilter) Filter(lines []ocr.TextLine, xform geom.CoverTransform) []string {
	if len(lines) == 0 {
		return nil
	}

	// The index is built on integer pixel coordinates, so it's only a coarse filter.
	// The exact test is done with floating point afterwards.
	centers := make([]geom.PointF, len(lines))
	idx := make([]int, 0, len(lines))
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(lines))
	for i := range lines {
		if lines[i].Confidence != nil && *lines[i].Confidence < f.minConfidence {
			continue
		}
		c := xform.ToScreen(lines[i].Center())
		centers[i] = c
		x := int32(math32.Floor(c.X))
		y := int32(math32.Floor(c.Y))
		fb.Add(x, y, x, y)
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return nil
	}
	fb.Finish()

	minX := int32(math32.Floor(f.roi.X)) - 1
	minY := int32(math32.Floor(f.roi.Y)) - 1
	maxX := int32(math32.Ceil(f.roi.X2())) + 1
	maxY := int32(math32.Ceil(f.roi.Y2())) + 1
	hits := fb.Search(minX, minY, maxX, maxY)

	keep := make([]int, 0, len(hits))
	for _, h := range hits {
		i := idx[h]
		if f.roi.Contains(centers[i]) {
			keep = append(keep, i)
		}
	}
	// Search returns items in tree order, but we need the recognizer's order
	slices.Sort(keep)

	out := make([]string, len(keep))
	for j, i := range keep {
		out[j] = lines[i].Text
	}
	return out
}
