package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vizcount/vizcount/pkg/geom"
	"github.com/vizcount/vizcount/pkg/ocr"
)

func line(text string, x, y float32) ocr.TextLine {
	return ocr.TextLine{Text: text, CenterX: x, CenterY: y, Width: 20, Height: 10}
}

func TestSpatialFilterBoundary(t *testing.T) {
	roi := geom.DefaultROI(400, 800)
	require.Equal(t, geom.RectF{X: 40, Y: 280, Width: 320, Height: 240}, roi)

	f := NewSpatialFilter(roi, 0.8)
	identity := geom.NewCoverTransform(400, 800, 400, 800)

	lines := []ocr.TextLine{
		line("top-left", 40, 280),
		line("bottom-right", 360, 520),
		line("left", 39.99, 300),
		line("right", 360.01, 300),
		line("above", 100, 279.99),
		line("below", 100, 520.01),
		line("middle", 200, 400),
	}
	require.Equal(t, []string{"top-left", "bottom-right", "middle"}, f.Filter(lines, identity))
}

func TestSpatialFilterConfidence(t *testing.T) {
	f := NewSpatialFilter(geom.DefaultROI(400, 800), 0.8)
	identity := geom.NewCoverTransform(400, 800, 400, 800)

	lo := line("low", 200, 300)
	lo.Confidence = ocr.Confidence(0.5)
	hi := line("high", 200, 320)
	hi.Confidence = ocr.Confidence(0.8)
	unknown := line("unknown", 200, 340)

	require.Equal(t, []string{"high", "unknown"}, f.Filter([]ocr.TextLine{lo, hi, unknown}, identity))
	require.Empty(t, f.Filter([]ocr.TextLine{lo}, identity))
	require.Empty(t, f.Filter(nil, identity))
}

func TestSpatialFilterCoverTransform(t *testing.T) {
	f := NewSpatialFilter(geom.DefaultROI(400, 800), 0.8)

	// A 1080x1920 frame shown on a 400x800 screen is scaled by 800/1920, and cropped horizontally
	xform := geom.NewCoverTransform(1080, 1920, 400, 800)
	lines := []ocr.TextLine{
		line("center", 540, 960),
		line("cropped", 100, 960),
	}
	require.Equal(t, []string{"center"}, f.Filter(lines, xform))
}

func TestSpatialFilterKeepsOrder(t *testing.T) {
	f := NewSpatialFilter(geom.DefaultROI(400, 800), 0.8)
	identity := geom.NewCoverTransform(400, 800, 400, 800)

	var lines []ocr.TextLine
	want := []string{}
	for i := 0; i < 50; i++ {
		// Zig-zag so that tree order differs from input order
		x := float32(50 + (i%2)*250)
		y := float32(500 - i*4)
		txt := string(rune('A'+i%26)) + string(rune('a'+i/26))
		lines = append(lines, line(txt, x, y))
		want = append(want, txt)
	}
	require.Equal(t, want, f.Filter(lines, identity))
}
