// Package quality decides whether a camera frame is sharp and well exposed enough
// to be worth sending to text recognition.
package quality

import (
	"fmt"
	"sync"

	"github.com/bmharper/cimg/v2"
)

// Warnings shown to the user when a frame is rejected
const (
	WarnBlurry = "image is blurry, hold steady"
	WarnGlare  = "too much glare, tilt camera"
	WarnDark   = "too dark, improve lighting"
)

type Thresholds struct {
	Downscale     int     // Frames are shrunk by this factor in each dimension before analysis
	MinSharpness  float64 // Variance of the Laplacian below this is blurry
	MaxBrightness float64 // Mean luma (0..255) above this is glare
	MinBrightness float64 // Mean luma (0..255) below this is too dark
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Downscale:     4,
		MinSharpness:  60,
		MaxBrightness: 215,
		MinBrightness: 45,
	}
}

// Stats are the raw measurements of a frame
type Stats struct {
	BlurVariance   float64 `json:"blurVariance"`
	MeanBrightness float64 `json:"meanBrightness"`
}

// Primitive computes Stats over an 8-bit grayscale buffer with stride = width.
// It must not retain gray.
type Primitive interface {
	Measure(gray []byte, width, height int) (Stats, error)
}

type Verdict struct {
	Pass    bool
	Warning string // Empty when Pass is true
	Stats   Stats
}

// Analyzer is not safe for concurrent use. Each scan worker owns one.
type Analyzer struct {
	thresholds Thresholds
	primitive  Primitive
	pool       sync.Pool
}

// scratch holds the working buffers of one analysis
type scratch struct {
	small []byte
	gray  []byte
}

func NewAnalyzer(thresholds Thresholds, primitive Primitive) *Analyzer {
	if thresholds.Downscale < 1 {
		thresholds.Downscale = 1
	}
	if primitive == nil {
		primitive = &LaplacianPrimitive{}
	}
	return &Analyzer{
		thresholds: thresholds,
		primitive:  primitive,
		pool: sync.Pool{
			New: func() any { return &scratch{} },
		},
	}
}

func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// Measure downscales and converts img to grayscale, and returns its Stats.
func (a *Analyzer) Measure(img *cimg.Image) (Stats, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return Stats{}, fmt.Errorf("Empty image")
	}
	nchan := img.NChan()
	if nchan != 1 && nchan != 3 && nchan != 4 {
		return Stats{}, fmt.Errorf("Unsupported image with %v channels", nchan)
	}

	s := a.pool.Get().(*scratch)
	// Release our working buffers as soon as the stats have been read,
	// so that the next frame reuses the same memory.
	defer a.release(s)

	w := max(1, img.Width/a.thresholds.Downscale)
	h := max(1, img.Height/a.thresholds.Downscale)
	small := img
	if w != img.Width || h != img.Height {
		stride := w * nchan
		s.small = grow(s.small, stride*h)
		small = cimg.WrapImageStrided(w, h, img.Format, s.small, stride)
		cimg.Resize(img, small, &cimg.ResizeParams{
			Filter:          cimg.ResizeFilterBox,
			CheapSRGBFilter: true,
		})
	}

	s.gray = grow(s.gray, w*h)
	toGray(small, s.gray)

	return a.primitive.Measure(s.gray, w, h)
}

// Analyze measures img and applies our thresholds.
// The checks run in order: blur, then glare, then darkness.
func (a *Analyzer) Analyze(img *cimg.Image) (Verdict, error) {
	st, err := a.Measure(img)
	if err != nil {
		return Verdict{}, err
	}
	return a.Judge(st), nil
}

// Judge applies our thresholds to pre-computed stats
func (a *Analyzer) Judge(st Stats) Verdict {
	v := Verdict{Stats: st}
	switch {
	case st.BlurVariance < a.thresholds.MinSharpness:
		v.Warning = WarnBlurry
	case st.MeanBrightness > a.thresholds.MaxBrightness:
		v.Warning = WarnGlare
	case st.MeanBrightness < a.thresholds.MinBrightness:
		v.Warning = WarnDark
	default:
		v.Pass = true
	}
	return v
}

func (a *Analyzer) release(s *scratch) {
	s.small = s.small[:0]
	s.gray = s.gray[:0]
	a.pool.Put(s)
}

func grow(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}

// toGray writes the Rec. 601 luma of img into dst, which must have length Width*Height
func toGray(img *cimg.Image, dst []byte) {
	nchan := img.NChan()
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride : y*img.Stride+img.Width*nchan]
		out := dst[y*img.Width : (y+1)*img.Width]
		if nchan == 1 {
			copy(out, src)
			continue
		}
		for x := 0; x < img.Width; x++ {
			p := src[x*nchan:]
			out[x] = uint8((299*uint32(p[0]) + 587*uint32(p[1]) + 114*uint32(p[2]) + 500) / 1000)
		}
	}
}
