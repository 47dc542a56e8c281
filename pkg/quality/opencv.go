//go:build gocv

package quality

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCVPrimitive computes Stats with OpenCV. Build with -tags gocv.
// Every Mat is closed before Measure returns, because the Go GC knows nothing
// about the native memory behind a Mat.
type OpenCVPrimitive struct{}

func NewDefaultPrimitive() Primitive {
	return &OpenCVPrimitive{}
}

func (p *OpenCVPrimitive) Measure(gray []byte, width, height int) (Stats, error) {
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, gray[:width*height])
	if err != nil {
		return Stats{}, fmt.Errorf("Failed to wrap gray buffer: %w", err)
	}
	defer src.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	if err := gocv.Laplacian(src, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault); err != nil {
		return Stats{}, fmt.Errorf("Laplacian failed: %w", err)
	}

	mean := gocv.NewMat()
	defer mean.Close()
	stdDev := gocv.NewMat()
	defer stdDev.Close()
	if err := gocv.MeanStdDev(lap, &mean, &stdDev); err != nil {
		return Stats{}, fmt.Errorf("MeanStdDev failed: %w", err)
	}
	sd := stdDev.GetDoubleAt(0, 0)

	return Stats{
		BlurVariance:   sd * sd,
		MeanBrightness: src.Mean().Val1,
	}, nil
}
