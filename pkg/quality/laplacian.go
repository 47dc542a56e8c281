package quality

import (
	"github.com/vizcount/vizcount/pkg/stats"
)

// LaplacianPrimitive is a pure Go implementation of Primitive.
// It convolves with the 4-neighbour Laplacian kernel, which is what OpenCV uses for ksize=1.
// Not safe for concurrent use. Each Analyzer owns its own primitive.
type LaplacianPrimitive struct {
	resp []int16 // Scratch buffer for the filter response, reused between frames
}

func (p *LaplacianPrimitive) Measure(gray []byte, width, height int) (Stats, error) {
	st := Stats{
		MeanBrightness: stats.Mean(gray[:width*height]),
	}
	if width < 3 || height < 3 {
		return st, nil
	}

	n := (width - 2) * (height - 2)
	if cap(p.resp) < n {
		p.resp = make([]int16, n)
	}
	resp := p.resp[:n]

	i := 0
	for y := 1; y < height-1; y++ {
		above := gray[(y-1)*width:]
		row := gray[y*width:]
		below := gray[(y+1)*width:]
		for x := 1; x < width-1; x++ {
			resp[i] = int16(above[x]) + int16(below[x]) + int16(row[x-1]) + int16(row[x+1]) - 4*int16(row[x])
			i++
		}
	}
	_, st.BlurVariance = stats.MeanVar(resp)
	return st, nil
}
