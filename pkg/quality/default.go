//go:build !gocv

package quality

// NewDefaultPrimitive returns the pure Go primitive.
// Build with -tags gocv to use OpenCV instead.
func NewDefaultPrimitive() Primitive {
	return &LaplacianPrimitive{}
}
