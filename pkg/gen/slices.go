package gen

// Delete the element at index i, by moving the last element into its place.
// The order of the slice is not preserved.
func DeleteFromSliceUnordered[T any](s []T, i int) []T {
	s[i] = s[len(s)-1]
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}

// Returns a copy of the slice, or nil if the slice is empty
func CopySlice[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	c := make([]T, len(s))
	copy(c, s)
	return c
}
