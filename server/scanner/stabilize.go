package scanner

// FieldBuffer holds the most recent candidate values for one field.
// When full, the oldest value is evicted.
type FieldBuffer struct {
	values   []string
	capacity int
}

func NewFieldBuffer(capacity int) *FieldBuffer {
	return &FieldBuffer{
		values:   make([]string, 0, capacity),
		capacity: capacity,
	}
}

func (b *FieldBuffer) Push(v string) {
	if len(b.values) == b.capacity {
		copy(b.values, b.values[1:])
		b.values = b.values[:len(b.values)-1]
	}
	b.values = append(b.values, v)
}

func (b *FieldBuffer) Len() int {
	return len(b.values)
}

// Values returns the buffer contents, oldest first. The slice is only valid until the next Push.
func (b *FieldBuffer) Values() []string {
	return b.values
}

func (b *FieldBuffer) Clear() {
	b.values = b.values[:0]
}

// Stable returns the consensus value of the buffer, if there is one
func (b *FieldBuffer) Stable(majority int) (string, bool) {
	return Stabilize(b.values, majority)
}

// Stabilize returns the first value, scanning in order, whose running count reaches 'majority'.
// Buffers shorter than 'majority' are never stable.
func Stabilize(values []string, majority int) (string, bool) {
	if len(values) < majority || majority < 1 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
		if counts[v] == majority {
			return v, true
		}
	}
	return "", false
}
