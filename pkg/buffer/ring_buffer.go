package buffer

// Ring is a fixed-capacity ring of elements addressed through a head cursor.
//
// Logical element i lives at buf[(head+i)%cap]. Unlike a sliding window, a
// full Ring rejects new elements instead of overwriting the oldest one, so
// the owner decides what gets evicted.
//
// Ring is not safe for concurrent use.
type Ring[T any] struct {
	buf  []T
	head int
	n    int
}

// RingN creates an empty Ring that holds at most size elements.
// It panics if size is not positive.
func RingN[T any](size int) *Ring[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &Ring[T]{buf: make([]T, size)}
}

// Push appends t at the tail. It returns false and leaves the ring
// unchanged when the ring is already full.
func (r *Ring[T]) Push(t T) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[r.index(r.n)] = t
	r.n++
	return true
}

// PopBack removes and returns the element at the tail.
// ok is false when the ring is empty.
func (r *Ring[T]) PopBack() (t T, ok bool) {
	if r.n == 0 {
		return t, false
	}
	i := r.index(r.n - 1)
	t = r.buf[i]
	var zero T
	r.buf[i] = zero
	r.n--
	return t, true
}

// Rotate rotates the ring k steps to the right: the last k elements move to
// the front, keeping their order. Negative k rotates left. k is taken modulo
// the current length, so any value is accepted.
//
// A full ring rotates in O(1) by moving the head cursor; a partially filled
// ring rotates its elements in place.
func (r *Ring[T]) Rotate(k int) {
	if r.n <= 1 {
		return
	}
	k %= r.n
	if k < 0 {
		k += r.n
	}
	if k == 0 {
		return
	}
	if r.n == len(r.buf) {
		r.head = (r.head + r.n - k) % len(r.buf)
		return
	}
	r.reverse(0, r.n)
	r.reverse(0, k)
	r.reverse(k, r.n)
}

// At returns the logical element i, counted from the head.
// It panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic("buffer: ring index out of range")
	}
	return r.buf[r.index(i)]
}

// Len returns the number of elements in the ring.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the ring holds Cap elements.
func (r *Ring[T]) Full() bool { return r.n == len(r.buf) }

// Items returns a copy of the elements in logical order, head first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.n)
	for i := range out {
		out[i] = r.buf[r.index(i)]
	}
	return out
}

// Reset removes all elements.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.n = 0
}

func (r *Ring[T]) index(i int) int {
	return (r.head + i) % len(r.buf)
}

// reverse reverses the logical range [from, to).
func (r *Ring[T]) reverse(from, to int) {
	for i, j := from, to-1; i < j; i, j = i+1, j-1 {
		a, b := r.index(i), r.index(j)
		r.buf[a], r.buf[b] = r.buf[b], r.buf[a]
	}
}
