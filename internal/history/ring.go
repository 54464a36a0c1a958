package history

// ring is a bounded LIFO stack that evicts its oldest entry when full.
type ring[T any] struct {
	buf   []T
	start int // index of the oldest entry
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if len(r.buf) == 0 {
		return
	}
	if r.n == len(r.buf) {
		var zero T
		r.buf[r.start] = zero
		r.start = (r.start + 1) % len(r.buf)
		r.n--
	}
	r.buf[(r.start+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	i := (r.start + r.n - 1) % len(r.buf)
	v := r.buf[i]
	r.buf[i] = zero
	r.n--
	return v, true
}

func (r *ring[T]) len() int { return r.n }

func (r *ring[T]) clear() {
	clear(r.buf)
	r.start, r.n = 0, 0
}
