package rules

// WorkList is a LIFO list of pending units of work. The executor pushes
// follow-up effects here instead of recursing.
type WorkList[T any] struct {
	items []T
}

// NewWorkList creates an empty work list.
func NewWorkList[T any]() *WorkList[T] {
	return &WorkList[T]{items: make([]T, 0, 8)}
}

// Push adds items so that the first one is popped next.
func (w *WorkList[T]) Push(items ...T) {
	for i := len(items) - 1; i >= 0; i-- {
		w.items = append(w.items, items[i])
	}
}

// Pop removes the top item.
func (w *WorkList[T]) Pop() (T, bool) {
	var zero T
	if len(w.items) == 0 {
		return zero, false
	}
	idx := len(w.items) - 1
	item := w.items[idx]
	w.items[idx] = zero
	w.items = w.items[:idx]
	return item, true
}

// Drain discards every queued item and returns how many there were.
func (w *WorkList[T]) Drain() int {
	n := len(w.items)
	clear(w.items)
	w.items = w.items[:0]
	return n
}
