package queue

// history is a bounded, insertion-ordered set of processed file names. When
// it grows past capacity the oldest fraction is evicted at once.
type history struct {
	order    []string
	set      map[string]struct{}
	capacity int
	fraction float64
	evicted  int
}

func newHistory(capacity int, fraction float64) *history {
	return &history{
		set:      make(map[string]struct{}, capacity),
		capacity: capacity,
		fraction: fraction,
	}
}

func (h *history) contains(name string) bool {
	_, ok := h.set[name]
	return ok
}

func (h *history) len() int { return len(h.order) }

func (h *history) add(name string) {
	if h.contains(name) {
		return
	}
	h.set[name] = struct{}{}
	h.order = append(h.order, name)

	if len(h.order) > h.capacity {
		n := max(int(float64(h.capacity)*h.fraction), 1)
		h.dropOldest(n)
	}
}

func (h *history) remove(name string) bool {
	if !h.contains(name) {
		return false
	}
	delete(h.set, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

func (h *history) trim(keep int) int {
	keep = max(keep, 0)
	if len(h.order) <= keep {
		return 0
	}
	n := len(h.order) - keep
	h.dropOldest(n)
	return n
}

func (h *history) dropOldest(n int) {
	n = min(n, len(h.order))
	for _, name := range h.order[:n] {
		delete(h.set, name)
	}
	// Copy so the dropped prefix does not pin the backing array.
	h.order = append([]string(nil), h.order[n:]...)
	h.evicted += n
}
