package registry

// dedupWindow is a bounded FIFO of recently dispatched message
// fingerprints. Insertion is in arrival order; at capacity the oldest
// entry is evicted. Guarded by the store's write lock, never used
// standalone.
type dedupWindow struct {
	capacity int
	order    []string
	head     int
	present  map[string]struct{}
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		present:  make(map[string]struct{}, capacity),
	}
}

// contains reports whether the fingerprint is in the window.
func (w *dedupWindow) contains(fp string) bool {
	_, ok := w.present[fp]
	return ok
}

// insert adds a fingerprint, evicting the oldest when full. Inserting a
// fingerprint already present is a no-op; it does not refresh its age.
func (w *dedupWindow) insert(fp string) {
	if w.contains(fp) {
		return
	}
	if len(w.order) < w.capacity {
		w.order = append(w.order, fp)
	} else {
		evicted := w.order[w.head]
		delete(w.present, evicted)
		w.order[w.head] = fp
		w.head = (w.head + 1) % w.capacity
	}
	w.present[fp] = struct{}{}
}

// size returns the number of fingerprints currently held.
func (w *dedupWindow) size() int {
	return len(w.present)
}
