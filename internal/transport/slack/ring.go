package slack

// recencyRing is a fixed-capacity set of recently seen identifiers. When
// full, adding a new identifier evicts the oldest one. Not safe for
// concurrent use; the adapter only touches it from its event loop.
type recencyRing struct {
	slots []string
	index map[string]struct{}
	next  int
	full  bool
}

func newRecencyRing(capacity int) *recencyRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &recencyRing{
		slots: make([]string, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

func (r *recencyRing) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

func (r *recencyRing) Add(id string) {
	if r.Contains(id) {
		return
	}
	if r.full {
		delete(r.index, r.slots[r.next])
	}
	r.slots[r.next] = id
	r.index[id] = struct{}{}
	r.next++
	if r.next == len(r.slots) {
		r.next = 0
		r.full = true
	}
}
