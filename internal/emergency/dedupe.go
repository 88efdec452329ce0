package emergency

import "container/list"

// seenSet is a bounded LRU set of request ids. A session-lifetime set with no
// cap would grow without bound on a long-lived subscription, so the oldest
// entry is evicted once capacity is reached.
type seenSet struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 512
	}
	return &seenSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Seen reports whether id was already added, refreshing its recency.
func (s *seenSet) Seen(id string) bool {
	el, ok := s.index[id]
	if ok {
		s.order.MoveToFront(el)
	}
	return ok
}

// Add marks id as seen, evicting the least recently used entry when full.
func (s *seenSet) Add(id string) {
	if el, ok := s.index[id]; ok {
		s.order.MoveToFront(el)
		return
	}

	s.index[id] = s.order.PushFront(id)

	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
}

func (s *seenSet) Len() int {
	return s.order.Len()
}
