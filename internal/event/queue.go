package event

import (
	"container/heap"
	"sync"

	"fleettrack/internal/fix"
)

// MemoryQueue orders events by priority, oldest first within a priority.
// When full, the oldest event of the lowest priority is dropped to make
// room, unless the new event ranks below everything queued.
type MemoryQueue struct {
	mu      sync.Mutex
	items   eventHeap
	seq     uint64
	max     int
	dropped uint64

	ready chan struct{}
}

func NewMemoryQueue(max int) *MemoryQueue {
	if max <= 0 {
		max = 1000
	}
	return &MemoryQueue{max: max, ready: make(chan struct{}, 1)}
}

func (q *MemoryQueue) AddEvent(p Priority, f fix.Fix) {
	q.mu.Lock()
	q.seq++
	ev := Event{Seq: q.seq, Priority: p, Fix: f}
	if len(q.items) >= q.max {
		idx := q.items.lowest()
		if q.items[idx].Priority > p {
			q.dropped++
			q.mu.Unlock()
			return
		}
		heap.Remove(&q.items, idx)
		q.dropped++
	}
	heap.Push(&q.items, ev)
	q.mu.Unlock()
	q.signal()
}

// Requeue puts back an event that could not be delivered, keeping its
// original sequence number. The bound still holds: when full, the lowest
// ranked event is dropped, which may be ev itself.
func (q *MemoryQueue) Requeue(ev Event) {
	q.mu.Lock()
	heap.Push(&q.items, ev)
	for len(q.items) > q.max {
		heap.Remove(&q.items, q.items.lowest())
		q.dropped++
	}
	q.mu.Unlock()
	q.signal()
}

// Pop removes the highest ranked event.
func (q *MemoryQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.items).(Event), true
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Ready is signalled after an event is added.
func (q *MemoryQueue) Ready() <-chan struct{} { return q.ready }

func (q *MemoryQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

// lowest returns the index of the lowest ranked event.
func (h eventHeap) lowest() int {
	idx := 0
	for i := 1; i < len(h); i++ {
		if h.Less(idx, i) {
			idx = i
		}
	}
	return idx
}
