// Package pqueue is the min-priority queue used by priority-flood traversals.
// Entries with equal keys pop in insertion order, which makes every flood
// reproducible.
package pqueue

import "container/heap"

// Entry is one queued cell.
type Entry struct {
	Key   float64
	Seq   uint64
	Index int
}

type entries []Entry

func (h entries) Len() int { return len(h) }
func (h entries) Less(i, j int) bool {
	if h[i].Key != h[j].Key {
		return h[i].Key < h[j].Key
	}
	return h[i].Seq < h[j].Seq
}
func (h entries) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entries) Push(x any)   { *h = append(*h, x.(Entry)) }
func (h *entries) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue orders cells by key, then by insertion sequence.
type Queue struct {
	h   entries
	seq uint64
}

// New creates a queue with room for capacity entries.
func New(capacity int) *Queue {
	return &Queue{h: make(entries, 0, capacity)}
}

// Push enqueues the cell at index with the given key.
func (q *Queue) Push(index int, key float64) {
	q.seq++
	heap.Push(&q.h, Entry{Key: key, Seq: q.seq, Index: index})
}

// Pop removes and returns the entry with the lowest key. It panics on an
// empty queue; callers loop on Len.
func (q *Queue) Pop() Entry {
	return heap.Pop(&q.h).(Entry)
}

// Len is the number of queued entries.
func (q *Queue) Len() int { return len(q.h) }
