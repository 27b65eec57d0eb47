package pqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_OrdersByKeyThenSequence(t *testing.T) {
	q := New(8)
	q.Push(10, 5)
	q.Push(11, 1)
	q.Push(12, 5)
	q.Push(13, 3)
	q.Push(14, 5)

	var order []int
	for q.Len() > 0 {
		order = append(order, q.Pop().Index)
	}
	assert.Equal(t, []int{11, 13, 10, 12, 14}, order)
}

func TestQueue_SequenceIsMonotonic(t *testing.T) {
	q := New(0)
	q.Push(1, 0)
	q.Push(2, 0)
	a, b := q.Pop(), q.Pop()
	assert.Less(t, a.Seq, b.Seq)
	assert.Equal(t, 0, q.Len())
}
