// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Based on the example in container/heap.

package util

import (
	"container/heap"
)

// A priority queue that dequeues the element that comes first
// according to 'before'.  The heap interface methods are hidden in
// the inner type.

type PriorityQueueT[T any] struct {
	queue priorityQueueT[T]
}

func MakePriorityQueue[T any](before func(x T, y T) bool) *PriorityQueueT[T] {
	return &PriorityQueueT[T]{priorityQueueT[T]{before: before}}
}

func (pq *PriorityQueueT[T]) Len() int {
	return len(pq.queue.elts)
}

func (pq *PriorityQueueT[T]) Empty() bool {
	return len(pq.queue.elts) == 0
}

func (pq *PriorityQueueT[T]) Enqueue(x T) {
	heap.Push(&pq.queue, x)
}

func (pq *PriorityQueueT[T]) Dequeue() T {
	if pq.Empty() {
		panic("dequeue from empty priority queue")
	}
	return heap.Pop(&pq.queue).(T)
}

type priorityQueueT[T any] struct {
	elts   []T
	before func(x T, y T) bool
}

func (pq priorityQueueT[T]) Len() int { return len(pq.elts) }

func (pq priorityQueueT[T]) Less(i, j int) bool {
	return pq.before(pq.elts[i], pq.elts[j])
}

func (pq priorityQueueT[T]) Swap(i, j int) {
	pq.elts[i], pq.elts[j] = pq.elts[j], pq.elts[i]
}

func (pq *priorityQueueT[T]) Push(x any) {
	pq.elts = append(pq.elts, x.(T))
}

func (pq *priorityQueueT[T]) Pop() any {
	elts := pq.elts
	last := len(elts) - 1
	item := elts[last]
	var zero T
	elts[last] = zero // drop the reference
	pq.elts = elts[:last]
	return item
}
