package world

import (
	"container/heap"
)

// pqItem is something we manage in a priority queue.
type pqItem[T comparable] struct {
	value    T
	priority int
	// maintained by the heap.Interface methods, -1 once popped
	index int
}

// priorityQueue implements heap.Interface. Pop returns the lowest priority first.
type priorityQueue[T comparable] []*pqItem[T]

func (pq *priorityQueue[T]) Len() int { return len(*pq) }

func (pq *priorityQueue[T]) Less(i, j int) bool {
	return (*pq)[i].priority < (*pq)[j].priority
}

func (pq *priorityQueue[T]) Swap(i, j int) {
	(*pq)[i], (*pq)[j] = (*pq)[j], (*pq)[i]
	(*pq)[i].index = i
	(*pq)[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	item := x.(*pqItem[T])
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

func (pq *priorityQueue[T]) push(value T, priority int) *pqItem[T] {
	item := &pqItem[T]{value: value, priority: priority}
	heap.Push(pq, item)
	return item
}

func (pq *priorityQueue[T]) pop() *pqItem[T] {
	return heap.Pop(pq).(*pqItem[T])
}

// update modifies the priority of an item in the queue.
func (pq *priorityQueue[T]) update(item *pqItem[T], priority int) {
	item.priority = priority
	heap.Fix(pq, item.index)
}

func (pq *priorityQueue[T]) remove(item *pqItem[T]) {
	heap.Remove(pq, item.index)
}
