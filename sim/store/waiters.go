package store

import "container/heap"

// waiterQueue is a min-heap of pending tokens ordered by (priority, id).
// Token ids grow with issue order, so equal priorities are served FIFO.
// Implements heap.Interface.
type waiterQueue []*Token

func (q waiterQueue) Len() int { return len(q) }

func (q waiterQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].id < q[j].id
}

func (q waiterQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waiterQueue) Push(x any) {
	tok := x.(*Token)
	tok.index = len(*q)
	*q = append(*q, tok)
}

func (q *waiterQueue) Pop() any {
	old := *q
	n := len(old)
	tok := old[n-1]
	old[n-1] = nil
	tok.index = -1
	*q = old[:n-1]
	return tok
}

func (q *waiterQueue) enqueue(tok *Token) {
	heap.Push(q, tok)
}

func (q *waiterQueue) dequeue() *Token {
	return heap.Pop(q).(*Token)
}

func (q *waiterQueue) remove(tok *Token) {
	heap.Remove(q, tok.index)
}
