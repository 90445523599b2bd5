package generic

type Queue[T any] struct {
	queue []T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{queue: make([]T, 0)}
}

func (q *Queue[T]) Push(v T) {
	q.queue = append(q.queue, v)
}

func (q *Queue[T]) Pop() T {
	v := q.queue[0]
	var zero T
	q.queue[0] = zero
	q.queue = q.queue[1:]
	return v
}

func (q *Queue[T]) Len() int {
	return len(q.queue)
}

func (q *Queue[T]) IsEmpty() bool {
	return len(q.queue) == 0
}

func (q *Queue[T]) Clear() {
	q.queue = nil
}
