package generic

import "sync"

// Dispatcher delivers pushed values to fn on its own goroutine, in push
// order. Push never blocks, so it is safe to call while holding a lock.
type Dispatcher[T any] struct {
	fn     func(T)
	mu     sync.Mutex
	cond   *sync.Cond
	queue  *Queue[T]
	closed bool
	done   chan struct{}
}

func NewDispatcher[T any](fn func(T)) *Dispatcher[T] {
	d := &Dispatcher[T]{fn: fn, queue: NewQueue[T](), done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *Dispatcher[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue.Push(v)
	d.cond.Signal()
}

// Close drops undelivered values. A delivery already in progress may
// still complete after Close returns.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.queue.Clear()
	d.cond.Signal()
	d.mu.Unlock()
}

// Done is closed once the delivery goroutine has exited.
func (d *Dispatcher[T]) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher[T]) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for d.queue.IsEmpty() && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		v := d.queue.Pop()
		d.mu.Unlock()
		d.fn(v)
	}
}
