package source

import (
	"context"
	"sync"
)

// outbox is an unbounded FIFO between the engine and a consumer channel.
// push never blocks, so a slow consumer cannot hold up the next poll.
type outbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	notify chan struct{}
	out    chan T
}

func newOutbox[T any](size int) *outbox[T] {
	return &outbox[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T, size),
	}
}

func (o *outbox[T]) push(v T) {
	o.mu.Lock()
	o.queue = append(o.queue, v)
	o.mu.Unlock()
	o.wake()
}

// close marks the end of input. Items pushed before close are still offered.
func (o *outbox[T]) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wake()
}

func (o *outbox[T]) wake() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *outbox[T]) pop() (v T, ok, closed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return v, false, o.closed
	}
	v = o.queue[0]
	var zero T
	o.queue[0] = zero
	o.queue = o.queue[1:]
	return v, true, o.closed
}

// pump delivers queued items in order until close has been called and the
// queue is empty. Once ctx is done, remaining items are only offered without
// blocking. The out channel is closed on return.
func (o *outbox[T]) pump(ctx context.Context) {
	defer close(o.out)
	for {
		v, ok, closed := o.pop()
		if !ok {
			if closed {
				return
			}
			<-o.notify
			continue
		}
		if ctx.Err() != nil {
			o.offer(v)
			continue
		}
		select {
		case o.out <- v:
		case <-ctx.Done():
			o.offer(v)
		}
	}
}

func (o *outbox[T]) offer(v T) {
	select {
	case o.out <- v:
	default:
	}
}
