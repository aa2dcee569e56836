package hal

import (
	"context"
	"sync/atomic"
)

// Dispatcher serialises interrupt handlers onto a single goroutine, so the
// zero-cross and timer handlers never run concurrently with each other, the
// same way a low-priority hardware timer cannot preempt another ISR.
type Dispatcher struct {
	q     chan func()
	drops atomic.Uint64
	done  chan struct{}
}

func NewDispatcher(buf int) *Dispatcher {
	if buf <= 0 {
		buf = 16
	}
	return &Dispatcher{
		q:    make(chan func(), buf),
		done: make(chan struct{}),
	}
}

// Post queues fn without blocking. It reports false and counts a drop when
// the queue is full.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case d.q <- fn:
		return true
	default:
		d.drops.Add(1)
		return false
	}
}

// Drops returns how many handler invocations were lost to a full queue.
func (d *Dispatcher) Drops() uint64 { return d.drops.Load() }

// Run executes queued handlers until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.q:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
