package hal

import (
	"sync"
	"sync/atomic"
	"time"
)

// SoftTimer is a one-shot Timer backed by the Go runtime timer. Expiries are
// delivered through a Dispatcher; an expiry that raced with a later Arm or
// Cancel is discarded.
type SoftTimer struct {
	d       *Dispatcher
	seq     atomic.Uint64
	mu      sync.Mutex
	t       *time.Timer
	handler func()
}

func NewSoftTimer(d *Dispatcher) *SoftTimer {
	return &SoftTimer{d: d}
}

func (st *SoftTimer) OnExpire(handler func()) {
	st.mu.Lock()
	st.handler = handler
	st.mu.Unlock()
}

func (st *SoftTimer) Arm(micros uint32) {
	seq := st.seq.Add(1)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.t != nil {
		st.t.Stop()
	}
	h := st.handler
	st.t = time.AfterFunc(time.Duration(micros)*time.Microsecond, func() {
		st.d.Post(func() {
			if st.seq.Load() == seq && h != nil {
				h()
			}
		})
	})
}

func (st *SoftTimer) Cancel() {
	st.seq.Add(1)
	st.mu.Lock()
	if st.t != nil {
		st.t.Stop()
	}
	st.mu.Unlock()
}
