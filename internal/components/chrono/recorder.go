package chrono

import (
	"context"
	"sync"
	"time"
)

// Recorder is an API that never blocks, it only remembers how long it
// was asked to sleep and advances its own clock accordingly.
type Recorder struct {
	mutex  sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewRecorder(start time.Time) *Recorder {
	return &Recorder{now: start}
}

func (r *Recorder) Now() time.Time {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.now
}

func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sleeps = append(r.sleeps, d)
	r.now = r.now.Add(d)
	return nil
}

// Sleeps returns a copy of every duration passed to Sleep, in call order.
func (r *Recorder) Sleeps() []time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]time.Duration, len(r.sleeps))
	copy(out, r.sleeps)
	return out
}
