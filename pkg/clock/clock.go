// Package clock isolates wall-clock time and timer scheduling behind an
// interface so the timing-heavy services (debounce, retry, health checks,
// storage GC) can be driven deterministically in tests.
package clock

import "time"

type Timer interface {
	// Stop prevents the callback from firing. Reports whether it stopped
	// the timer before it fired.
	Stop() bool
	Reset(d time.Duration) bool
}

type Ticker interface {
	Stop()
}

type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// TickerFunc runs f every d until the returned Ticker is stopped.
	TickerFunc(d time.Duration, f func()) Ticker
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct {
	t    *time.Ticker
	done chan struct{}
}

func (rt *realTicker) Stop() {
	rt.t.Stop()
	close(rt.done)
}

func (realClock) TickerFunc(d time.Duration, f func()) Ticker {
	rt := &realTicker{t: time.NewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-rt.t.C:
				f()
			case <-rt.done:
				return
			}
		}
	}()
	return rt
}
