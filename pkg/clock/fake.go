package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Advance runs due
// callbacks inline, in timestamp order, so tests stay deterministic
// without sleeping. Callbacks may schedule further timers; those are
// honored within the same Advance when they fall inside the window.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*fakeEntry
}

type fakeEntry struct {
	clk      *Fake
	at       time.Time
	interval time.Duration // 0 for one-shot timers
	seq      int
	f        func()
	stopped  bool
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &fakeEntry{clk: c, at: c.now.Add(d), f: f, seq: c.seq}
	c.seq++
	c.pending = append(c.pending, e)
	return e
}

func (c *Fake) TickerFunc(d time.Duration, f func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &fakeEntry{clk: c, at: c.now.Add(d), interval: d, f: f, seq: c.seq}
	c.seq++
	c.pending = append(c.pending, e)
	return fakeTicker{e: e}
}

// Advance moves the fake time forward by d, firing every timer and
// ticker whose deadline falls within the window.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	deadline := c.now.Add(d)
	for {
		e := c.nextDueLocked(deadline)
		if e == nil {
			break
		}
		c.now = e.at
		if e.interval > 0 {
			e.at = e.at.Add(e.interval)
		} else {
			e.stopped = true
		}
		f := e.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = deadline
	c.compactLocked()
	c.mu.Unlock()
}

func (c *Fake) nextDueLocked(deadline time.Time) *fakeEntry {
	var due *fakeEntry
	for _, e := range c.pending {
		if e.stopped || e.at.After(deadline) {
			continue
		}
		if due == nil || e.at.Before(due.at) || (e.at.Equal(due.at) && e.seq < due.seq) {
			due = e
		}
	}
	return due
}

func (c *Fake) compactLocked() {
	kept := c.pending[:0]
	for _, e := range c.pending {
		if !e.stopped {
			kept = append(kept, e)
		}
	}
	c.pending = kept
	sort.Slice(c.pending, func(i, j int) bool { return c.pending[i].seq < c.pending[j].seq })
}

// PendingCount reports how many timers and tickers are still armed.
func (c *Fake) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.pending {
		if !e.stopped {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	e *fakeEntry
}

func (t fakeTicker) Stop() {
	t.e.Stop()
}

func (e *fakeEntry) Stop() bool {
	e.clk.mu.Lock()
	defer e.clk.mu.Unlock()
	was := !e.stopped
	e.stopped = true
	return was
}

func (e *fakeEntry) Reset(d time.Duration) bool {
	e.clk.mu.Lock()
	defer e.clk.mu.Unlock()
	was := !e.stopped
	e.stopped = false
	e.at = e.clk.now.Add(d)
	present := false
	for _, p := range e.clk.pending {
		if p == e {
			present = true
			break
		}
	}
	if !present {
		e.clk.pending = append(e.clk.pending, e)
	}
	return was
}
