package capital

import (
	"sync"
	"time"
)

// tradeCounter caps the number of positions opened per UTC day.
type tradeCounter struct {
	mu    sync.Mutex
	max   int
	day   string
	count int
	now   func() time.Time
}

func newTradeCounter(max int, now func() time.Time) *tradeCounter {
	return &tradeCounter{max: max, now: now}
}

func (t *tradeCounter) rollover() {
	today := t.now().UTC().Format("2006-01-02")
	if t.day != today {
		t.day = today
		t.count = 0
	}
}

// reserve claims one trade slot, reporting false when the cap is reached.
func (t *tradeCounter) reserve() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if t.count >= t.max {
		return false
	}
	t.count++
	return true
}

// release returns a slot claimed by a trade that did not go through.
func (t *tradeCounter) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count > 0 {
		t.count--
	}
}

func (t *tradeCounter) remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.max - t.count
}
