package ledger

import (
	"sync"
	"time"
)

// Clock source of the ledger time
type Clock interface {
	// Now current ledger time
	Now() time.Time
}

// SystemClock ledger time follows the wall clock
type SystemClock struct{}

// Now current ledger time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock ledger time which only moves when told to
type ManualClock struct {
	lock sync.RWMutex
	now  time.Time
}

/*
NewManualClock define a new manually driven clock

	@param start time.Time - starting time
	@returns new clock
*/
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now current ledger time
func (c *ManualClock) Now() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.now
}

// Set move the clock to a specific time
func (c *ManualClock) Set(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = now
}

// Advance move the clock forward
func (c *ManualClock) Advance(delta time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(delta)
}
