package appointments

import "sync"

// calendarLocks serializes validate-then-commit sequences per
// veterinarian so two concurrent bookings cannot both pass the conflict
// check. The unique (veterinarianId, scheduledAt) index in the store is
// the second line of defense for exact-start collisions across
// processes.
type calendarLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCalendarLocks() *calendarLocks {
	return &calendarLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *calendarLocks) forVeterinarian(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[id] = lock
	}
	return lock
}
