package sdk

import "sync"

// refreshWaiter is a pending result slot for a request that hit 401 while a refresh
// was already in flight. An empty token means the refresh failed.
type refreshWaiter struct {
	result chan string
	taken  chan struct{}
}

// refreshCoordinator guarantees at most one refresh call per transport and resolves
// the requests queued behind it in the order they arrived.
type refreshCoordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []*refreshWaiter
}

// begin either elects the caller as the refresh leader (nil, true) or enqueues a waiter.
// The check and the set happen under one lock.
func (c *refreshCoordinator) begin() (*refreshWaiter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.refreshing {
		c.refreshing = true
		return nil, true
	}

	w := &refreshWaiter{
		result: make(chan string, 1),
		taken:  make(chan struct{}),
	}
	c.waiters = append(c.waiters, w)
	return w, false
}

// settle releases the refreshing flag and hands token to every queued waiter, FIFO.
// Each waiter must close taken once it has consumed (or abandoned) its slot; the next
// waiter is not released before that, so replays start in enqueue order.
func (c *refreshCoordinator) settle(token string) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, w := range waiters {
		w.result <- token
		<-w.taken
	}
}

// pending returns the number of queued waiters.
func (c *refreshCoordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// inFlight reports whether a refresh is currently outstanding.
func (c *refreshCoordinator) inFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}
