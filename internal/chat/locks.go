package chat

import "sync"

// conversationLocks serializes turns per conversation so two concurrent
// messages cannot interleave their history reads and workspace writes.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex of one conversation and returns its release func.
func (c *conversationLocks) Lock(conversationID uint) func() {
	c.mu.Lock()
	lock, ok := c.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[conversationID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
