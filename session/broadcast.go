package session

// Snapshot is an immutable copy of the session state at one point in time.
// Every field is deep-copied, so two parts of a UI reading the same snapshot
// can never observe torn state, and holding on to an old snapshot is safe.
type Snapshot struct {
	ThreadID          string
	Messages          []ChatMessage
	IsLoading         bool
	Err               error
	PendingRefreshIDs []string
}

// Subscribe registers fn to be called with a fresh snapshot after every state
// mutation. It returns an unsubscribe function.
//
// fn is invoked synchronously while the controller holds its lock, which is
// what guarantees all subscribers observe every snapshot in the same order.
// fn must therefore return quickly and must not call back into the
// controller; forward the snapshot to a channel or event loop instead.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ThreadID:          c.threadID,
		Messages:          cloneMessages(c.messages),
		IsLoading:         c.loading,
		Err:               c.err,
		PendingRefreshIDs: c.pending.IDs(),
	}
}

// publishLocked broadcasts the current state to all subscribers. Callers must
// hold c.mu.
func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, fn := range c.subs {
		fn(snap)
	}
}
