package waitable

// QueueLen returns the number of queued waiters, including cancelled ones
// that were not unlinked yet.
func (c *permitCore) QueueLen() int {
	return c.q.Len()
}

// StackLen returns the number of waiters pushed on the signal.
func (b *BinarySignal) StackLen() int {
	n := 0
	for w := b.s.Top(); w != nil; w = w.Next() {
		n++
	}

	return n
}

func (r *ReentrantFairLock) QueueLen() int {
	return r.lock.QueueLen()
}
