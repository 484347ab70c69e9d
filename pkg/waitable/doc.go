// Package waitable provides the synchronization primitives of stsync and the
// compositions that wait on several of them at once.
//
// Every primitive implements [Waitable]: a fast acquire path, a release, and
// the prologue/cancel/undo hooks that [AcquireAny], [AcquireAll] and
// [SignalAndAcquire] drive with a single shared [park.Token].
//
// [BinarySignal] is a manual-reset event with no ordering guarantee among its
// waiters. [CountingPermits], [FairLock] and [AutoResetEvent] release their
// waiters in arrival order. [ReentrantFairLock] adds goroutine ownership and
// nesting on top of [FairLock].
package waitable
