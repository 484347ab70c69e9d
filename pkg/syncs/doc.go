// Package syncs provides synchronization utilities built on the stsync
// primitives.
//
// [KeyLock] hands out one [waitable.FairLock] per key, so goroutines that
// contend on the same key are served in arrival order while independent keys
// proceed concurrently.
package syncs
