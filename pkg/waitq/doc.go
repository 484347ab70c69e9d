// Package waitq provides the intrusive wait nodes that link parked tokens to
// a synchronization primitive, and the two queue disciplines built from them.
//
// [Stack] is a non-blocking LIFO used by signal primitives, where waiter order
// is not observable. [LockedQueue] is a FIFO with non-blocking insertion and a
// try-lock guarding removal, used where release order must follow arrival.
//
// A node whose next link points to itself is a tombstone. It has been removed
// from its queue and is never reinserted.
package waitq
