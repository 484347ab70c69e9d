// Package once provides [InitOnce], a lock that serializes a one-time
// initialization and lets a waiter take over when an attempt fails.
package once
