// Package park provides the parking protocol that every blocking operation in
// stsync funnels through.
//
// A [Token] represents one goroutine's pending wait. Releasers race to lock
// the token with [Token.TryLock]; cancellers race with [Token.TryCancel]. The
// single winner wakes the owner with [Token.Unpark]. The owner blocks in
// [Token.Park], spinning first and then waiting on a pooled [Spot].
//
// [CancelArgs] carries the timeout, the optional [CancelSource] (usually an
// [Alerter]) and the interrupt channel for a single wait.
package park
