// Package sterrors provides error definitions for the synchronization engine.
//
// Every blocking operation reports its outcome through these sentinels, so
// callers can branch on them with [errors.Is] regardless of which primitive
// produced the error.
package sterrors
