package sterrors

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a bounded wait expired before the acquire completed.
	ErrTimeout = errors.New("timeout")

	// ErrCancelled indicates the wait's cancellation source fired.
	ErrCancelled = errors.New("cancelled")

	// ErrInterrupted indicates an interruptible wait was interrupted.
	ErrInterrupted = errors.New("interrupted")

	// ErrAbandoned indicates the previous owner of a lock terminated without
	// releasing it. The lock is held by the caller when this is returned.
	ErrAbandoned = errors.New("abandoned")

	// ErrInvalidState indicates a usage error.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotOwner indicates a release attempted by a goroutine that does not
	// own the lock.
	ErrNotOwner = fmt.Errorf("%w: not owner", ErrInvalidState)

	// ErrNotOwned indicates a release of a lock that is not held.
	ErrNotOwned = fmt.Errorf("%w: not owned", ErrInvalidState)

	// ErrPermitOverflow indicates a release would exceed the maximum count.
	ErrPermitOverflow = fmt.Errorf("%w: permit overflow", ErrInvalidState)

	// ErrDuplicateWaitable indicates the same waitable was passed twice to a
	// multi-object wait.
	ErrDuplicateWaitable = fmt.Errorf("%w: duplicate waitable", ErrInvalidState)

	// ErrInvalidTimeout indicates a negative timeout other than the infinite one.
	ErrInvalidTimeout = fmt.Errorf("%w: invalid timeout", ErrInvalidState)

	// ErrInvalidCount indicates a count or request outside the allowed range.
	ErrInvalidCount = fmt.Errorf("%w: invalid count", ErrInvalidState)

	// ErrSignalFailed indicates the waitable to signal refused the release.
	ErrSignalFailed = fmt.Errorf("%w: signal failed", ErrInvalidState)

	// ErrAlreadyInitialized indicates an init-once lock was completed twice.
	ErrAlreadyInitialized = fmt.Errorf("%w: already initialized", ErrInvalidState)
)
