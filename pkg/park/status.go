package park

import (
	"math"
	"strconv"

	"github.com/macropower/stsync/pkg/sterrors"
)

// Status is the outcome of a park. Values greater than or equal to
// [StatusSuccess] are wake keys chosen by the releaser, e.g. the index of the
// waitable that satisfied a wait-any.
type Status int32

const (
	StatusSuccess     Status = 0
	StatusTimeout     Status = -2
	StatusInterrupted Status = -3
	StatusCancelled   Status = -4

	// StatusStateChange is used by cooperative wait-all releases.
	StatusStateChange Status = math.MaxInt32
)

// IsWakeKey reports whether the status was set by a releaser.
func (s Status) IsWakeKey() bool {
	return s >= StatusSuccess
}

// Err maps the status to a sentinel error from [sterrors], or nil if the
// status is a wake key.
func (s Status) Err() error {
	switch s {
	case StatusTimeout:
		return sterrors.ErrTimeout
	case StatusInterrupted:
		return sterrors.ErrInterrupted
	case StatusCancelled:
		return sterrors.ErrCancelled
	}

	return nil
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusInterrupted:
		return "interrupted"
	case StatusCancelled:
		return "cancelled"
	case StatusStateChange:
		return "state change"
	}

	return "key " + strconv.Itoa(int(s))
}
