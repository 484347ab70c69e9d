package park

import (
	"math"
	"runtime"
)

const yieldFrequency = 4000

// SpinCount returns sc on multi-processor hosts and zero otherwise, since
// spinning cannot make progress when the releaser needs the only processor.
func SpinCount(sc int) int {
	if runtime.NumCPU() < 2 {
		return 0
	}

	return max(0, sc)
}

// SpinWait performs exponentially longer busy-waits, yielding the processor
// periodically. The zero value is ready to use.
type SpinWait struct {
	count int32
}

// SpinOnce performs a single spin.
func (s *SpinWait) SpinOnce() {
	s.count = (s.count + 1) & math.MaxInt32

	if runtime.NumCPU() > 1 {
		if r := s.count % yieldFrequency; r > 0 {
			procYield(1 + int(float32(r)*0.032))

			return
		}
	}

	runtime.Gosched()
}

// Count returns the number of spins performed so far.
func (s *SpinWait) Count() int {
	return int(s.count)
}

// Reset restarts the back-off.
func (s *SpinWait) Reset() {
	s.count = 0
}

//go:noinline
func procYield(n int) int {
	x := 0
	for range n {
		x++
	}

	return x
}
