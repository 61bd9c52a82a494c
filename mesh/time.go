package mesh

import "fmt"

// Time is the run clock shared by a mesh and every field defined on it. The
// outer iteration counter restarts at every time step and lets boundary
// conditions skip repeated evaluation within one iteration.
type Time struct {
	Value          float64
	DeltaT         float64
	DeltaT0        float64 // step size of the previous step
	Index          int
	OuterIteration int
	deltaTSave     float64
}

func NewTime(start, deltaT float64) *Time {
	return &Time{
		Value:      start,
		DeltaT:     deltaT,
		DeltaT0:    deltaT,
		deltaTSave: deltaT,
	}
}

// Advance moves the clock forward one step of DeltaT
func (t *Time) Advance() {
	t.DeltaT0 = t.deltaTSave
	t.deltaTSave = t.DeltaT
	t.Value += t.DeltaT
	t.Index++
	t.OuterIteration = 0
}

func (t *Time) SetDeltaT(dt float64) {
	if dt <= 0 {
		panic(fmt.Errorf("time step must be positive, have %g", dt))
	}
	t.DeltaT = dt
}

func (t *Time) NextOuter() { t.OuterIteration++ }

func (t *Time) String() string {
	return fmt.Sprintf("Time = %g (step %d, deltaT %g)", t.Value, t.Index, t.DeltaT)
}
