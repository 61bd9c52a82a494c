package schemes

import (
	"github.com/notargets/fvcore/mesh"
)

// Ddt is a time derivative scheme written as
//
//	d(phi)/dt = C0*phi + C1*phi_0 + C2*phi_00
//
// where the old levels are weighted by their cell volumes on moving meshes
type Ddt interface {
	Name() string
	// Coeffs depend on the current and previous step sizes and on how many
	// old levels the field holds
	Coeffs(t *mesh.Time, nOldTimes int) (c0, c1, c2 float64)
}

var Ddts = NewRegistry[Ddt](KindDdt)

func init() {
	Ddts.Register("Euler", func(*Tokens) (Ddt, error) { return euler{}, nil })
	Ddts.Register("backward", func(*Tokens) (Ddt, error) { return backward{}, nil })
	Ddts.Register("steadyState", func(*Tokens) (Ddt, error) { return steadyState{}, nil })
}

type euler struct{}

func (euler) Name() string { return "Euler" }

func (euler) Coeffs(t *mesh.Time, _ int) (c0, c1, c2 float64) {
	rDeltaT := 1 / t.DeltaT
	return rDeltaT, -rDeltaT, 0
}

// backward is the second order three level scheme, it falls back to Euler
// until two old levels exist
type backward struct{}

func (backward) Name() string { return "backward" }

func (backward) Coeffs(t *mesh.Time, nOldTimes int) (c0, c1, c2 float64) {
	if nOldTimes < 2 {
		return euler{}.Coeffs(t, nOldTimes)
	}
	var (
		dt       = t.DeltaT
		dt0      = t.DeltaT0
		coefft   = 1 + dt/(dt+dt0)
		coefft00 = dt * dt / (dt0 * (dt + dt0))
		coefft0  = coefft + coefft00
	)
	return coefft / dt, -coefft0 / dt, coefft00 / dt
}

type steadyState struct{}

func (steadyState) Name() string { return "steadyState" }

func (steadyState) Coeffs(*mesh.Time, int) (c0, c1, c2 float64) { return }
