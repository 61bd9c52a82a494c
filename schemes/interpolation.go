package schemes

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// Interpolation produces face values from cell values. The implicit part
// is the owner weight w per face, face = w*P + (1-w)*N; corrected schemes
// add an explicit correction on top.
type Interpolation interface {
	Name() string
	// NeedsFlux is true for schemes whose weights follow the flow direction
	NeedsFlux() bool
	// Weights runs over all faces
	Weights(m *mesh.Mesh, flux []float64) []float64
	Corrected() bool
	// Correction runs over all faces, it is zero on non-coupled boundary
	// faces
	Correction(ctx context.Context, cache *Cache, flux []float64, c *Component) ([]float64, error)
}

var Interpolations = NewRegistry[Interpolation](KindInterpolation)

func init() {
	Interpolations.Register("linear", func(*Tokens) (Interpolation, error) { return linear{}, nil })
	Interpolations.Register("midPoint", func(*Tokens) (Interpolation, error) { return midPoint{}, nil })
	Interpolations.Register("upwind", func(*Tokens) (Interpolation, error) { return upwind{}, nil })
	Interpolations.Register("downwind", func(*Tokens) (Interpolation, error) { return downwind{}, nil })
	Interpolations.Register("linearUpwind", newLinearUpwind)
	Interpolations.Register("limitedLinear", func(ts *Tokens) (Interpolation, error) {
		k, err := ts.Coefficient("limitedLinear")
		if err != nil {
			return nil, err
		}
		return newLimited(fmt.Sprintf("limitedLinear %g", k), limitedLinearLimiter(k)), nil
	})
	Interpolations.Register("vanLeer", func(*Tokens) (Interpolation, error) {
		return newLimited("vanLeer", vanLeerLimiter), nil
	})
	Interpolations.Register("Minmod", func(*Tokens) (Interpolation, error) {
		return newLimited("Minmod", minmodLimiter), nil
	})
}

// Interpolate returns face values over all faces. Internal and coupled faces
// are interpolated, non-coupled boundary faces take the boundary values.
func Interpolate(ctx context.Context, cache *Cache, s Interpolation, flux []float64, c *Component) (fv []float64, err error) {
	var (
		m     = c.Mesh
		w     = s.Weights(m, flux)
		owner = m.Owners()
	)
	fv = make([]float64, m.NFaces())
	for f, n := range m.Neighbours() {
		fv[f] = w[f]*c.Cells[owner[f]] + (1-w[f])*c.Cells[n]
	}
	for _, p := range m.Patches() {
		for f := p.Start; f < p.Start+p.Size; f++ {
			if p.Coupled() {
				fv[f] = w[f]*c.Cells[owner[f]] + (1-w[f])*c.Nbr[f]
			} else {
				fv[f] = c.Faces[f]
			}
		}
	}
	if !s.Corrected() {
		return
	}
	var corr []float64
	if corr, err = s.Correction(ctx, cache, flux, c); err != nil {
		return
	}
	for f := range fv {
		fv[f] += corr[f]
	}
	return
}

type linear struct{}

func (linear) Name() string    { return "linear" }
func (linear) NeedsFlux() bool { return false }
func (linear) Corrected() bool { return false }

func (linear) Weights(m *mesh.Mesh, _ []float64) []float64 {
	return append([]float64(nil), m.Weights()...)
}

func (linear) Correction(context.Context, *Cache, []float64, *Component) ([]float64, error) {
	return nil, nil
}

type midPoint struct{}

func (midPoint) Name() string    { return "midPoint" }
func (midPoint) NeedsFlux() bool { return false }
func (midPoint) Corrected() bool { return false }

func (midPoint) Weights(m *mesh.Mesh, _ []float64) (w []float64) {
	w = make([]float64, m.NFaces())
	for f := range w {
		w[f] = 0.5
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			for f := p.Start; f < p.Start+p.Size; f++ {
				w[f] = 1
			}
		}
	}
	return
}

func (midPoint) Correction(context.Context, *Cache, []float64, *Component) ([]float64, error) {
	return nil, nil
}

func needFlux(name string, m *mesh.Mesh, flux []float64) {
	if len(flux) != m.NFaces() {
		panic(fmt.Errorf("%s interpolation needs a face flux over %d faces, have %d", name, m.NFaces(), len(flux)))
	}
}

// upwindWeights takes the owner value for outflow, flux >= 0
func upwindWeights(m *mesh.Mesh, flux []float64) (w []float64) {
	w = make([]float64, m.NFaces())
	for f, phi := range flux {
		if phi >= 0 {
			w[f] = 1
		}
	}
	return
}

type upwind struct{}

func (upwind) Name() string    { return "upwind" }
func (upwind) NeedsFlux() bool { return true }
func (upwind) Corrected() bool { return false }

func (upwind) Weights(m *mesh.Mesh, flux []float64) []float64 {
	needFlux("upwind", m, flux)
	return upwindWeights(m, flux)
}

func (upwind) Correction(context.Context, *Cache, []float64, *Component) ([]float64, error) {
	return nil, nil
}

type downwind struct{}

func (downwind) Name() string    { return "downwind" }
func (downwind) NeedsFlux() bool { return true }
func (downwind) Corrected() bool { return false }

func (downwind) Weights(m *mesh.Mesh, flux []float64) (w []float64) {
	needFlux("downwind", m, flux)
	w = upwindWeights(m, flux)
	for f := range w {
		w[f] = 1 - w[f]
	}
	return
}

func (downwind) Correction(context.Context, *Cache, []float64, *Component) ([]float64, error) {
	return nil, nil
}

// linearUpwind extrapolates the upwind cell value to the face with the cell
// gradient
type linearUpwind struct {
	grad Grad
}

func newLinearUpwind(ts *Tokens) (Interpolation, error) {
	g, err := Grads.Parse(ts)
	if err != nil {
		return nil, err
	}
	return linearUpwind{grad: g}, nil
}

func (s linearUpwind) Name() string  { return "linearUpwind " + s.grad.Name() }
func (linearUpwind) NeedsFlux() bool { return true }
func (linearUpwind) Corrected() bool { return true }

func (linearUpwind) Weights(m *mesh.Mesh, flux []float64) []float64 {
	needFlux("linearUpwind", m, flux)
	return upwindWeights(m, flux)
}

func (s linearUpwind) Correction(ctx context.Context, cache *Cache, flux []float64, c *Component) (corr []float64, err error) {
	var (
		m     = c.Mesh
		owner = m.Owners()
		C, Cf = m.C(), m.Cf()
		grad  []types.Vector
		gNbr  []types.Vector
	)
	needFlux("linearUpwind", m, flux)
	if grad, err = s.grad.Grad(ctx, cache, c); err != nil {
		return
	}
	if gNbr, err = NeighbourGradients(ctx, m, grad); err != nil {
		return
	}
	corr = make([]float64, m.NFaces())
	for f, n := range m.Neighbours() {
		cell := owner[f]
		if flux[f] < 0 {
			cell = n
		}
		corr[f] = Cf[f].Sub(C[cell]).Dot(grad[cell])
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			own := owner[f]
			if flux[f] >= 0 {
				corr[f] = Cf[f].Sub(C[own]).Dot(grad[own])
			} else {
				// Position of the face relative to the neighbour centre
				corr[f] = Cf[f].Sub(m.Delta()[f]).Sub(C[own]).Dot(gNbr[f])
			}
		}
	}
	return
}

// limited blends upwind and linear with a TVD limiter of the gradient ratio
// r. The implicit part is upwind, the limited anti-diffusive part is the
// correction.
type limited struct {
	name    string
	limiter func(r float64) float64
	grad    Grad
}

func newLimited(name string, limiter func(float64) float64) limited {
	return limited{name: name, limiter: limiter, grad: gauss{interp: linear{}}}
}

func (s limited) Name() string  { return s.name }
func (limited) NeedsFlux() bool { return true }
func (limited) Corrected() bool { return true }

func (s limited) Weights(m *mesh.Mesh, flux []float64) []float64 {
	needFlux(s.name, m, flux)
	return upwindWeights(m, flux)
}

// Limiter returns the limiter value per face, over all faces
func (s limited) Limiter(ctx context.Context, cache *Cache, flux []float64, c *Component) (lim []float64, err error) {
	var (
		m     = c.Mesh
		owner = m.Owners()
		d     = m.Delta()
		grad  []types.Vector
		gNbr  []types.Vector
	)
	needFlux(s.name, m, flux)
	if grad, err = s.grad.Grad(ctx, cache, c); err != nil {
		return
	}
	if gNbr, err = NeighbourGradients(ctx, m, grad); err != nil {
		return
	}
	lim = make([]float64, m.NFaces())
	for f, n := range m.Neighbours() {
		P := owner[f]
		lim[f] = s.limiter(gradientRatio(flux[f], c.Cells[P], c.Cells[n], grad[P], grad[n], d[f]))
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			P := owner[f]
			lim[f] = s.limiter(gradientRatio(flux[f], c.Cells[P], c.Nbr[f], grad[P], gNbr[f], d[f]))
		}
	}
	return
}

func (s limited) Correction(ctx context.Context, cache *Cache, flux []float64, c *Component) (corr []float64, err error) {
	var (
		m     = c.Mesh
		owner = m.Owners()
		w     = m.Weights()
		lim   []float64
	)
	if lim, err = s.Limiter(ctx, cache, flux, c); err != nil {
		return
	}
	corr = make([]float64, m.NFaces())
	face := func(f int, P, N float64) {
		up := P
		if flux[f] < 0 {
			up = N
		}
		corr[f] = lim[f] * (w[f]*P + (1-w[f])*N - up)
	}
	for f, n := range m.Neighbours() {
		face(f, c.Cells[owner[f]], c.Cells[n])
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			face(f, c.Cells[owner[f]], c.Nbr[f])
		}
	}
	return
}

// gradientRatio is the normalised variable r of the TVD limiters, built from
// the face difference and the upwind cell gradient projected on d
func gradientRatio(flux, phiP, phiN float64, gradP, gradN, d types.Vector) float64 {
	var (
		gradf  = phiN - phiP
		gradcf float64
	)
	if flux > 0 {
		gradcf = d.Dot(gradP)
	} else {
		gradcf = d.Dot(gradN)
	}
	if math.Abs(gradcf) >= 1000*math.Abs(gradf) {
		return 2*1000*sign(gradcf)*sign(gradf) - 1
	}
	return 2*(gradcf/gradf) - 1
}

func sign(x float64) float64 {
	if x >= 0 {
		return 1
	}
	return -1
}

func limitedLinearLimiter(k float64) func(float64) float64 {
	twoByk := 2 / max(k/2, types.Small)
	return func(r float64) float64 {
		return max(min(twoByk*r, 1), 0)
	}
}

func vanLeerLimiter(r float64) float64 {
	return (r + math.Abs(r)) / (1 + math.Abs(r))
}

func minmodLimiter(r float64) float64 {
	return max(min(r, 1), 0)
}
