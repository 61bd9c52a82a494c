package schemes

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// SnGrad is the face normal gradient scheme: (N - P)*DeltaCoeffs plus an
// optional explicit non-orthogonal correction
type SnGrad interface {
	Name() string
	DeltaCoeffs(m *mesh.Mesh) []float64
	Corrected() bool
	// Correction runs over all faces and is zero on non-coupled boundary
	// faces, where the boundary condition supplies the gradient
	Correction(ctx context.Context, cache *Cache, c *Component) ([]float64, error)
}

var SnGrads = NewRegistry[SnGrad](KindSnGrad)

func init() {
	SnGrads.Register("corrected", func(*Tokens) (SnGrad, error) { return corrected{}, nil })
	SnGrads.Register("uncorrected", func(*Tokens) (SnGrad, error) { return uncorrected{}, nil })
	SnGrads.Register("orthogonal", func(*Tokens) (SnGrad, error) { return orthogonal{}, nil })
	SnGrads.Register("limited", func(ts *Tokens) (SnGrad, error) {
		if tok, ok := ts.Peek(); ok && tok == "corrected" {
			ts.Next()
		}
		psi, err := ts.Coefficient("limited")
		if err != nil {
			return nil, err
		}
		return limitedSnGrad{psi: psi}, nil
	})
}

// SnGradFaces evaluates the scheme on internal and coupled faces, leaving the
// non-coupled boundary faces at zero
func SnGradFaces(ctx context.Context, cache *Cache, s SnGrad, c *Component) (sn []float64, err error) {
	var (
		m     = c.Mesh
		owner = m.Owners()
		dc    = s.DeltaCoeffs(m)
	)
	sn = make([]float64, m.NFaces())
	for f, n := range m.Neighbours() {
		sn[f] = dc[f] * (c.Cells[n] - c.Cells[owner[f]])
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			sn[f] = dc[f] * (c.Nbr[f] - c.Cells[owner[f]])
		}
	}
	if !s.Corrected() {
		return
	}
	var corr []float64
	if corr, err = s.Correction(ctx, cache, c); err != nil {
		return
	}
	for f := range sn {
		sn[f] += corr[f]
	}
	return
}

type uncorrected struct{}

func (uncorrected) Name() string    { return "uncorrected" }
func (uncorrected) Corrected() bool { return false }

func (uncorrected) DeltaCoeffs(m *mesh.Mesh) []float64 { return m.NonOrthDeltaCoeffs() }

func (uncorrected) Correction(context.Context, *Cache, *Component) ([]float64, error) {
	return nil, nil
}

type orthogonal struct{}

func (orthogonal) Name() string    { return "orthogonal" }
func (orthogonal) Corrected() bool { return false }

func (orthogonal) DeltaCoeffs(m *mesh.Mesh) []float64 { return m.DeltaCoeffs() }

func (orthogonal) Correction(context.Context, *Cache, *Component) ([]float64, error) {
	return nil, nil
}

// corrected adds the non-orthogonal correction vector dotted with the
// linearly interpolated cell gradient
type corrected struct{}

func (corrected) Name() string    { return "corrected" }
func (corrected) Corrected() bool { return true }

func (corrected) DeltaCoeffs(m *mesh.Mesh) []float64 { return m.NonOrthDeltaCoeffs() }

func (corrected) Correction(ctx context.Context, cache *Cache, c *Component) (corr []float64, err error) {
	var (
		m     = c.Mesh
		owner = m.Owners()
		w     = m.Weights()
		k     = m.NonOrthCorrectionVectors()
		grad  []types.Vector
		gNbr  []types.Vector
	)
	if grad, err = (gauss{interp: linear{}}).Grad(ctx, cache, c); err != nil {
		return
	}
	if gNbr, err = NeighbourGradients(ctx, m, grad); err != nil {
		return
	}
	corr = make([]float64, m.NFaces())
	for f, n := range m.Neighbours() {
		gf := grad[owner[f]].Scale(w[f]).Add(grad[n].Scale(1 - w[f]))
		corr[f] = k[f].Dot(gf)
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			gf := grad[owner[f]].Scale(w[f]).Add(gNbr[f].Scale(1 - w[f]))
			corr[f] = k[f].Dot(gf)
		}
	}
	return
}

// limitedSnGrad caps the correction at psi/(1-psi) times the corrected
// gradient; psi = 0 is uncorrected and psi = 1 fully corrected
type limitedSnGrad struct {
	psi float64
}

func (s limitedSnGrad) Name() string  { return fmt.Sprintf("limited corrected %g", s.psi) }
func (limitedSnGrad) Corrected() bool { return true }

func (limitedSnGrad) DeltaCoeffs(m *mesh.Mesh) []float64 { return m.NonOrthDeltaCoeffs() }

func (s limitedSnGrad) Correction(ctx context.Context, cache *Cache, c *Component) (corr []float64, err error) {
	if s.psi == 0 {
		return make([]float64, c.Mesh.NFaces()), nil
	}
	if corr, err = (corrected{}).Correction(ctx, cache, c); err != nil || s.psi == 1 {
		return
	}
	var (
		m     = c.Mesh
		owner = m.Owners()
		dc    = m.NonOrthDeltaCoeffs()
	)
	limit := func(f int, P, N float64) {
		uncorr := dc[f] * (N - P)
		lim := min(s.psi*math.Abs(uncorr+corr[f])/((1-s.psi)*math.Abs(corr[f])+types.Small), 1)
		corr[f] *= lim
	}
	for f, n := range m.Neighbours() {
		limit(f, c.Cells[owner[f]], c.Cells[n])
	}
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			limit(f, c.Cells[owner[f]], c.Nbr[f])
		}
	}
	return
}
