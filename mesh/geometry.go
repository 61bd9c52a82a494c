package mesh

import (
	"math"

	"github.com/notargets/fvcore/types"
)

// faceGeometry decomposes a polygon into triangles about the average of its
// points. Triangles are evaluated directly.
func faceGeometry(pts []types.Vector, verts []int) (ctr, area types.Vector) {
	if len(verts) == 3 {
		p0, p1, p2 := pts[verts[0]], pts[verts[1]], pts[verts[2]]
		ctr = p0.Add(p1).Add(p2).Scale(1. / 3.)
		area = p1.Sub(p0).Cross(p2.Sub(p0)).Scale(0.5)
		return
	}
	var (
		fCentre types.Vector
		sumN    types.Vector
		sumA    float64
		sumAc   types.Vector
	)
	for _, v := range verts {
		fCentre = fCentre.Add(pts[v])
	}
	fCentre = fCentre.Scale(1 / float64(len(verts)))
	for i, v := range verts {
		var (
			thisPt = pts[v]
			nextPt = pts[verts[(i+1)%len(verts)]]
			c      = thisPt.Add(nextPt).Add(fCentre)
			n      = nextPt.Sub(thisPt).Cross(fCentre.Sub(thisPt))
			a      = n.Mag()
		)
		sumN = sumN.Add(n)
		sumA += a
		sumAc = sumAc.Add(c.Scale(a))
	}
	if sumA < types.VSmall {
		ctr = fCentre
	} else {
		ctr = sumAc.Scale(1 / (3 * sumA))
	}
	area = sumN.Scale(0.5)
	return
}

func (m *Mesh) calcFaceGeometry() {
	nf := len(m.faces)
	m.sf = make([]types.Vector, nf)
	m.cf = make([]types.Vector, nf)
	m.magSf = make([]float64, nf)
	for f, verts := range m.faces {
		m.cf[f], m.sf[f] = faceGeometry(m.points, verts)
		m.magSf[f] = max(m.sf[f].Mag(), types.VSmall)
	}
}

// calcCellGeometry decomposes each cell into pyramids standing on its faces
// with the apex at the average of the face centres
func (m *Mesh) calcCellGeometry() {
	var (
		nc    = m.nCells
		cEst  = make([]types.Vector, nc)
		nCF   = make([]int, nc)
		nInt  = len(m.neighbour)
		cCtrs = make([]types.Vector, nc)
		cVols = make([]float64, nc)
	)
	for f, o := range m.owner {
		cEst[o] = cEst[o].Add(m.cf[f])
		nCF[o]++
		if f < nInt {
			n := m.neighbour[f]
			cEst[n] = cEst[n].Add(m.cf[f])
			nCF[n]++
		}
	}
	for c := range cEst {
		cEst[c] = cEst[c].Scale(1 / float64(nCF[c]))
	}
	pyramid := func(cell, f int, vol float64) {
		vol = max(vol, types.VSmall)
		pc := m.cf[f].Scale(0.75).Add(cEst[cell].Scale(0.25))
		cCtrs[cell] = cCtrs[cell].Add(pc.Scale(vol))
		cVols[cell] += vol
	}
	for f, o := range m.owner {
		pyramid(o, f, m.sf[f].Dot(m.cf[f].Sub(cEst[o])))
		if f < nInt {
			n := m.neighbour[f]
			pyramid(n, f, m.sf[f].Dot(cEst[n].Sub(m.cf[f])))
		}
	}
	m.c = make([]types.Vector, nc)
	m.v = make([]float64, nc)
	for c := range cVols {
		if math.Abs(cVols[c]) > types.VSmall {
			m.c[c] = cCtrs[c].Scale(1 / cVols[c])
		} else {
			m.c[c] = cEst[c]
		}
		m.v[c] = cVols[c] / 3
	}
}

// setFaceDelta fills the interpolation factors of face f given the owner to
// neighbour vector d
func (m *Mesh) setFaceDelta(f int, d types.Vector) {
	var (
		unitArea = m.sf[f].Scale(1 / m.magSf[f])
		magD     = max(d.Mag(), types.VSmall)
	)
	m.delta[f] = d
	m.deltaCoeffs[f] = 1 / magD
	m.nonOrthDeltaC[f] = 1 / max(unitArea.Dot(d), 0.05*magD)
	m.nonOrthCorr[f] = unitArea.Sub(d.Scale(m.nonOrthDeltaC[f]))
}

func (m *Mesh) calcGeometry() {
	m.calcFaceGeometry()
	m.calcCellGeometry()
	var (
		nf = len(m.faces)
	)
	m.weights = make([]float64, nf)
	m.delta = make([]types.Vector, nf)
	m.deltaCoeffs = make([]float64, nf)
	m.nonOrthDeltaC = make([]float64, nf)
	m.nonOrthCorr = make([]types.Vector, nf)
	for f, n := range m.neighbour {
		o := m.owner[f]
		sfdOwn := math.Abs(m.sf[f].Dot(m.cf[f].Sub(m.c[o])))
		sfdNei := math.Abs(m.sf[f].Dot(m.c[n].Sub(m.cf[f])))
		if sfdOwn+sfdNei > types.VSmall {
			m.weights[f] = sfdNei / (sfdOwn + sfdNei)
		} else {
			m.weights[f] = 0.5
		}
		m.setFaceDelta(f, m.c[n].Sub(m.c[o]))
	}
	for _, p := range m.patches {
		if p.Coupled() {
			continue
		}
		for i := 0; i < p.Size; i++ {
			f := p.Start + i
			nf := m.sf[f].Scale(1 / m.magSf[f])
			m.weights[f] = 1
			m.setFaceDelta(f, nf.Scale(nf.Dot(m.cf[f].Sub(m.c[m.owner[f]]))))
		}
	}
}

// neighbourCentres returns the cell centres across a coupled patch, expressed
// in the frame of the patch
func (m *Mesh) neighbourCentres(p *Patch) (cn []types.Vector) {
	switch p.Kind {
	case KindProcessor:
		return p.NeighbourCentres
	case KindCyclic:
		q := m.patches[p.partnerIndex]
		cn = make([]types.Vector, p.Size)
		for i := range cn {
			cn[i] = m.c[q.faceCells[i]].Add(p.Separation)
		}
	case KindNonConformal:
		q := m.patches[p.partnerIndex]
		cn = make([]types.Vector, p.Size)
		for i, ws := range p.NbrWeights {
			for _, w := range ws {
				cn[i] = cn[i].Add(m.c[q.faceCells[w.Face]].Add(p.Separation).Scale(w.Weight))
			}
		}
	}
	return
}

// updateCoupledGeometry sets the separation of periodic patches and the
// interpolation factors of every coupled face
func (m *Mesh) updateCoupledGeometry() (err error) {
	for _, p := range m.patches {
		if p.Kind != KindCyclic && p.Kind != KindNonConformal {
			continue
		}
		var (
			q   = m.patches[p.partnerIndex]
			sep types.Vector
		)
		for i := 0; i < p.Size; i++ {
			var partnerCf types.Vector
			if p.Kind == KindCyclic {
				partnerCf = m.cf[q.Start+i]
			} else {
				for _, w := range p.NbrWeights[i] {
					partnerCf = partnerCf.Add(m.cf[q.Start+w.Face].Scale(w.Weight))
				}
			}
			sep = sep.Add(m.cf[p.Start+i].Sub(partnerCf))
		}
		if p.Size > 0 {
			p.Separation = sep.Scale(1 / float64(p.Size))
		}
	}
	for _, p := range m.patches {
		if !p.Coupled() {
			continue
		}
		cn := m.neighbourCentres(p)
		for i := 0; i < p.Size; i++ {
			var (
				f    = p.Start + i
				nf   = m.sf[f].Scale(1 / m.magSf[f])
				cp   = m.c[m.owner[f]]
				dOwn = nf.Dot(m.cf[f].Sub(cp))
				dNei = nf.Dot(cn[i].Sub(m.cf[f]))
			)
			if math.Abs(dOwn+dNei) > types.VSmall {
				m.weights[f] = dNei / (dOwn + dNei)
			} else {
				m.weights[f] = 0.5
			}
			m.setFaceDelta(f, cn[i].Sub(cp))
		}
	}
	return
}

func nonOrthAngle(sf, d types.Vector) float64 {
	c := sf.Dot(d) / max(sf.Mag()*d.Mag(), types.VSmall)
	c = max(-1, min(1, c))
	return math.Acos(c) * 180 / math.Pi
}
