package mesh

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/types"
)

type EventKind uint8

const (
	Motion   EventKind = iota // points moved, topology unchanged
	Topology                  // mesh retired, every field bound to it is stale
)

func (k EventKind) String() string {
	if k == Motion {
		return "motion"
	}
	return "topology"
}

type Event struct {
	Kind  EventKind
	State uint64
}

// Subscribe registers fn for mesh change notifications. The returned func
// removes the subscription.
func (m *Mesh) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	key := m.nextObsKey
	m.nextObsKey++
	m.observers[key] = fn
	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		delete(m.observers, key)
	}
}

func (m *Mesh) notify(ev Event) {
	m.obsMu.Lock()
	fns := make([]func(Event), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Retire marks the topology of the mesh as replaced. All later topology
// queries panic.
func (m *Mesh) Retire() {
	if m.retired {
		return
	}
	m.retired = true
	m.state++
	m.notify(Event{Kind: Topology, State: m.state})
}

// Move replaces the point positions, keeps the old cell volumes for the time
// derivative schemes and records the volume swept by every face over deltaT.
// Processor patches exchange their new neighbour cell centres.
func (m *Mesh) Move(ctx context.Context, newPoints []types.Vector, deltaT float64) (err error) {
	m.CheckLive()
	if len(newPoints) != len(m.points) {
		return fmt.Errorf("%w: moving %d points with %d new positions", ErrInvalidMesh, len(m.points), len(newPoints))
	}
	if deltaT <= 0 {
		return fmt.Errorf("mesh motion over non positive time step %g", deltaT)
	}
	var (
		oldSf = m.sf
		oldCf = m.cf
	)
	if m.v0 == nil {
		m.v00 = m.v
	} else {
		m.v00 = m.v0
	}
	m.v0 = m.v
	m.points = newPoints
	m.calcGeometry()
	m.sweptVols = make([]float64, len(m.faces))
	for f := range m.faces {
		m.sweptVols[f] = 0.5 * oldSf[f].Add(m.sf[f]).Dot(m.cf[f].Sub(oldCf[f]))
	}
	m.motionDt = deltaT
	m.moving = true
	if err = m.exchangeProcessorCentres(ctx); err != nil {
		return
	}
	if err = m.updateCoupledGeometry(); err != nil {
		return
	}
	m.state++
	m.notify(Event{Kind: Motion, State: m.state})
	return
}

func (m *Mesh) Moving() bool { return m.moving }

// V0 and V00 are the cell volumes one and two motions back. Static meshes
// return V.
func (m *Mesh) V0() []float64 {
	m.CheckLive()
	if m.v0 == nil {
		return m.v
	}
	return m.v0
}

func (m *Mesh) V00() []float64 {
	m.CheckLive()
	if m.v00 == nil {
		return m.V0()
	}
	return m.v00
}

// SweptVolumes is nil for a static mesh
func (m *Mesh) SweptVolumes() []float64 {
	m.CheckLive()
	return m.sweptVols
}

// Phi is the face volume flux due to the last motion, nil for a static mesh
func (m *Mesh) Phi() (phi []float64) {
	m.CheckLive()
	if !m.moving {
		return nil
	}
	phi = make([]float64, len(m.sweptVols))
	for f, sv := range m.sweptVols {
		phi[f] = sv / m.motionDt
	}
	return
}
