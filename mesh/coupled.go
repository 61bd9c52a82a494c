package mesh

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/notargets/fvcore/parallel"
	"github.com/notargets/fvcore/types"
)

// PatchInternalValues picks the owner cell values of the patch faces out of
// a cell array holding ncmpt components per cell
func PatchInternalValues(p *Patch, cells []float64, ncmpt int) (out []float64) {
	out = make([]float64, p.Size*ncmpt)
	for i, c := range p.faceCells {
		copy(out[i*ncmpt:(i+1)*ncmpt], cells[c*ncmpt:(c+1)*ncmpt])
	}
	return
}

// NeighbourValues returns, for every face of a coupled patch, the value of
// the cell on the other side. Processor patches exchange with the
// neighbouring rank, which must make the matching call.
func (m *Mesh) NeighbourValues(ctx context.Context, p *Patch, cells []float64, ncmpt int) (out []float64, err error) {
	m.CheckLive()
	switch p.Kind {
	case KindCyclic:
		out = PatchInternalValues(m.patches[p.partnerIndex], cells, ncmpt)
	case KindNonConformal:
		var (
			q   = m.patches[p.partnerIndex]
			qIn = PatchInternalValues(q, cells, ncmpt)
		)
		out = make([]float64, p.Size*ncmpt)
		for i, ws := range p.NbrWeights {
			for _, w := range ws {
				for c := 0; c < ncmpt; c++ {
					out[i*ncmpt+c] += w.Weight * qIn[w.Face*ncmpt+c]
				}
			}
		}
	case KindProcessor:
		out, err = m.exchange(ctx, p, PatchInternalValues(p, cells, ncmpt))
		if err == nil && len(out) != p.Size*ncmpt {
			err = fmt.Errorf("%w: patch %s received %d values, expected %d",
				parallel.ErrCommunication, p.Name, len(out), p.Size*ncmpt)
		}
	default:
		panic(fmt.Errorf("patch %s of type %s is not coupled", p.Name, p.Kind))
	}
	return
}

func (m *Mesh) exchange(ctx context.Context, p *Patch, send []float64) (recv []float64, err error) {
	ctx, span := parallel.StartSpan(ctx, m.comm, "mesh.exchange")
	span.SetAttributes(
		attribute.String("patch", p.Name),
		attribute.Int("neighbour", p.NeighbourRank),
		attribute.Int("values", len(send)),
	)
	defer span.End()
	if err = m.comm.Send(ctx, p.NeighbourRank, p.Tag, send); err != nil {
		span.RecordError(err)
		return
	}
	if recv, err = m.comm.Recv(ctx, p.NeighbourRank, p.Tag); err != nil {
		span.RecordError(err)
	}
	return
}

func (m *Mesh) exchangeProcessorCentres(ctx context.Context) (err error) {
	for _, p := range m.patches {
		if p.Kind != KindProcessor {
			continue
		}
		send := make([]float64, 3*p.Size)
		for i, c := range p.faceCells {
			copy(send[3*i:3*i+3], m.c[c][:])
		}
		var recv []float64
		if recv, err = m.exchange(ctx, p, send); err != nil {
			return
		}
		if len(recv) != 3*p.Size {
			return fmt.Errorf("%w: patch %s received %d centre components, expected %d",
				parallel.ErrCommunication, p.Name, len(recv), 3*p.Size)
		}
		for i := range p.NeighbourCentres {
			p.NeighbourCentres[i] = types.Vector{recv[3*i], recv[3*i+1], recv[3*i+2]}
		}
	}
	return
}
