package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrCommunication is wrapped by every failed point-to-point or collective
// operation. It is fatal for the run that sees it.
var ErrCommunication = errors.New("parallel communication failed")

var tracer = otel.Tracer("github.com/notargets/fvcore/parallel")

// Communicator is the message passing surface used by processor patches,
// matrix interfaces and the linear solvers. An MPI binding can satisfy it as
// well as the in-memory World below.
type Communicator interface {
	Rank() int
	Size() int
	// Send posts data to rank "to". Messages between a pair of ranks with the
	// same tag are delivered in order.
	Send(ctx context.Context, to, tag int, data []float64) error
	Recv(ctx context.Context, from, tag int) ([]float64, error)
	// AllReduceSum replaces v on every rank with the element-wise sum over
	// all ranks
	AllReduceSum(ctx context.Context, v []float64) error
	Barrier(ctx context.Context) error
}

// Serial is the single rank communicator attached to meshes by default
type Serial struct{}

func (Serial) Rank() int { return 0 }
func (Serial) Size() int { return 1 }

func (Serial) Send(_ context.Context, to, tag int, _ []float64) error {
	return fmt.Errorf("%w: serial run cannot send to rank %d (tag %d)", ErrCommunication, to, tag)
}

func (Serial) Recv(_ context.Context, from, tag int) ([]float64, error) {
	return nil, fmt.Errorf("%w: serial run cannot receive from rank %d (tag %d)", ErrCommunication, from, tag)
}

func (Serial) AllReduceSum(context.Context, []float64) error { return nil }
func (Serial) Barrier(context.Context) error                 { return nil }

// Reserved tags for collectives, processor patch tags are non-negative
const (
	tagReduce = -1 - iota
	tagBroadcast
)

type mailKey struct {
	from, to, tag int
}

// World is an in-memory communicator group, one rank per goroutine. Mail
// slots are created lazily for every (from, to, tag) triple and buffered so
// a rank can post all of its sends before it starts receiving.
type World struct {
	NP     int
	Buffer int
	mu     sync.Mutex
	slots  map[mailKey]chan []float64
}

func NewWorld(NP int) *World {
	if NP < 1 {
		panic(fmt.Errorf("world needs at least one rank, have %d", NP))
	}
	return &World{
		NP:     NP,
		Buffer: 64,
		slots:  make(map[mailKey]chan []float64),
	}
}

func (w *World) slot(k mailKey) chan []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.slots[k]
	if !ok {
		ch = make(chan []float64, w.Buffer)
		w.slots[k] = ch
	}
	return ch
}

// Comm returns the communicator of one rank
func (w *World) Comm(rank int) Communicator {
	if rank < 0 || rank >= w.NP {
		panic(fmt.Sprintf("rank %d out of bounds for world of size %d", rank, w.NP))
	}
	return &worldComm{world: w, rank: rank}
}

type worldComm struct {
	world *World
	rank  int
}

func (c *worldComm) Rank() int { return c.rank }
func (c *worldComm) Size() int { return c.world.NP }

func (c *worldComm) checkPeer(peer int) error {
	if peer < 0 || peer >= c.world.NP || peer == c.rank {
		return fmt.Errorf("%w: rank %d has no peer %d", ErrCommunication, c.rank, peer)
	}
	return nil
}

func (c *worldComm) Send(ctx context.Context, to, tag int, data []float64) (err error) {
	if err = c.checkPeer(to); err != nil {
		return
	}
	msg := make([]float64, len(data))
	copy(msg, data)
	select {
	case c.world.slot(mailKey{c.rank, to, tag}) <- msg:
	case <-ctx.Done():
		err = fmt.Errorf("%w: send %d -> %d tag %d: %v", ErrCommunication, c.rank, to, tag, ctx.Err())
	}
	return
}

func (c *worldComm) Recv(ctx context.Context, from, tag int) (data []float64, err error) {
	if err = c.checkPeer(from); err != nil {
		return
	}
	select {
	case data = <-c.world.slot(mailKey{from, c.rank, tag}):
	case <-ctx.Done():
		err = fmt.Errorf("%w: recv %d <- %d tag %d: %v", ErrCommunication, c.rank, from, tag, ctx.Err())
	}
	return
}

// AllReduceSum gathers on rank 0, sums in rank order and broadcasts the
// result, so every rank sees bit-identical values.
func (c *worldComm) AllReduceSum(ctx context.Context, v []float64) (err error) {
	var (
		np = c.world.NP
	)
	if np == 1 {
		return
	}
	if c.rank != 0 {
		if err = c.Send(ctx, 0, tagReduce, v); err != nil {
			return
		}
		var sum []float64
		if sum, err = c.Recv(ctx, 0, tagBroadcast); err != nil {
			return
		}
		copy(v, sum)
		return
	}
	for r := 1; r < np; r++ {
		var part []float64
		if part, err = c.Recv(ctx, r, tagReduce); err != nil {
			return
		}
		if len(part) != len(v) {
			return fmt.Errorf("%w: reduction length mismatch, rank %d sent %d values, expected %d",
				ErrCommunication, r, len(part), len(v))
		}
		for i := range v {
			v[i] += part[i]
		}
	}
	for r := 1; r < np; r++ {
		if err = c.Send(ctx, r, tagBroadcast, v); err != nil {
			return
		}
	}
	return
}

func (c *worldComm) Barrier(ctx context.Context) error {
	return c.AllReduceSum(ctx, nil)
}

// Run starts fn once per rank of w and waits for all of them. The first error
// cancels the context handed to the other ranks.
func Run(ctx context.Context, w *World, fn func(ctx context.Context, comm Communicator) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < w.NP; rank++ {
		comm := w.Comm(rank)
		g.Go(func() error {
			return fn(gctx, comm)
		})
	}
	return g.Wait()
}

// StartSpan opens a trace span tagged with the rank of comm
func StartSpan(ctx context.Context, comm Communicator, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int("rank", comm.Rank()),
		attribute.Int("size", comm.Size()),
	))
}

// Sum is a convenience wrapper reducing a single value
func Sum(ctx context.Context, comm Communicator, v float64) (float64, error) {
	buf := []float64{v}
	if err := comm.AllReduceSum(ctx, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}
