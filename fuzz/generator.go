package fuzz

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/notnil/linbus/codec"
	"github.com/notnil/linbus/ldf"
)

// Generator assigns random legal values to the master-published signals of a
// frame. It serializes access to its source and is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	rand Rand
}

// NewGenerator returns a Generator drawing from r. A nil r uses a time-seeded
// source.
func NewGenerator(r Rand) *Generator {
	if r == nil {
		seed := uint64(time.Now().UnixNano())
		r = rand.New(rand.NewPCG(seed, seed>>32|seed<<32))
	}
	return &Generator{rand: r}
}

// NewSeeded returns a Generator producing a reproducible sequence.
func NewSeeded(seed uint64) *Generator {
	return NewGenerator(rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)))
}

// Values returns one raw value per signal of f published by the master node.
// The map is empty when the master publishes none of them.
func (g *Generator) Values(f *ldf.Frame) (codec.Values, error) {
	return g.values(f, func(s *ldf.Signal) bool { return s.Publisher.IsMaster() })
}

// ValuesFor is Values for the signals of f published by node. Simulated
// slaves use it to vary their responses.
func (g *Generator) ValuesFor(f *ldf.Frame, node *ldf.Node) (codec.Values, error) {
	return g.values(f, func(s *ldf.Signal) bool { return s.Publisher == node })
}

func (g *Generator) values(f *ldf.Frame, keep func(*ldf.Signal) bool) (codec.Values, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(codec.Values)
	for _, p := range f.Signals {
		if !keep(p.Signal) {
			continue
		}
		v, err := Resolve(g.rand, p.Signal)
		if err != nil {
			return nil, err
		}
		out[p.Signal.Name] = codec.Raw(v)
	}
	return out, nil
}

// Payload returns an encoded payload of f carrying fresh random values.
func (g *Generator) Payload(f *ldf.Frame) ([]byte, error) {
	vs, err := g.Values(f)
	if err != nil {
		return nil, err
	}
	return codec.Encode(f, vs)
}

// Pick returns a random element of ids.
func (g *Generator) Pick(ids []uint8) uint8 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ids[g.rand.IntN(len(ids))]
}
