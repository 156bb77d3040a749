// Package fuzz produces randomized but valid signal values and keeps a LIN
// master's published frames changing.
package fuzz

import (
	"errors"
	"fmt"

	"github.com/notnil/linbus/ldf"
)

var ErrInvalidSignalDefinition = errors.New("fuzz: invalid signal definition")

// Rand is the random source used for value generation. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	Uint64() uint64
	Uint64N(n uint64) uint64
	IntN(n int) int
}

// Resolve draws one raw value satisfying the signal's encoding. The first
// physical range wins, then the set of logical values, then the full width.
func Resolve(r Rand, s *ldf.Signal) (uint64, error) {
	if s.Width < 1 || s.Width > ldf.MaxSignalWidth {
		return 0, fmt.Errorf("%w: signal %q width %d", ErrInvalidSignalDefinition, s.Name, s.Width)
	}
	limit := s.MaxRaw()

	if c, ok := s.Encoding.Physical(); ok {
		if c.Min > c.Max || c.Max > limit {
			return 0, fmt.Errorf("%w: signal %q range [%d, %d] in %d bits", ErrInvalidSignalDefinition, s.Name, c.Min, c.Max, s.Width)
		}
		return c.Min + uniform(r, c.Max-c.Min), nil
	}

	if vals := s.Encoding.LogicalValues(); len(vals) > 0 {
		for _, v := range vals {
			if v > limit {
				return 0, fmt.Errorf("%w: signal %q logical value %d in %d bits", ErrInvalidSignalDefinition, s.Name, v, s.Width)
			}
		}
		return vals[r.IntN(len(vals))], nil
	}

	return uniform(r, limit), nil
}

// uniform returns a value in [0, span].
func uniform(r Rand, span uint64) uint64 {
	if span == ^uint64(0) {
		return r.Uint64()
	}
	return r.Uint64N(span + 1)
}
