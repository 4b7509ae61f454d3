package auction

import (
	"math/rand/v2"
)

// Picker chooses an index in [0, n). *rand.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

// NewPicker returns a PCG-backed picker. A zero seed picks a random one.
func NewPicker(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// draw picks uniformly among the available players, never the one on the
// block.
func draw(s *State, p Picker) (string, error) {
	ids := s.Eligible()
	if len(ids) == 0 {
		return "", ErrPoolExhausted
	}
	return ids[p.IntN(len(ids))], nil
}
