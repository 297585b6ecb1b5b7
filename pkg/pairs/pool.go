package pairs

import (
	"math/rand/v2"

	"github.com/haivivi/crpairs/pkg/buffer"
)

// Pool is the bounded set of negative candidate utterances.
//
// Draw rotates the pool by a random offset in [0, Cap) and removes the
// element left at the tail. Combined with pushing rejected candidates back,
// this approximates sampling without replacement without a fixed iteration
// order.
type Pool[U comparable] struct {
	ring *buffer.Ring[U]
	rng  *rand.Rand
}

// NewPool creates an empty pool with the given capacity that draws its
// rotation offsets from rng.
func NewPool[U comparable](capacity int, rng *rand.Rand) *Pool[U] {
	return &Pool[U]{
		ring: buffer.RingN[U](capacity),
		rng:  rng,
	}
}

// Push inserts u if the pool is below capacity and reports whether it did.
// A full pool is left unchanged; nothing is evicted.
func (p *Pool[U]) Push(u U) bool {
	return p.ring.Push(u)
}

// Draw removes and returns a pseudo-randomly chosen utterance.
// It returns ErrEmptyPool when the pool holds nothing.
func (p *Pool[U]) Draw() (U, error) {
	if p.ring.Len() == 0 {
		var zero U
		return zero, ErrEmptyPool
	}
	p.ring.Rotate(p.rng.IntN(p.ring.Cap()))
	u, _ := p.ring.PopBack()
	return u, nil
}

// Len returns the current occupancy.
func (p *Pool[U]) Len() int { return p.ring.Len() }

// Cap returns the configured capacity.
func (p *Pool[U]) Cap() int { return p.ring.Cap() }

// Full reports whether the pool is at capacity.
func (p *Pool[U]) Full() bool { return p.ring.Full() }

// Items returns a snapshot of the pooled utterances.
func (p *Pool[U]) Items() []U { return p.ring.Items() }
