package augment

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// multiplierPool holds standard-normal multipliers for one example. It is
// refilled once per example and each multiplier is handed out at most once.
type multiplierPool struct {
	dist   distuv.Normal
	values []float64
	next   int
}

func newMultiplierPool(size int, src rand.Source) *multiplierPool {
	return &multiplierPool{
		dist:   distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		values: make([]float64, size),
		next:   size,
	}
}

// refill draws a fresh set of multipliers
func (p *multiplierPool) refill() {
	for i := range p.values {
		p.values[i] = p.dist.Rand()
	}
	p.next = 0
}

// take hands out the next multiplier. Asking for more multipliers than there
// are augmentation types means the engine and its ranges table disagree.
func (p *multiplierPool) take() float64 {
	if p.next >= len(p.values) {
		panic("augment: random multiplier pool exhausted")
	}
	v := p.values[p.next]
	p.next++
	return v
}

func (p *multiplierPool) remaining() int {
	return len(p.values) - p.next
}
