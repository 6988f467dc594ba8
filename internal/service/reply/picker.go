package reply

import (
	"math/rand/v2"
	"sync"
)

// Picker chooses one entry from a non-empty pool.
type Picker interface {
	Pick(pool []string) string
}

// RandomPicker picks uniformly at random.
type RandomPicker struct{}

func (RandomPicker) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

// RotatingPicker walks the pool round-robin so every entry is reached in
// len(pool) calls.
type RotatingPicker struct {
	mu   sync.Mutex
	next int
}

func (p *RotatingPicker) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	choice := pool[p.next%len(pool)]
	p.next = (p.next + 1) % len(pool)
	return choice
}

// FixedPicker always returns the entry at Index (modulo the pool size).
type FixedPicker struct {
	Index int
}

func (p FixedPicker) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	idx := p.Index % len(pool)
	if idx < 0 {
		idx += len(pool)
	}
	return pool[idx]
}

// PickerFor maps a configured strategy name to a Picker. Unknown names fall
// back to random selection.
func PickerFor(strategy string) Picker {
	switch strategy {
	case StrategyRotate:
		return &RotatingPicker{}
	default:
		return RandomPicker{}
	}
}

const (
	StrategyRandom = "random"
	StrategyRotate = "rotate"
)
