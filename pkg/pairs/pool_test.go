package pairs

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestPoolDrawEmpty(t *testing.T) {
	p := NewPool[string](3, rand.New(rand.NewPCG(1, 2)))
	if _, err := p.Draw(); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Draw on empty pool: %v", err)
	}
}

func TestPoolPushRespectsCapacity(t *testing.T) {
	p := NewPool[int](2, rand.New(rand.NewPCG(1, 2)))
	if !p.Push(1) || !p.Push(2) {
		t.Fatal("push below capacity rejected")
	}
	if p.Push(3) {
		t.Error("push into full pool accepted")
	}
	if p.Len() != 2 || !p.Full() || p.Cap() != 2 {
		t.Errorf("len=%d cap=%d full=%v", p.Len(), p.Cap(), p.Full())
	}
	if got := p.Items(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("items=%v", got)
	}
}

func TestPoolDrawIsWithoutReplacement(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		p := NewPool[int](5, rand.New(rand.NewPCG(seed, seed)))
		for i := range 5 {
			p.Push(i)
		}
		var got []int
		for range 5 {
			v, err := p.Draw()
			if err != nil {
				t.Fatalf("seed %d: Draw: %v", seed, err)
			}
			got = append(got, v)
		}
		slices.Sort(got)
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Errorf("seed %d: drawn %v", seed, got)
		}
		if p.Len() != 0 {
			t.Errorf("seed %d: len=%d after draining", seed, p.Len())
		}
	}
}

func TestPoolDrawDeterministic(t *testing.T) {
	draw := func() []int {
		p := NewPool[int](8, rand.New(rand.NewPCG(42, 7)))
		for i := range 8 {
			p.Push(i)
		}
		var out []int
		for p.Len() > 0 {
			v, _ := p.Draw()
			out = append(out, v)
		}
		return out
	}
	a, b := draw(), draw()
	if !slices.Equal(a, b) {
		t.Errorf("same seed drew %v and %v", a, b)
	}
}
