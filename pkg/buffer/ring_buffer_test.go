package buffer

import (
	"slices"
	"testing"
)

func TestRing(t *testing.T) {
	t.Run("push until full", func(t *testing.T) {
		r := RingN[int](3)
		for i := 1; i <= 3; i++ {
			if !r.Push(i) {
				t.Fatalf("push %d rejected", i)
			}
		}
		if r.Push(4) {
			t.Errorf("push into full ring accepted")
		}
		if !r.Full() || r.Len() != 3 || r.Cap() != 3 {
			t.Errorf("len=%d cap=%d full=%v", r.Len(), r.Cap(), r.Full())
		}
		if got := r.Items(); !slices.Equal(got, []int{1, 2, 3}) {
			t.Errorf("items=%v", got)
		}
	})

	t.Run("pop back", func(t *testing.T) {
		r := RingN[string](2)
		if _, ok := r.PopBack(); ok {
			t.Fatalf("pop from empty ring succeeded")
		}
		r.Push("a")
		r.Push("b")
		v, ok := r.PopBack()
		if !ok || v != "b" {
			t.Errorf("pop=%q ok=%v", v, ok)
		}
		if r.Len() != 1 {
			t.Errorf("len=%d", r.Len())
		}
		if !r.Push("c") {
			t.Errorf("push after pop rejected")
		}
		if got := r.Items(); !slices.Equal(got, []string{"a", "c"}) {
			t.Errorf("items=%v", got)
		}
	})

	t.Run("reset", func(t *testing.T) {
		r := RingN[int](2)
		r.Push(1)
		r.Push(2)
		r.Reset()
		if r.Len() != 0 || len(r.Items()) != 0 {
			t.Errorf("len=%d after reset", r.Len())
		}
	})
}

func TestRingRotate(t *testing.T) {
	tests := []struct {
		name string
		cap  int
		in   []int
		k    int
		want []int
	}{
		{"full right 1", 3, []int{1, 2, 3}, 1, []int{3, 1, 2}},
		{"full right 2", 3, []int{1, 2, 3}, 2, []int{2, 3, 1}},
		{"full wraps modulo", 3, []int{1, 2, 3}, 4, []int{3, 1, 2}},
		{"full left", 3, []int{1, 2, 3}, -1, []int{2, 3, 1}},
		{"full zero", 3, []int{1, 2, 3}, 0, []int{1, 2, 3}},
		{"partial right 1", 5, []int{1, 2, 3}, 1, []int{3, 1, 2}},
		{"partial beyond len", 5, []int{1, 2, 3}, 4, []int{3, 1, 2}},
		{"single", 4, []int{7}, 3, []int{7}},
		{"empty", 4, nil, 3, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RingN[int](tt.cap)
			for _, v := range tt.in {
				r.Push(v)
			}
			r.Rotate(tt.k)
			if got := r.Items(); !slices.Equal(got, tt.want) {
				t.Errorf("rotate(%d) = %v, want %v", tt.k, got, tt.want)
			}
		})
	}
}

func TestRingRotateAfterWrap(t *testing.T) {
	r := RingN[int](4)
	for i := 1; i <= 4; i++ {
		r.Push(i)
	}
	r.Rotate(3) // 2 3 4 1, head moved
	r.PopBack() // 2 3 4
	r.Push(9)   // 2 3 4 9
	r.Rotate(1) // 9 2 3 4
	if got := r.Items(); !slices.Equal(got, []int{9, 2, 3, 4}) {
		t.Fatalf("items=%v", got)
	}
	r.PopBack()
	r.PopBack()
	r.Rotate(1) // partial: 2 9
	if got := r.Items(); !slices.Equal(got, []int{2, 9}) {
		t.Fatalf("items=%v", got)
	}
	if r.At(0) != 2 || r.At(1) != 9 {
		t.Errorf("at(0)=%d at(1)=%d", r.At(0), r.At(1))
	}
}

func TestRingNPanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("RingN(0) did not panic")
		}
	}()
	RingN[int](0)
}
