// Package set holds small dense index sets.
package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Bitmap is a set of small non-negative integers.
	// The zero value is an empty set.
	Bitmap struct {
		b  []uint64
		b0 [1]uint64
	}
)

func MakeBitmap(n int) Bitmap {
	s := Bitmap{}
	s.b = s.b0[:]

	n = (n + 63) / 64

	if n > len(s.b) {
		s.b = make([]uint64, n)
	}

	return s
}

// Set adds i and reports whether it was already there.
func (s *Bitmap) Set(i int) (was bool) {
	i, j := i/64, i%64

	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}

	was = s.b[i]&(1<<j) != 0
	s.b[i] |= 1 << j

	return was
}

func (s *Bitmap) IsSet(i int) bool {
	i, j := i/64, i%64

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

func (s *Bitmap) Size() (r int) {
	if s == nil {
		return 0
	}

	for _, c := range s.b {
		r += bits.OnesCount64(c)
	}

	return r
}

// Missing returns indexes in [0, n) not in the set, in increasing order.
func (s *Bitmap) Missing(n int) (r []int) {
	for i := 0; i < n; i++ {
		if !s.IsSet(i) {
			r = append(r, i)
		}
	}

	return r
}

func (s *Bitmap) Range(f func(i int) bool) {
	for i, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)
			x &^= 1 << j

			if !f(i*64 + j) {
				return
			}
		}
	}
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)

		return true
	})

	return e.AppendBreak(b)
}
