package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Array is dense storage of up to three dimensions, i varies fastest.
// Unused trailing dimensions have size 1.
type Array struct {
	size [3]int
	Data []float64
}

func NewArray(size [3]int) (a *Array) {
	a = &Array{}
	a.Resize(size)
	return
}

func (a *Array) Size() [3]int { return a.size }

func (a *Array) Len() int { return len(a.Data) }

func (a *Array) Index(i, j, k int) int {
	return i + a.size[0]*(j+a.size[1]*k)
}

func (a *Array) Coord(idx int) (i, j, k int) {
	i = idx % a.size[0]
	j = (idx / a.size[0]) % a.size[1]
	k = idx / (a.size[0] * a.size[1])
	return
}

func (a *Array) At(i, j, k int) float64 { return a.Data[a.Index(i, j, k)] }

func (a *Array) Set(i, j, k int, val float64) { a.Data[a.Index(i, j, k)] = val }

func (a *Array) Add(i, j, k int, val float64) { a.Data[a.Index(i, j, k)] += val }

// Resize reallocates to size and zeroes the content
func (a *Array) Resize(size [3]int) {
	var n = 1
	for d := 0; d < 3; d++ {
		if size[d] < 0 {
			panic(fmt.Sprintf("negative array dimension %v", size))
		}
		n *= size[d]
	}
	a.size = size
	if cap(a.Data) >= n {
		a.Data = a.Data[:n]
		for i := range a.Data {
			a.Data[i] = 0
		}
	} else {
		a.Data = make([]float64, n)
	}
}

func (a *Array) Fill(val float64) {
	for i := range a.Data {
		a.Data[i] = val
	}
}

func (a *Array) SameShape(b *Array) bool {
	return a.size == b.size
}

func (a *Array) Clone() (b *Array) {
	b = &Array{size: a.size, Data: make([]float64, len(a.Data))}
	copy(b.Data, a.Data)
	return
}

// CopyFrom overwrites a with b, both must have the same shape
func (a *Array) CopyFrom(b *Array) {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("array shape mismatch: %v vs %v", a.size, b.size))
	}
	copy(a.Data, b.Data)
}

func (a *Array) AbsMax() (m float64) {
	for _, v := range a.Data {
		m = math.Max(m, math.Abs(v))
	}
	return
}

// LinearSampler interpolates an Array whose sample (0,0,0) sits at Origin
type LinearSampler struct {
	Arr     *Array
	Spacing r3.Vec
	Origin  r3.Vec
}

type stencil struct {
	i0, i1 int
	f      float64
}

func axisStencil(x, origin, h float64, n int) (s stencil) {
	if n <= 1 {
		return
	}
	t := (x - origin) / h
	i := int(math.Floor(t))
	switch {
	case i < 0:
		i, t = 0, 0
	case i > n-2:
		i, t = n-2, float64(n-1)
	}
	s.i0, s.i1 = i, i+1
	s.f = math.Max(0, math.Min(1, t-float64(i)))
	return
}

func (ls LinearSampler) Sample(x r3.Vec) (val float64) {
	var (
		size = ls.Arr.size
		sx   = axisStencil(x.X, ls.Origin.X, ls.Spacing.X, size[0])
		sy   = axisStencil(x.Y, ls.Origin.Y, ls.Spacing.Y, size[1])
		sz   = axisStencil(x.Z, ls.Origin.Z, ls.Spacing.Z, size[2])
		a    = ls.Arr
	)
	if len(a.Data) == 0 {
		return 0
	}
	lerp := func(v0, v1, f float64) float64 { return v0 + f*(v1-v0) }
	bilerp := func(k int) float64 {
		return lerp(
			lerp(a.At(sx.i0, sy.i0, k), a.At(sx.i1, sy.i0, k), sx.f),
			lerp(a.At(sx.i0, sy.i1, k), a.At(sx.i1, sy.i1, k), sx.f),
			sy.f)
	}
	val = lerp(bilerp(sz.i0), bilerp(sz.i1), sz.f)
	return
}

// NearestIndex returns the sample closest to x, clamped into the array
func (ls LinearSampler) NearestIndex(x r3.Vec) (idx [3]int) {
	var (
		o = [3]float64{ls.Origin.X, ls.Origin.Y, ls.Origin.Z}
		h = [3]float64{ls.Spacing.X, ls.Spacing.Y, ls.Spacing.Z}
		p = [3]float64{x.X, x.Y, x.Z}
	)
	for d := 0; d < 3; d++ {
		n := ls.Arr.size[d]
		if n <= 1 {
			continue
		}
		i := int(math.Round((p[d] - o[d]) / h[d]))
		idx[d] = max(0, min(n-1, i))
	}
	return
}
