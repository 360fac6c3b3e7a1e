package utils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Comp returns the component of v along axis 0, 1 or 2
func Comp(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("axis out of range")
}

func SetComp(v *r3.Vec, axis int, val float64) {
	switch axis {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	case 2:
		v.Z = val
	default:
		panic("axis out of range")
	}
}

func Unit(axis int) (v r3.Vec) {
	SetComp(&v, axis, 1)
	return
}

func MinComp(v r3.Vec, dim int) (m float64) {
	m = v.X
	for d := 1; d < dim; d++ {
		m = math.Min(m, Comp(v, d))
	}
	return
}

// Hadamard is the componentwise product
func Hadamard(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// Normalize returns the unit vector along v, or the zero vector when |v| is zero
func Normalize(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < math.SmallestNonzeroFloat64 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
