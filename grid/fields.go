package grid

import "gonum.org/v1/gonum/spatial/r3"

type ScalarField interface {
	Sample(x r3.Vec) float64
}

type VectorField interface {
	Sample(x r3.Vec) r3.Vec
}

type ConstantScalarField struct {
	Value float64
}

func (c ConstantScalarField) Sample(r3.Vec) float64 { return c.Value }

type ConstantVectorField struct {
	Value r3.Vec
}

func (c ConstantVectorField) Sample(r3.Vec) r3.Vec { return c.Value }

type ScalarFunc func(x r3.Vec) float64

func (f ScalarFunc) Sample(x r3.Vec) float64 { return f(x) }

type VectorFunc func(x r3.Vec) r3.Vec

func (f VectorFunc) Sample(x r3.Vec) r3.Vec { return f(x) }
