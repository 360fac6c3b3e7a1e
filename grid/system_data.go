package grid

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// SystemData holds the velocity grid and any extra advected quantities of a
// simulation, all sharing one Geometry.
type SystemData struct {
	Geometry
	velocity      *FaceCenteredGrid
	scalars       []*ScalarGrid
	scalarInitial []float64
	vectors       []*CollocatedVectorGrid
	vectorInitial []r3.Vec
}

func NewSystemData(g Geometry) (sd *SystemData) {
	sd = &SystemData{
		Geometry: g,
		velocity: NewFaceCenteredGrid(g, r3.Vec{}),
	}
	return
}

// Resize resets every grid to the new geometry and its initial value
func (sd *SystemData) Resize(g Geometry) {
	sd.Geometry = g
	sd.velocity.Resize(g, r3.Vec{})
	for i, s := range sd.scalars {
		s.Resize(g, sd.scalarInitial[i])
	}
	for i, v := range sd.vectors {
		v.Resize(g, sd.vectorInitial[i])
	}
}

func (sd *SystemData) Velocity() *FaceCenteredGrid { return sd.velocity }

// AddScalar appends an advected scalar grid and returns its index
func (sd *SystemData) AddScalar(initial float64) (idx int) {
	idx = len(sd.scalars)
	sd.scalars = append(sd.scalars, NewScalarGrid(sd.Geometry, initial))
	sd.scalarInitial = append(sd.scalarInitial, initial)
	return
}

func (sd *SystemData) AddVector(initial r3.Vec) (idx int) {
	idx = len(sd.vectors)
	sd.vectors = append(sd.vectors, NewCollocatedVectorGrid(sd.Geometry, initial))
	sd.vectorInitial = append(sd.vectorInitial, initial)
	return
}

func (sd *SystemData) Scalar(idx int) *ScalarGrid { return sd.scalars[idx] }

func (sd *SystemData) Vector(idx int) *CollocatedVectorGrid { return sd.vectors[idx] }

func (sd *SystemData) NumScalars() int { return len(sd.scalars) }

func (sd *SystemData) NumVectors() int { return len(sd.vectors) }
