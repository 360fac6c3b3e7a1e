package grid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/utils"
)

// CollocatedVectorGrid stores all vector components at cell centers
type CollocatedVectorGrid struct {
	Geometry
	Data [3]*Array
}

func NewCollocatedVectorGrid(g Geometry, initial r3.Vec) (cg *CollocatedVectorGrid) {
	cg = &CollocatedVectorGrid{}
	cg.Resize(g, initial)
	return
}

func (cg *CollocatedVectorGrid) Resize(g Geometry, initial r3.Vec) {
	cg.Geometry = g
	for d := 0; d < 3; d++ {
		if d >= g.Dim {
			cg.Data[d] = nil
			continue
		}
		if cg.Data[d] == nil {
			cg.Data[d] = NewArray(g.Resolution)
		} else {
			cg.Data[d].Resize(g.Resolution)
		}
		cg.Data[d].Fill(utils.Comp(initial, d))
	}
}

func (cg *CollocatedVectorGrid) At(i, j, k int) (v r3.Vec) {
	for d := 0; d < cg.Dim; d++ {
		utils.SetComp(&v, d, cg.Data[d].At(i, j, k))
	}
	return
}

func (cg *CollocatedVectorGrid) Set(i, j, k int, v r3.Vec) {
	for d := 0; d < cg.Dim; d++ {
		cg.Data[d].Set(i, j, k, utils.Comp(v, d))
	}
}

// Component exposes one axis as a scalar grid sharing storage with cg
func (cg *CollocatedVectorGrid) Component(axis int) *ScalarGrid {
	return &ScalarGrid{Geometry: cg.Geometry, Data: cg.Data[axis]}
}

func (cg *CollocatedVectorGrid) Sample(x r3.Vec) (v r3.Vec) {
	for d := 0; d < cg.Dim; d++ {
		utils.SetComp(&v, d, cg.Component(d).Sample(x))
	}
	return
}

func (cg *CollocatedVectorGrid) Fill(v r3.Vec) {
	for d := 0; d < cg.Dim; d++ {
		cg.Data[d].Fill(utils.Comp(v, d))
	}
}

func (cg *CollocatedVectorGrid) Clone() (c *CollocatedVectorGrid) {
	c = &CollocatedVectorGrid{Geometry: cg.Geometry}
	for d := 0; d < cg.Dim; d++ {
		c.Data[d] = cg.Data[d].Clone()
	}
	return
}

func (cg *CollocatedVectorGrid) CopyFrom(o *CollocatedVectorGrid) {
	if !cg.SameShape(o.Geometry) {
		panic(fmt.Sprintf("collocated grid shape mismatch: %v vs %v", cg.Resolution, o.Resolution))
	}
	for d := 0; d < cg.Dim; d++ {
		cg.Data[d].CopyFrom(o.Data[d])
	}
}
