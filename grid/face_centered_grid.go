package grid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/utils"
)

// FaceCenteredGrid is a MAC grid: component d lives on the centers of the
// faces perpendicular to axis d, so Data[d] has one extra sample along d.
type FaceCenteredGrid struct {
	Geometry
	Data [3]*Array
}

func NewFaceCenteredGrid(g Geometry, initial r3.Vec) (fg *FaceCenteredGrid) {
	fg = &FaceCenteredGrid{}
	fg.Resize(g, initial)
	return
}

func (fg *FaceCenteredGrid) Resize(g Geometry, initial r3.Vec) {
	fg.Geometry = g
	for d := 0; d < 3; d++ {
		if d >= g.Dim {
			fg.Data[d] = nil
			continue
		}
		if fg.Data[d] == nil {
			fg.Data[d] = NewArray(fg.FaceSize(d))
		} else {
			fg.Data[d].Resize(fg.FaceSize(d))
		}
		fg.Data[d].Fill(utils.Comp(initial, d))
	}
}

func (fg *FaceCenteredGrid) FaceSize(axis int) (size [3]int) {
	size = fg.Resolution
	size[axis]++
	return
}

// FaceOrigin is the position of face (0,0,0) along axis
func (fg *FaceCenteredGrid) FaceOrigin(axis int) (o r3.Vec) {
	o = fg.CellOrigin()
	utils.SetComp(&o, axis, utils.Comp(fg.Origin, axis))
	return
}

func (fg *FaceCenteredGrid) FacePosition(axis, i, j, k int) r3.Vec {
	return r3.Add(fg.FaceOrigin(axis), utils.Hadamard(fg.Spacing,
		r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}))
}

func (fg *FaceCenteredGrid) Sampler(axis int) LinearSampler {
	return LinearSampler{Arr: fg.Data[axis], Spacing: fg.Spacing, Origin: fg.FaceOrigin(axis)}
}

func (fg *FaceCenteredGrid) Sample(x r3.Vec) (v r3.Vec) {
	for d := 0; d < fg.Dim; d++ {
		utils.SetComp(&v, d, fg.Sampler(d).Sample(x))
	}
	return
}

func (fg *FaceCenteredGrid) ValueAtCellCenter(i, j, k int) (v r3.Vec) {
	for d := 0; d < fg.Dim; d++ {
		hi := [3]int{i, j, k}
		hi[d]++
		utils.SetComp(&v, d, 0.5*(fg.Data[d].At(i, j, k)+fg.Data[d].At(hi[0], hi[1], hi[2])))
	}
	return
}

func (fg *FaceCenteredGrid) DivergenceAtCellCenter(i, j, k int) (div float64) {
	for d := 0; d < fg.Dim; d++ {
		hi := [3]int{i, j, k}
		hi[d]++
		div += (fg.Data[d].At(hi[0], hi[1], hi[2]) - fg.Data[d].At(i, j, k)) / utils.Comp(fg.Spacing, d)
	}
	return
}

func (fg *FaceCenteredGrid) Fill(v r3.Vec) {
	for d := 0; d < fg.Dim; d++ {
		fg.Data[d].Fill(utils.Comp(v, d))
	}
}

// FillFunc evaluates f at every face center, keeping the component normal to the face
func (fg *FaceCenteredGrid) FillFunc(f func(x r3.Vec) r3.Vec, ep utils.ExecutionPolicy) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	for d := 0; d < fg.Dim; d++ {
		arr := fg.Data[d]
		ep.ForEach(arr.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := arr.Coord(idx)
				arr.Data[idx] = utils.Comp(f(fg.FacePosition(d, i, j, k)), d)
			}
		})
	}
}

func (fg *FaceCenteredGrid) Clone() (c *FaceCenteredGrid) {
	c = &FaceCenteredGrid{Geometry: fg.Geometry}
	for d := 0; d < fg.Dim; d++ {
		c.Data[d] = fg.Data[d].Clone()
	}
	return
}

func (fg *FaceCenteredGrid) CopyFrom(o *FaceCenteredGrid) {
	if !fg.SameShape(o.Geometry) {
		panic(fmt.Sprintf("face centered grid shape mismatch: %v vs %v", fg.Resolution, o.Resolution))
	}
	for d := 0; d < fg.Dim; d++ {
		fg.Data[d].CopyFrom(o.Data[d])
	}
}

// MaxAbs returns the largest face value magnitude per axis
func (fg *FaceCenteredGrid) MaxAbs() (m r3.Vec) {
	for d := 0; d < fg.Dim; d++ {
		utils.SetComp(&m, d, fg.Data[d].AbsMax())
	}
	return
}
