package grid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/utils"
)

// ScalarGrid stores one value per cell center
type ScalarGrid struct {
	Geometry
	Data *Array
}

func NewScalarGrid(g Geometry, initial float64) (sg *ScalarGrid) {
	sg = &ScalarGrid{Geometry: g, Data: NewArray(g.Resolution)}
	sg.Data.Fill(initial)
	return
}

func (sg *ScalarGrid) Resize(g Geometry, initial float64) {
	sg.Geometry = g
	sg.Data.Resize(g.Resolution)
	sg.Data.Fill(initial)
}

func (sg *ScalarGrid) At(i, j, k int) float64 { return sg.Data.At(i, j, k) }

func (sg *ScalarGrid) Set(i, j, k int, val float64) { sg.Data.Set(i, j, k, val) }

func (sg *ScalarGrid) DataPosition(i, j, k int) r3.Vec { return sg.CellCenter(i, j, k) }

func (sg *ScalarGrid) Sampler() LinearSampler {
	return LinearSampler{Arr: sg.Data, Spacing: sg.Spacing, Origin: sg.CellOrigin()}
}

func (sg *ScalarGrid) Sample(x r3.Vec) float64 {
	return sg.Sampler().Sample(x)
}

// Gradient is the central difference of the interpolated field
func (sg *ScalarGrid) Gradient(x r3.Vec) (grad r3.Vec) {
	s := sg.Sampler()
	for d := 0; d < sg.Dim; d++ {
		h := utils.Comp(sg.Spacing, d)
		e := r3.Scale(h, utils.Unit(d))
		utils.SetComp(&grad, d, (s.Sample(r3.Add(x, e))-s.Sample(r3.Sub(x, e)))/(2*h))
	}
	return
}

// GradientAt is the central difference at cell (i,j,k) with indices clamped at the borders
func (sg *ScalarGrid) GradientAt(i, j, k int) (grad r3.Vec) {
	return GradientAtIndex(sg.Data, sg.Dim, sg.Spacing, i, j, k)
}

// GradientAtIndex differences arr at (i,j,k), one-sided samples are clamped to the array
func GradientAtIndex(arr *Array, dim int, spacing r3.Vec, i, j, k int) (grad r3.Vec) {
	var (
		ijk  = [3]int{i, j, k}
		size = arr.Size()
	)
	for d := 0; d < dim; d++ {
		lo, hi := ijk, ijk
		lo[d] = max(0, ijk[d]-1)
		hi[d] = min(size[d]-1, ijk[d]+1)
		h := utils.Comp(spacing, d)
		utils.SetComp(&grad, d,
			(arr.At(hi[0], hi[1], hi[2])-arr.At(lo[0], lo[1], lo[2]))/(2*h))
	}
	return
}

func (sg *ScalarGrid) Fill(val float64) { sg.Data.Fill(val) }

// FillFunc evaluates f at every cell center
func (sg *ScalarGrid) FillFunc(f func(x r3.Vec) float64, ep utils.ExecutionPolicy) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	ep.ForEach(sg.Data.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := sg.Data.Coord(idx)
			sg.Data.Data[idx] = f(sg.CellCenter(i, j, k))
		}
	})
}

func (sg *ScalarGrid) Clone() *ScalarGrid {
	return &ScalarGrid{Geometry: sg.Geometry, Data: sg.Data.Clone()}
}

// CopyFrom overwrites sg with o, the resolutions must match
func (sg *ScalarGrid) CopyFrom(o *ScalarGrid) {
	if !sg.SameShape(o.Geometry) {
		panic(fmt.Sprintf("scalar grid shape mismatch: %v vs %v", sg.Resolution, o.Resolution))
	}
	sg.Data.CopyFrom(o.Data)
}
