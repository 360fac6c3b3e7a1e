package emitter

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/collider"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/utils"
)

// Emitter injects fluid quantities at the start of a substep
type Emitter interface {
	Update(currentTime, dt float64)
}

// ScalarMapper returns the new value of a sample at x given the source distance there
type ScalarMapper func(sdf float64, x r3.Vec, old float64) float64

type VectorMapper func(sdf float64, x r3.Vec, old r3.Vec) r3.Vec

type scalarTarget struct {
	grid   *grid.ScalarGrid
	mapper ScalarMapper
}

type vectorTarget struct {
	collocated   *grid.CollocatedVectorGrid
	faceCentered *grid.FaceCenteredGrid
	mapper       VectorMapper
}

// VolumeGridEmitter writes into its target grids wherever the Source region reaches,
// once when IsOneShot is set, otherwise on every update.
type VolumeGridEmitter struct {
	Source    collider.Surface
	IsOneShot bool
	Enabled   bool
	Policy    utils.ExecutionPolicy
	scalars   []scalarTarget
	vectors   []vectorTarget
	emitted   bool
}

func NewVolumeGridEmitter(source collider.Surface, isOneShot bool, ep utils.ExecutionPolicy) (ve *VolumeGridEmitter) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	ve = &VolumeGridEmitter{Source: source, IsOneShot: isOneShot, Enabled: true, Policy: ep}
	return
}

// AddSignedDistanceTarget unions the source into a level set
func (ve *VolumeGridEmitter) AddSignedDistanceTarget(sg *grid.ScalarGrid) {
	ve.AddScalarTarget(sg, func(sdf float64, _ r3.Vec, old float64) float64 {
		return math.Min(old, sdf)
	})
}

// AddStepFunctionTarget raises sg towards maxValue inside the source with a one cell smooth edge
func (ve *VolumeGridEmitter) AddStepFunctionTarget(sg *grid.ScalarGrid, minValue, maxValue float64) {
	width := sg.MinSpacing()
	ve.AddScalarTarget(sg, func(sdf float64, _ r3.Vec, old float64) float64 {
		step := 1 - levelset.SmearedHeaviside(sdf/width)
		return math.Max(old, (maxValue-minValue)*step+minValue)
	})
}

func (ve *VolumeGridEmitter) AddScalarTarget(sg *grid.ScalarGrid, mapper ScalarMapper) {
	ve.scalars = append(ve.scalars, scalarTarget{grid: sg, mapper: mapper})
}

// AddCollocatedTarget maps vectors inside the source only
func (ve *VolumeGridEmitter) AddCollocatedTarget(cg *grid.CollocatedVectorGrid, mapper VectorMapper) {
	ve.vectors = append(ve.vectors, vectorTarget{collocated: cg, mapper: mapper})
}

// AddFaceCenteredTarget maps every face, the mapper sees the interpolated velocity there
func (ve *VolumeGridEmitter) AddFaceCenteredTarget(fg *grid.FaceCenteredGrid, mapper VectorMapper) {
	ve.vectors = append(ve.vectors, vectorTarget{faceCentered: fg, mapper: mapper})
}

func (ve *VolumeGridEmitter) HasEmitted() bool { return ve.emitted }

func (ve *VolumeGridEmitter) Update(currentTime, dt float64) {
	if !ve.Enabled {
		return
	}
	ve.emit()
	if ve.IsOneShot {
		ve.Enabled = false
	}
	ve.emitted = true
}

func (ve *VolumeGridEmitter) emit() {
	if ve.Source == nil {
		return
	}
	for _, target := range ve.scalars {
		var (
			sg     = target.grid
			mapper = target.mapper
		)
		ve.Policy.ForEach(sg.Data.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := sg.Data.Coord(idx)
				x := sg.DataPosition(i, j, k)
				sg.Data.Data[idx] = mapper(ve.Source.SignedDistance(x), x, sg.Data.Data[idx])
			}
		})
	}
	for _, target := range ve.vectors {
		mapper := target.mapper
		if cg := target.collocated; cg != nil {
			comp := cg.Component(0)
			ve.Policy.ForEach(comp.Data.Len(), func(lo, hi int) {
				for idx := lo; idx < hi; idx++ {
					i, j, k := comp.Data.Coord(idx)
					x := comp.DataPosition(i, j, k)
					if sdf := ve.Source.SignedDistance(x); levelset.IsInside(sdf) {
						cg.Set(i, j, k, mapper(sdf, x, cg.At(i, j, k)))
					}
				}
			})
			continue
		}
		fg := target.faceCentered
		for d := 0; d < fg.Dim; d++ {
			var (
				arr  = fg.Data[d]
				next = grid.NewArray(arr.Size())
			)
			ve.Policy.ForEach(arr.Len(), func(lo, hi int) {
				for idx := lo; idx < hi; idx++ {
					i, j, k := arr.Coord(idx)
					x := fg.FacePosition(d, i, j, k)
					next.Data[idx] = utils.Comp(mapper(ve.Source.SignedDistance(x), x, fg.Sample(x)), d)
				}
			})
			arr.CopyFrom(next)
		}
	}
}

// Set updates every emitter it holds, in order
type Set []Emitter

func (s Set) Update(currentTime, dt float64) {
	for _, e := range s {
		e.Update(currentTime, dt)
	}
}
