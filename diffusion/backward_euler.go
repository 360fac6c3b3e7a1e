package diffusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/fdm"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/utils"
)

// Solver diffuses grid quantities over dt. A nil boundarySdf means no solid, a nil
// fluidSdf fluid everywhere.
type Solver interface {
	Solve(source *grid.ScalarGrid, diffusionCoefficient, dt float64, dest *grid.ScalarGrid,
		boundarySdf, fluidSdf grid.ScalarField)
	SolveCollocated(source *grid.CollocatedVectorGrid, diffusionCoefficient, dt float64,
		dest *grid.CollocatedVectorGrid, boundarySdf, fluidSdf grid.ScalarField)
	SolveFaceCentered(source *grid.FaceCenteredGrid, diffusionCoefficient, dt float64,
		dest *grid.FaceCenteredGrid, boundarySdf, fluidSdf grid.ScalarField)
}

type BoundaryType uint8

const (
	// Neumann leaves no flux through the solid and the domain walls
	Neumann BoundaryType = iota
	// Dirichlet holds solid samples at their current value
	Dirichlet
)

type marker uint8

const (
	fluidMarker marker = iota
	airMarker
	boundaryMarker
)

// BackwardEuler solves (I - dt·k·∇²) x = f implicitly for every fluid sample, one
// system per component. Air and solid samples keep their value.
type BackwardEuler struct {
	BoundaryType BoundaryType
	Policy       utils.ExecutionPolicy
	solver       fdm.Solver
	system       fdm.LinearSystem
	markers      []marker
}

// NewBackwardEuler uses a conjugate gradient solver when solver is nil
func NewBackwardEuler(boundaryType BoundaryType, solver fdm.Solver, ep utils.ExecutionPolicy) (be *BackwardEuler) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	if solver == nil {
		solver = fdm.NewCgSolver(200, 1e-10, ep)
	}
	be = &BackwardEuler{BoundaryType: boundaryType, Policy: ep, solver: solver}
	return
}

func (be *BackwardEuler) Solve(source *grid.ScalarGrid, diffusionCoefficient, dt float64, dest *grid.ScalarGrid,
	boundarySdf, fluidSdf grid.ScalarField) {
	if !source.SameShape(dest.Geometry) {
		panic(fmt.Sprintf("diffusion shape mismatch: %v vs %v", source.Resolution, dest.Resolution))
	}
	be.solveArray(source.Geometry, source.Data, source.DataPosition, diffusionCoefficient, dt, dest.Data,
		boundarySdf, fluidSdf)
}

func (be *BackwardEuler) SolveCollocated(source *grid.CollocatedVectorGrid, diffusionCoefficient, dt float64,
	dest *grid.CollocatedVectorGrid, boundarySdf, fluidSdf grid.ScalarField) {
	if !source.SameShape(dest.Geometry) {
		panic(fmt.Sprintf("diffusion shape mismatch: %v vs %v", source.Resolution, dest.Resolution))
	}
	for d := 0; d < source.Dim; d++ {
		src := source.Component(d)
		be.solveArray(source.Geometry, src.Data, src.DataPosition, diffusionCoefficient, dt,
			dest.Component(d).Data, boundarySdf, fluidSdf)
	}
}

func (be *BackwardEuler) SolveFaceCentered(source *grid.FaceCenteredGrid, diffusionCoefficient, dt float64,
	dest *grid.FaceCenteredGrid, boundarySdf, fluidSdf grid.ScalarField) {
	if !source.SameShape(dest.Geometry) {
		panic(fmt.Sprintf("diffusion shape mismatch: %v vs %v", source.Resolution, dest.Resolution))
	}
	for d := 0; d < source.Dim; d++ {
		axis := d
		be.solveArray(source.Geometry, source.Data[d],
			func(i, j, k int) r3.Vec { return source.FacePosition(axis, i, j, k) },
			diffusionCoefficient, dt, dest.Data[d], boundarySdf, fluidSdf)
	}
}

func (be *BackwardEuler) solveArray(g grid.Geometry, f *grid.Array, pos func(i, j, k int) r3.Vec,
	diffusionCoefficient, dt float64, out *grid.Array, boundarySdf, fluidSdf grid.ScalarField) {
	if boundarySdf == nil {
		boundarySdf = grid.ConstantScalarField{Value: math.MaxFloat64}
	}
	if fluidSdf == nil {
		fluidSdf = grid.ConstantScalarField{Value: -math.MaxFloat64}
	}
	var (
		c    r3.Vec
		size = f.Size()
	)
	for d := 0; d < g.Dim; d++ {
		h := utils.Comp(g.Spacing, d)
		utils.SetComp(&c, d, dt*diffusionCoefficient/(h*h))
	}
	be.buildMarkers(f, pos, boundarySdf, fluidSdf)
	be.system.Resize(g.Dim, size)
	var (
		A           = be.system.A
		x, b        = be.system.X, be.system.B
		isDirichlet = be.BoundaryType == Dirichlet
	)
	be.Policy.ForEach(f.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			row := fdm.MatrixRow{Center: 1}
			b.Data[idx], x.Data[idx] = f.Data[idx], f.Data[idx]
			if be.markers[idx] != fluidMarker {
				A.Rows[idx] = row
				continue
			}
			i, j, k := f.Coord(idx)
			ijk := [3]int{i, j, k}
			for d := 0; d < g.Dim; d++ {
				cd := utils.Comp(c, d)
				for _, step := range [2]int{-1, 1} {
					nb := ijk
					nb[d] += step
					if nb[d] < 0 || nb[d] >= size[d] {
						continue
					}
					nIdx := f.Index(nb[0], nb[1], nb[2])
					switch m := be.markers[nIdx]; {
					case m == fluidMarker:
						row.Center += cd
						if step > 0 {
							row.Off[d] -= cd
						}
					case isDirichlet && m == boundaryMarker:
						row.Center += cd
						b.Data[idx] += cd * f.Data[nIdx]
					}
				}
			}
			A.Rows[idx] = row
		}
	})
	be.solver.Solve(&be.system)
	out.CopyFrom(x)
}

func (be *BackwardEuler) buildMarkers(f *grid.Array, pos func(i, j, k int) r3.Vec,
	boundarySdf, fluidSdf grid.ScalarField) {
	if len(be.markers) != f.Len() {
		be.markers = make([]marker, f.Len())
	}
	be.Policy.ForEach(f.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := f.Coord(idx)
			x := pos(i, j, k)
			switch {
			case levelset.IsInside(boundarySdf.Sample(x)):
				be.markers[idx] = boundaryMarker
			case levelset.IsInside(fluidSdf.Sample(x)):
				be.markers[idx] = fluidMarker
			default:
				be.markers[idx] = airMarker
			}
		}
	})
}
