package advection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

// Solver transports grid quantities through a flow field over dt. Samples inside
// the boundary keep their input value.
type Solver interface {
	Advect(input *grid.ScalarGrid, flow grid.VectorField, dt float64, output *grid.ScalarGrid,
		boundarySdf grid.ScalarField)
	AdvectCollocated(input *grid.CollocatedVectorGrid, flow grid.VectorField, dt float64,
		output *grid.CollocatedVectorGrid, boundarySdf grid.ScalarField)
	AdvectFaceCentered(input *grid.FaceCenteredGrid, flow grid.VectorField, dt float64,
		output *grid.FaceCenteredGrid, boundarySdf grid.ScalarField)
}

// SemiLagrangian back traces every sample with the midpoint rule and linearly
// interpolates the input at the departure point
type SemiLagrangian struct {
	Policy utils.ExecutionPolicy
}

func NewSemiLagrangian(ep utils.ExecutionPolicy) (sl *SemiLagrangian) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	sl = &SemiLagrangian{Policy: ep}
	return
}

func outsideAll(boundarySdf grid.ScalarField) grid.ScalarField {
	if boundarySdf == nil {
		return grid.ConstantScalarField{Value: math.MaxFloat64}
	}
	return boundarySdf
}

// advectArray back traces every sample of out, positioned by pos, and samples src there
func (sl *SemiLagrangian) advectArray(out *grid.Array, pos func(i, j, k int) r3.Vec, src func(r3.Vec) float64,
	flow grid.VectorField, dt, h float64, boundarySdf grid.ScalarField) {
	sl.Policy.ForEach(out.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := out.Coord(idx)
			x := pos(i, j, k)
			if boundarySdf.Sample(x) > 0 {
				out.Data[idx] = src(backTrace(flow, dt, h, x, boundarySdf))
			}
		}
	})
}

func (sl *SemiLagrangian) Advect(input *grid.ScalarGrid, flow grid.VectorField, dt float64, output *grid.ScalarGrid,
	boundarySdf grid.ScalarField) {
	if output != input {
		output.CopyFrom(input)
	}
	sampler := input.Clone().Sampler()
	sl.advectArray(output.Data, output.DataPosition, sampler.Sample,
		flow, dt, output.MinSpacing(), outsideAll(boundarySdf))
}

func (sl *SemiLagrangian) AdvectCollocated(input *grid.CollocatedVectorGrid, flow grid.VectorField, dt float64,
	output *grid.CollocatedVectorGrid, boundarySdf grid.ScalarField) {
	if output != input {
		output.CopyFrom(input)
	}
	src := input.Clone()
	for d := 0; d < input.Dim; d++ {
		comp := output.Component(d)
		sl.advectArray(comp.Data, comp.DataPosition, src.Component(d).Sampler().Sample,
			flow, dt, output.MinSpacing(), outsideAll(boundarySdf))
	}
}

// AdvectFaceCentered moves each face component with the velocity sampled at that face
func (sl *SemiLagrangian) AdvectFaceCentered(input *grid.FaceCenteredGrid, flow grid.VectorField, dt float64,
	output *grid.FaceCenteredGrid, boundarySdf grid.ScalarField) {
	if !input.SameShape(output.Geometry) {
		panic(fmt.Sprintf("advection shape mismatch: %v vs %v", input.Resolution, output.Resolution))
	}
	src := input.Clone()
	if output != input {
		output.CopyFrom(input)
	}
	for d := 0; d < input.Dim; d++ {
		axis := d
		sl.advectArray(output.Data[d],
			func(i, j, k int) r3.Vec { return output.FacePosition(axis, i, j, k) },
			src.Sampler(axis).Sample, flow, dt, output.MinSpacing(), outsideAll(boundarySdf))
	}
}

// backTrace walks from start back along flow for dt in substeps of at most one cell,
// stopping at the crossing when a substep enters or leaves the boundary
func backTrace(flow grid.VectorField, dt, h float64, start r3.Vec, boundarySdf grid.ScalarField) (pt1 r3.Vec) {
	var (
		remaining = dt
		pt0       = start
	)
	pt1 = start
	for remaining > math.SmallestNonzeroFloat64 {
		var (
			vel0     = flow.Sample(pt0)
			substeps = math.Max(math.Ceil(r3.Norm(vel0)*remaining/h), 1)
			step     = remaining / substeps
			midVel   = flow.Sample(r3.Sub(pt0, r3.Scale(0.5*step, vel0)))
		)
		pt1 = r3.Sub(pt0, r3.Scale(step, midVel))
		phi0, phi1 := boundarySdf.Sample(pt0), boundarySdf.Sample(pt1)
		if phi0*phi1 < 0 {
			w := math.Abs(phi1) / (math.Abs(phi0) + math.Abs(phi1))
			pt1 = r3.Add(r3.Scale(w, pt0), r3.Scale(1-w, pt1))
			break
		}
		remaining -= step
		pt0 = pt1
	}
	return
}
