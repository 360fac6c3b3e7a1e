package pressure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/collider"
	"github.com/notargets/gridfluid/fdm"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/types"
	"github.com/notargets/gridfluid/utils"
)

func newGeometry2D(n int, h float64) grid.Geometry {
	return grid.NewGeometry(2, [3]int{n, n, 1}, r3.Vec{X: h, Y: h}, r3.Vec{})
}

func TestFaceWeights(t *testing.T) {
	h := r3.Vec{X: 1, Y: 1, Z: 1}
	{ // Test open and fully solid faces
		for dim := 2; dim <= 3; dim++ {
			for axis := 0; axis < dim; axis++ {
				assert.Equal(t, 1., faceWeight(grid.ConstantScalarField{Value: 1}, dim, axis, h, r3.Vec{}))
				assert.Equal(t, 1., faceWeight(grid.ConstantScalarField{Value: 0}, dim, axis, h, r3.Vec{}))
				assert.Equal(t, 0., faceWeight(grid.ConstantScalarField{Value: -1}, dim, axis, h, r3.Vec{}))
			}
		}
	}
	{ // Test partially covered faces stay in range and close monotonically
		for dim := 2; dim <= 3; dim++ {
			last := 1.
			for c := -1.; c <= 1.; c += 0.01 {
				sdf := grid.ScalarFunc(func(x r3.Vec) float64 { return x.Y + 0.3*x.Z - c })
				w := faceWeight(sdf, dim, 0, h, r3.Vec{})
				assert.True(t, w == 0 || (w >= minWeight && w <= 1), "weight %g", w)
				assert.True(t, w <= last, "weight grew from %g to %g", last, w)
				last = w
			}
			assert.Equal(t, 0., last)
		}
		assert.InDelta(t, 0.75, openAreaWeight(0.25), 1e-15)
		assert.Equal(t, minWeight, openAreaWeight(0.99999))
		assert.Equal(t, 0., openAreaWeight(1.2))
	}
}

func maxDivergence(vel *grid.FaceCenteredGrid, fluid func(i, j, k int) bool) (m float64) {
	for k := 0; k < vel.Resolution[2]; k++ {
		for j := 0; j < vel.Resolution[1]; j++ {
			for i := 0; i < vel.Resolution[0]; i++ {
				if fluid(i, j, k) {
					m = math.Max(m, math.Abs(vel.DivergenceAtCellCenter(i, j, k)))
				}
			}
		}
	}
	return
}

func allFluid(int, int, int) bool { return true }

func TestFractionalProjector(t *testing.T) {
	{ // Test inflow on the left and matching outflow on the right of an all fluid box
		var (
			g     = newGeometry2D(4, 0.25)
			input = grid.NewFaceCenteredGrid(g, r3.Vec{})
			fp    = NewFractionalProjector(fdm.NewCgSolver(2000, 1e-8, utils.Serial{}), utils.Threaded{}, nil)
		)
		for j := 0; j < 4; j++ {
			input.Data[0].Set(0, j, 0, 1)
			input.Data[0].Set(4, j, 0, 1)
		}
		require.InDelta(t, 4., maxDivergence(input, allFluid), 1e-12)
		output := grid.NewFaceCenteredGrid(g, r3.Vec{})
		fp.Solve(input, 0.1, output, nil, nil, nil)
		assert.True(t, fp.LastSolveStats().Converged)
		assert.True(t, maxDivergence(output, allFluid) <= 1e-5)
		for j := 0; j < 4; j++ {
			assert.Equal(t, 1., output.Data[0].At(0, j, 0))
			assert.Equal(t, 1., output.Data[0].At(4, j, 0))
			assert.InDelta(t, 1., output.Data[0].At(2, j, 0), 1e-5)
		}
		assert.Equal(t, 0., input.Data[0].At(2, 0, 0))
		assert.Equal(t, g.Resolution, fp.Pressure().Resolution)
		{ // Test solving in place gives the same field
			fp.Solve(input, 0.1, input, nil, nil, nil)
			for d := 0; d < 2; d++ {
				assert.InDeltaSlice(t, output.Data[d].Data, input.Data[d].Data, 1e-12)
			}
		}
		assert.Panics(t, func() {
			fp.Solve(input, 0.1, grid.NewFaceCenteredGrid(newGeometry2D(5, 0.2), r3.Vec{}), nil, nil, nil)
		})
	}
	{ // Test a fully blocked face is zero regardless of its input value
		var (
			g        = newGeometry2D(6, 1)
			input    = grid.NewFaceCenteredGrid(g, r3.Vec{X: 1})
			output   = grid.NewFaceCenteredGrid(g, r3.Vec{})
			fp       = NewFractionalProjector(fdm.NewCgSolver(2000, 1e-8, utils.Threaded{}), utils.Serial{}, nil)
			obstacle = collider.Sphere{Center: r3.Vec{X: 3, Y: 2.5}, Radius: 0.6}
		)
		input.Data[0].Set(3, 2, 0, 17)
		fp.Solve(input, 0.1, output, grid.ScalarFunc(obstacle.SignedDistance), nil, nil)
		assert.True(t, fp.LastSolveStats().Converged)
		assert.Equal(t, 0., fp.levels[0].weights[0].At(3, 2, 0))
		assert.Equal(t, 1., fp.levels[0].weights[0].At(1, 2, 0))
		partial := fp.levels[0].weights[1].At(2, 2, 0)
		assert.True(t, partial > minWeight && partial < 1, "weight %g", partial)
		assert.Equal(t, 0., output.Data[0].At(3, 2, 0))
		assert.True(t, math.Abs(output.DivergenceAtCellCenter(0, 0, 0)) <= 1e-5)
		assert.True(t, math.Abs(output.DivergenceAtCellCenter(5, 5, 0)) <= 1e-5)
		{ // Test a moving solid drags its blocked face along
			fp.Solve(input, 0.1, output, grid.ScalarFunc(obstacle.SignedDistance),
				grid.ConstantVectorField{Value: r3.Vec{X: 0.5}}, nil)
			assert.Equal(t, 0.5, output.Data[0].At(3, 2, 0))
		}
	}
}

func TestFractionalMgProjector(t *testing.T) {
	var (
		g        = newGeometry2D(8, 0.125)
		input    = grid.NewFaceCenteredGrid(g, r3.Vec{})
		fluidSdf = grid.ScalarFunc(func(x r3.Vec) float64 { return x.Y - 0.7 })
		fluid    = func(i, j, k int) bool { return fluidSdf(g.CellCenter(i, j, k)) < 0 }
		params   = fdm.DefaultMgParameters()
	)
	input.FillFunc(func(x r3.Vec) r3.Vec {
		return r3.Vec{X: 1 + x.X*x.Y, Y: math.Sin(3 * x.X)}
	}, utils.Serial{})
	params.MaxNumberOfLevels = 2
	params.MaxCycles = 200
	var (
		mgOut  = grid.NewFaceCenteredGrid(g, r3.Vec{})
		cgOut  = grid.NewFaceCenteredGrid(g, r3.Vec{})
		mgProj = NewFractionalMgProjector(fdm.NewMultigridSolver(params, utils.Threaded{}), utils.Threaded{}, nil)
		cgProj = NewFractionalProjector(fdm.NewCgSolver(2000, 1e-10, utils.Threaded{}), utils.Threaded{}, nil)
	)
	mgProj.Solve(input, 0.1, mgOut, nil, nil, fluidSdf)
	cgProj.Solve(input, 0.1, cgOut, nil, nil, fluidSdf)
	require.True(t, mgProj.LastSolveStats().Converged)
	require.True(t, cgProj.LastSolveStats().Converged)
	assert.Len(t, mgProj.levels, 2)
	assert.Equal(t, [3]int{4, 4, 1}, mgProj.levels[1].fluidSdf.Size())
	assert.True(t, maxDivergence(mgOut, fluid) <= 1e-5)
	assert.True(t, maxDivergence(cgOut, fluid) <= 1e-5)
	assert.InDeltaSlice(t, cgProj.Pressure().Data.Data, mgProj.Pressure().Data.Data, 1e-6)
	for idx, p := range mgProj.Pressure().Data.Data {
		i, j, k := mgProj.Pressure().Data.Coord(idx)
		if !fluid(i, j, k) {
			assert.InDelta(t, 0., p, 1e-8)
		}
	}
}

func TestBoundaryConditionSolver(t *testing.T) {
	g := newGeometry2D(6, 1)
	{ // Test friction projection
		assert.InDeltaSlice(t, []float64{0.5, 0, 0},
			vec(projectAndApplyFriction(r3.Vec{X: 1, Y: -2}, r3.Vec{Y: 1}, 0.25)), 1e-15)
		assert.InDeltaSlice(t, []float64{0, 0, 0},
			vec(projectAndApplyFriction(r3.Vec{X: 1, Y: -2}, r3.Vec{Y: 1}, 1)), 1e-15)
		assert.InDeltaSlice(t, []float64{1, 0, 0},
			vec(projectAndApplyFriction(r3.Vec{X: 1, Y: 2}, r3.Vec{Y: 1}, 1)), 1e-15)
	}
	{ // Test closed domain walls with no collider
		var (
			bcs = NewFractionalBoundaryConditionSolver(utils.Threaded{})
			vel = grid.NewFaceCenteredGrid(g, r3.Vec{X: 1, Y: 1})
		)
		assert.Equal(t, types.DirectionAll, bcs.ClosedDomainBoundaryFlag())
		bcs.UpdateCollider(nil, g)
		bcs.ConstrainVelocity(vel, 3)
		for j := 0; j < 6; j++ {
			assert.Equal(t, 0., vel.Data[0].At(0, j, 0))
			assert.Equal(t, 0., vel.Data[0].At(6, j, 0))
			assert.Equal(t, 1., vel.Data[0].At(3, j, 0))
			assert.Equal(t, 0., vel.Data[1].At(j, 0, 0))
			assert.Equal(t, 0., vel.Data[1].At(j, 6, 0))
			assert.Equal(t, 1., vel.Data[1].At(j, 3, 0))
		}
		assert.Equal(t, math.MaxFloat64, bcs.ColliderSdf().Sample(r3.Vec{X: 2}))
	}
	{ // Test velocity into a resting floor is removed
		var (
			bcs   = NewFractionalBoundaryConditionSolver(utils.Serial{})
			vel   = grid.NewFaceCenteredGrid(g, r3.Vec{Y: -1})
			floor = collider.NewRigidBodyCollider(collider.Plane{Normal: r3.Vec{Y: 1}, Point: r3.Vec{Y: 1.2}})
		)
		bcs.SetClosedDomainBoundaryFlag(types.DirectionNone)
		bcs.UpdateCollider(floor, g)
		bcs.ConstrainVelocity(vel, 2)
		for i := 0; i < 6; i++ {
			assert.InDelta(t, 0., vel.Data[1].At(i, 0, 0), 1e-14)
			assert.InDelta(t, 0., vel.Data[1].At(i, 1, 0), 1e-14)
			for j := 2; j <= 6; j++ {
				assert.Equal(t, -1., vel.Data[1].At(i, j, 0))
			}
		}
		for _, u := range vel.Data[0].Data {
			assert.InDelta(t, 0., u, 1e-14)
		}
		assert.InDelta(t, -0.7, bcs.ColliderSdf().Sample(r3.Vec{X: 2.5, Y: 0.5}), 1e-14)
	}
}

func vec(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }
