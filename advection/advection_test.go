package advection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

func TestSemiLagrangian(t *testing.T) {
	var (
		g    = grid.NewGeometry(2, [3]int{10, 10, 1}, r3.Vec{X: 0.1, Y: 0.1}, r3.Vec{})
		flow = grid.ConstantVectorField{Value: r3.Vec{X: 1, Y: -0.5}}
		sl   = NewSemiLagrangian(utils.Threaded{})
	)
	{ // Test a linear scalar is translated exactly away from the walls
		in := grid.NewScalarGrid(g, 0)
		in.FillFunc(func(x r3.Vec) float64 { return 2*x.X + x.Y }, utils.Serial{})
		out := grid.NewScalarGrid(g, 0)
		sl.Advect(in, flow, 0.25, out, nil)
		for j := 1; j < 7; j++ {
			for i := 3; i < 10; i++ {
				x := g.CellCenter(i, j, 0)
				assert.InDelta(t, 2*(x.X-0.25)+(x.Y+0.125), out.At(i, j, 0), 1e-12)
			}
		}
		sl.Advect(in, flow, 0.25, in, nil)
		assert.InDeltaSlice(t, out.Data.Data, in.Data.Data, 1e-14)
	}
	{ // Test samples inside the boundary keep their value and traces stop at the boundary
		var (
			in   = grid.NewScalarGrid(g, 0)
			out  = grid.NewScalarGrid(g, 0)
			wall = grid.ScalarFunc(func(x r3.Vec) float64 { return x.X - 0.4 })
		)
		in.FillFunc(func(x r3.Vec) float64 { return x.X }, utils.Serial{})
		sl.Advect(in, grid.ConstantVectorField{Value: r3.Vec{X: 1}}, 0.3, out, wall)
		assert.Equal(t, in.At(2, 4, 0), out.At(2, 4, 0))
		assert.InDelta(t, 0.4, out.At(5, 4, 0), 1e-12)
		assert.InDelta(t, 0.75-0.3, out.At(7, 4, 0), 1e-12)
	}
	{ // Test a uniform face centered field is unchanged by its own flow
		in := grid.NewFaceCenteredGrid(g, r3.Vec{X: 1, Y: -0.5})
		out := grid.NewFaceCenteredGrid(g, r3.Vec{})
		sl.AdvectFaceCentered(in, in, 0.5, out, nil)
		for d := 0; d < 2; d++ {
			for _, v := range out.Data[d].Data {
				assert.InDelta(t, utils.Comp(flow.Value, d), v, 1e-14)
			}
		}
		assert.Panics(t, func() {
			sl.AdvectFaceCentered(in, in, 0.5, grid.NewFaceCenteredGrid(grid.NewGeometry(2, [3]int{3, 3, 1},
				r3.Vec{X: 1, Y: 1}, r3.Vec{}), r3.Vec{}), nil)
		})
	}
	{ // Test collocated vectors move like scalars
		in := grid.NewCollocatedVectorGrid(g, r3.Vec{})
		for j := 0; j < 10; j++ {
			for i := 0; i < 10; i++ {
				x := g.CellCenter(i, j, 0)
				in.Set(i, j, 0, r3.Vec{X: x.X, Y: 3})
			}
		}
		out := grid.NewCollocatedVectorGrid(g, r3.Vec{})
		sl.AdvectCollocated(in, flow, 0.25, out, nil)
		assert.InDelta(t, g.CellCenter(5, 5, 0).X-0.25, out.At(5, 5, 0).X, 1e-12)
		assert.InDelta(t, 3., out.At(5, 5, 0).Y, 1e-12)
	}
}
