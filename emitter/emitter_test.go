package emitter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/collider"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

func TestVolumeGridEmitter(t *testing.T) {
	var (
		g      = grid.NewGeometry(2, [3]int{8, 8, 1}, r3.Vec{X: 0.125, Y: 0.125}, r3.Vec{})
		source = collider.Sphere{Center: r3.Vec{X: 0.5, Y: 0.5}, Radius: 0.35}
	)
	{ // Test a one shot emission into a level set and a density field
		var (
			sdf     = grid.NewScalarGrid(g, math.MaxFloat64)
			density = grid.NewScalarGrid(g, 0)
			ve      = NewVolumeGridEmitter(source, true, utils.Threaded{})
		)
		ve.AddSignedDistanceTarget(sdf)
		ve.AddStepFunctionTarget(density, 0, 1)
		assert.False(t, ve.HasEmitted())
		ve.Update(0, 0.1)
		assert.True(t, ve.HasEmitted())
		assert.False(t, ve.Enabled)
		x := g.CellCenter(4, 4, 0)
		assert.InDelta(t, source.SignedDistance(x), sdf.At(4, 4, 0), 1e-14)
		assert.Equal(t, 1., density.At(4, 4, 0))
		assert.Equal(t, 0., density.At(0, 0, 0))
		sdf.Fill(5)
		ve.Update(0.1, 0.1)
		assert.Equal(t, 5., sdf.At(4, 4, 0))
	}
	{ // Test continuous emission of velocity
		var (
			vel  = grid.NewFaceCenteredGrid(g, r3.Vec{})
			cv   = grid.NewCollocatedVectorGrid(g, r3.Vec{X: -1})
			ve   = NewVolumeGridEmitter(source, false, utils.Serial{})
			push = func(sdf float64, _ r3.Vec, old r3.Vec) r3.Vec {
				if sdf < 0 {
					return r3.Vec{Y: 2}
				}
				return old
			}
		)
		ve.AddFaceCenteredTarget(vel, push)
		ve.AddCollocatedTarget(cv, push)
		ve.Update(0, 0.1)
		ve.Update(0.1, 0.1)
		assert.True(t, ve.Enabled)
		assert.Equal(t, 2., vel.Data[1].At(4, 4, 0))
		assert.Equal(t, 0., vel.Data[1].At(0, 0, 0))
		assert.Equal(t, r3.Vec{Y: 2}, cv.At(4, 4, 0))
		assert.Equal(t, r3.Vec{X: -1}, cv.At(0, 0, 0))
	}
	{ // Test a set updates each of its emitters
		var (
			a = NewVolumeGridEmitter(source, true, nil)
			b = NewVolumeGridEmitter(source, false, nil)
		)
		Set{a, b}.Update(0, 0.1)
		assert.True(t, a.HasEmitted())
		assert.True(t, b.HasEmitted())
		assert.True(t, b.Enabled)
	}
}
