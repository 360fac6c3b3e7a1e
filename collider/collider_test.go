package collider

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSurfaces(t *testing.T) {
	{ // Test a circle in the z=0 plane
		s := Sphere{Center: r3.Vec{X: 1, Y: 1}, Radius: 0.5}
		assert.InDelta(t, -0.5, s.SignedDistance(r3.Vec{X: 1, Y: 1}), 1e-14)
		assert.InDelta(t, 0.5, s.SignedDistance(r3.Vec{X: 2, Y: 1}), 1e-14)
		assert.InDeltaSlice(t, []float64{0, 1, 0}, vec(s.ClosestNormal(r3.Vec{X: 1, Y: 3})), 1e-14)
	}
	{ // Test a 2D box with an unbounded z axis
		b := Box{Lower: r3.Vec{X: 0, Y: 0}, Upper: r3.Vec{X: 2, Y: 1}}
		assert.InDelta(t, -0.5, b.SignedDistance(r3.Vec{X: 1, Y: 0.5}), 1e-14)
		assert.InDelta(t, 1., b.SignedDistance(r3.Vec{X: 3, Y: 0.5}), 1e-14)
		assert.InDelta(t, math.Sqrt2, b.SignedDistance(r3.Vec{X: 3, Y: 2}), 1e-14)
		assert.InDeltaSlice(t, []float64{1, 0, 0}, vec(b.ClosestNormal(r3.Vec{X: 3, Y: 0.5})), 1e-6)
		walls := Inverted{b}
		assert.InDelta(t, 0.5, walls.SignedDistance(r3.Vec{X: 1, Y: 0.5}), 1e-14)
		assert.InDeltaSlice(t, []float64{-1, 0, 0}, vec(walls.ClosestNormal(r3.Vec{X: 3, Y: 0.5})), 1e-6)
	}
	{ // Test the plane and union
		p := Plane{Normal: r3.Vec{Y: 2}, Point: r3.Vec{Y: 0.25}}
		assert.InDelta(t, -0.25, p.SignedDistance(r3.Vec{X: 7}), 1e-14)
		u := Union{p, Sphere{Center: r3.Vec{Y: 2}, Radius: 0.5}}
		assert.InDelta(t, -0.25, u.SignedDistance(r3.Vec{Y: 2.25}), 1e-14)
		assert.InDeltaSlice(t, []float64{0, 1, 0}, vec(u.ClosestNormal(r3.Vec{Y: 0.5})), 1e-14)
		assert.Equal(t, math.MaxFloat64, Union{}.SignedDistance(r3.Vec{}))
	}
}

func TestRigidBodyCollider(t *testing.T) {
	rb := NewRigidBodyCollider(Sphere{Radius: 1})
	rb.LinearVelocity = r3.Vec{X: 2}
	rb.AngularVelocity = r3.Vec{Z: 1}
	{ // Test velocity of a point rotating about the center
		v := rb.VelocityField().Sample(r3.Vec{Y: 1})
		assert.InDeltaSlice(t, []float64{1, 0, 0}, vec(v), 1e-14)
	}
	{ // Test the surface translates with the body and the callback runs first
		var called float64
		rb.OnUpdate = func(c *RigidBodyCollider, currentTime, dt float64) {
			called = currentTime
		}
		rb.Update(0.5, 0.5)
		assert.Equal(t, 0.5, called)
		assert.InDelta(t, -1., rb.SignedDistanceField().Sample(r3.Vec{X: 1}), 1e-14)
		assert.InDeltaSlice(t, []float64{2, 0, 0}, vec(rb.VelocityAt(r3.Vec{X: 1})), 1e-14)
	}
	{ // Test an empty collider is everywhere outside
		assert.Equal(t, math.MaxFloat64, NewRigidBodyCollider(nil).SignedDistance(r3.Vec{}))
	}
}

func TestColliderSet(t *testing.T) {
	var (
		left  = NewRigidBodyCollider(Sphere{Radius: 0.5})
		right = NewRigidBodyCollider(Sphere{Center: r3.Vec{X: 3}, Radius: 0.5})
	)
	left.LinearVelocity = r3.Vec{X: 1}
	right.LinearVelocity = r3.Vec{Y: -1}
	right.Friction = 0.3
	cs := NewColliderSet(left, right)
	{ // Test the set is the union with the nearest member's velocity
		assert.Equal(t, 0.3, cs.FrictionCoefficient())
		assert.InDelta(t, 0.5, cs.SignedDistanceField().Sample(r3.Vec{X: 1}), 1e-14)
		assert.InDelta(t, -0.5, cs.SignedDistanceField().Sample(r3.Vec{X: 3}), 1e-14)
		assert.InDeltaSlice(t, []float64{1, 0, 0}, vec(cs.VelocityField().Sample(r3.Vec{X: 1})), 1e-14)
		assert.InDeltaSlice(t, []float64{0, -1, 0}, vec(cs.VelocityField().Sample(r3.Vec{X: 2.4})), 1e-14)
	}
	{ // Test every member moves on update and an empty set is outside and at rest
		cs.Update(0, 1)
		assert.InDelta(t, -0.5, cs.SignedDistanceField().Sample(r3.Vec{X: 1}), 1e-14)
		empty := NewColliderSet()
		assert.Equal(t, math.MaxFloat64, empty.SignedDistanceField().Sample(r3.Vec{}))
		assert.Equal(t, r3.Vec{}, empty.VelocityField().Sample(r3.Vec{}))
	}
}

func vec(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }
