package collider

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/grid"
)

// Collider is a solid obstacle as seen by the fluid
type Collider interface {
	Update(currentTime, dt float64)
	SignedDistanceField() grid.ScalarField
	VelocityField() grid.VectorField
	FrictionCoefficient() float64
}

// RigidBodyCollider moves its Surface with LinearVelocity and spins it about
// Center with AngularVelocity. In 2D only AngularVelocity.Z is meaningful.
// The surface geometry is translated on Update, rotation only enters the velocity.
type RigidBodyCollider struct {
	Surface         Surface
	Center          r3.Vec
	Translation     r3.Vec
	LinearVelocity  r3.Vec
	AngularVelocity r3.Vec
	Friction        float64
	OnUpdate        func(c *RigidBodyCollider, currentTime, dt float64)
}

func NewRigidBodyCollider(s Surface) (rb *RigidBodyCollider) {
	rb = &RigidBodyCollider{Surface: s}
	return
}

func (rb *RigidBodyCollider) Update(currentTime, dt float64) {
	if rb.OnUpdate != nil {
		rb.OnUpdate(rb, currentTime, dt)
	}
	rb.Translation = r3.Add(rb.Translation, r3.Scale(dt, rb.LinearVelocity))
}

func (rb *RigidBodyCollider) SignedDistance(x r3.Vec) float64 {
	if rb.Surface == nil {
		return math.MaxFloat64
	}
	return rb.Surface.SignedDistance(r3.Sub(x, rb.Translation))
}

func (rb *RigidBodyCollider) VelocityAt(x r3.Vec) r3.Vec {
	r := r3.Sub(x, r3.Add(rb.Center, rb.Translation))
	return r3.Add(rb.LinearVelocity, r3.Cross(rb.AngularVelocity, r))
}

func (rb *RigidBodyCollider) SignedDistanceField() grid.ScalarField {
	return grid.ScalarFunc(rb.SignedDistance)
}

func (rb *RigidBodyCollider) VelocityField() grid.VectorField {
	return grid.VectorFunc(rb.VelocityAt)
}

func (rb *RigidBodyCollider) FrictionCoefficient() float64 { return rb.Friction }

// ColliderSet acts as the union of its members. Velocity comes from the member closest to
// the sample point.
type ColliderSet struct {
	Colliders []Collider
	Friction  float64
}

// NewColliderSet takes the largest member friction
func NewColliderSet(colliders ...Collider) (cs *ColliderSet) {
	cs = &ColliderSet{Colliders: colliders}
	for _, c := range colliders {
		cs.Friction = math.Max(cs.Friction, c.FrictionCoefficient())
	}
	return
}

func (cs *ColliderSet) Update(currentTime, dt float64) {
	for _, c := range cs.Colliders {
		c.Update(currentTime, dt)
	}
}

func (cs *ColliderSet) closest(x r3.Vec) (nearest Collider, dist float64) {
	dist = math.MaxFloat64
	for _, c := range cs.Colliders {
		if d := c.SignedDistanceField().Sample(x); nearest == nil || d < dist {
			nearest, dist = c, d
		}
	}
	return
}

func (cs *ColliderSet) SignedDistanceField() grid.ScalarField {
	return grid.ScalarFunc(func(x r3.Vec) float64 {
		_, dist := cs.closest(x)
		return dist
	})
}

func (cs *ColliderSet) VelocityField() grid.VectorField {
	return grid.VectorFunc(func(x r3.Vec) r3.Vec {
		nearest, _ := cs.closest(x)
		if nearest == nil {
			return r3.Vec{}
		}
		return nearest.VelocityField().Sample(x)
	})
}

func (cs *ColliderSet) FrictionCoefficient() float64 { return cs.Friction }
