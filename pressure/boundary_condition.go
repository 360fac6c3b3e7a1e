package pressure

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/collider"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/types"
	"github.com/notargets/gridfluid/utils"
)

// BoundaryConditionSolver keeps a velocity field consistent with the collider and the domain walls
type BoundaryConditionSolver interface {
	UpdateCollider(c collider.Collider, g grid.Geometry)
	ConstrainVelocity(velocity *grid.FaceCenteredGrid, extrapolationDepth int)
	ColliderSdf() grid.ScalarField
	ColliderVelocityField() grid.VectorField
	ClosedDomainBoundaryFlag() types.DirectionFlag
	SetClosedDomainBoundaryFlag(flag types.DirectionFlag)
}

// FractionalBoundaryConditionSolver caches the collider distance on the cell grid. Faces fully
// inside the solid take the collider velocity, fluid values are extended into the solid and their
// normal motion relative to the collider is removed, subject to friction.
type FractionalBoundaryConditionSolver struct {
	Policy       utils.ExecutionPolicy
	collider     collider.Collider
	geom         grid.Geometry
	closedDomain types.DirectionFlag
	colliderSdf  *grid.ScalarGrid
	colliderVel  grid.VectorField
}

func NewFractionalBoundaryConditionSolver(ep utils.ExecutionPolicy) (bcs *FractionalBoundaryConditionSolver) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	bcs = &FractionalBoundaryConditionSolver{
		Policy:       ep,
		closedDomain: types.DirectionAll,
		colliderVel:  grid.ConstantVectorField{},
	}
	return
}

func (bcs *FractionalBoundaryConditionSolver) ClosedDomainBoundaryFlag() types.DirectionFlag {
	return bcs.closedDomain
}

func (bcs *FractionalBoundaryConditionSolver) SetClosedDomainBoundaryFlag(flag types.DirectionFlag) {
	bcs.closedDomain = flag
}

// ColliderSdf is the cached collider distance, nil before the first update
func (bcs *FractionalBoundaryConditionSolver) ColliderSdf() grid.ScalarField {
	if bcs.colliderSdf == nil {
		return nil
	}
	return bcs.colliderSdf
}

func (bcs *FractionalBoundaryConditionSolver) ColliderVelocityField() grid.VectorField {
	return bcs.colliderVel
}

// UpdateCollider resamples the collider onto the cell centers of g. With no collider the
// distance is everywhere outside and the collider rests.
func (bcs *FractionalBoundaryConditionSolver) UpdateCollider(c collider.Collider, g grid.Geometry) {
	bcs.collider = c
	bcs.geom = g
	if bcs.colliderSdf == nil {
		bcs.colliderSdf = grid.NewScalarGrid(g, math.MaxFloat64)
	} else {
		bcs.colliderSdf.Resize(g, math.MaxFloat64)
	}
	if c == nil {
		bcs.colliderVel = grid.ConstantVectorField{}
		return
	}
	sdf := c.SignedDistanceField()
	bcs.colliderSdf.FillFunc(sdf.Sample, bcs.Policy)
	bcs.colliderVel = c.VelocityField()
}

func (bcs *FractionalBoundaryConditionSolver) ConstrainVelocity(velocity *grid.FaceCenteredGrid,
	extrapolationDepth int) {
	if bcs.colliderSdf == nil || !bcs.geom.SameShape(velocity.Geometry) {
		bcs.UpdateCollider(bcs.collider, velocity.Geometry)
	}
	var (
		dim      = velocity.Dim
		sdf      = bcs.colliderSdf
		friction float64
		temp     [3]*grid.Array
		valid    [3][]bool
	)
	if bcs.collider != nil {
		friction = bcs.collider.FrictionCoefficient()
	}
	for d := 0; d < dim; d++ {
		var (
			u = velocity.Data[d]
			e = r3.Scale(0.5*utils.Comp(velocity.Spacing, d), utils.Unit(d))
		)
		valid[d] = make([]bool, u.Len())
		bcs.Policy.ForEach(u.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := u.Coord(idx)
				pt := velocity.FacePosition(d, i, j, k)
				open := 1 - utils.Clamp(levelset.FractionInsideSdf(
					sdf.Sample(r3.Sub(pt, e)), sdf.Sample(r3.Add(pt, e))), 0, 1)
				if open > 0 {
					valid[d][idx] = true
				} else {
					u.Data[idx] = utils.Comp(bcs.colliderVel.Sample(pt), d)
				}
			}
		})
		temp[d] = grid.NewArray(u.Size())
		grid.ExtrapolateToRegion(bcs.Policy, u, valid[d], extrapolationDepth, temp[d])
	}
	for d := 0; d < dim; d++ {
		out := temp[d]
		bcs.Policy.ForEach(out.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := out.Coord(idx)
				pt := velocity.FacePosition(d, i, j, k)
				if !levelset.IsInside(sdf.Sample(pt)) {
					continue
				}
				colliderVel := bcs.colliderVel.Sample(pt)
				grad := sdf.Gradient(pt)
				if r3.Norm(grad) <= 0 {
					out.Data[idx] = utils.Comp(colliderVel, d)
					continue
				}
				var (
					n    = r3.Unit(grad)
					velr = r3.Sub(velocity.Sample(pt), colliderVel)
					velt = projectAndApplyFriction(velr, n, friction)
				)
				out.Data[idx] = utils.Comp(r3.Add(velt, colliderVel), d)
			}
		})
	}
	for d := 0; d < dim; d++ {
		velocity.Data[d].CopyFrom(temp[d])
	}
	bcs.closeDomain(velocity)
}

// projectAndApplyFriction keeps the tangential part of vel, slowed by friction times the
// speed into the surface
func projectAndApplyFriction(vel, normal r3.Vec, frictionCoefficient float64) (velt r3.Vec) {
	velt = r3.Sub(vel, r3.Scale(r3.Dot(vel, normal), normal))
	if speed := r3.Norm(velt); speed > 0 {
		veln := math.Max(-r3.Dot(vel, normal), 0)
		velt = r3.Scale(math.Max(1-frictionCoefficient*veln/speed, 0), velt)
	}
	return
}

// closeDomain zeroes the normal velocity on the closed domain walls
func (bcs *FractionalBoundaryConditionSolver) closeDomain(velocity *grid.FaceCenteredGrid) {
	for d := 0; d < velocity.Dim; d++ {
		u := velocity.Data[d]
		size := u.Size()
		for _, wall := range [2]struct {
			flag types.DirectionFlag
			at   int
		}{{types.Lower(d), 0}, {types.Upper(d), size[d] - 1}} {
			if !bcs.closedDomain.Has(wall.flag) {
				continue
			}
			bcs.Policy.ForEach(u.Len(), func(lo, hi int) {
				for idx := lo; idx < hi; idx++ {
					i, j, k := u.Coord(idx)
					if [3]int{i, j, k}[d] == wall.at {
						u.Data[idx] = 0
					}
				}
			})
		}
	}
}
