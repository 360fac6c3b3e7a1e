package GridFluid

import (
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/advection"
	"github.com/notargets/gridfluid/collider"
	"github.com/notargets/gridfluid/diffusion"
	"github.com/notargets/gridfluid/emitter"
	"github.com/notargets/gridfluid/fdm"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/pressure"
	"github.com/notargets/gridfluid/types"
	"github.com/notargets/gridfluid/utils"
)

var DefaultGravity = r3.Vec{Y: -9.8}

const DefaultMaxCfl = 5.

// phaseHooks lets a specialized solver change the fluid region and wrap parts of a substep
type phaseHooks interface {
	fluidSdf() grid.ScalarField
	beginSubstep(dt float64)
	beforeAdvection(dt float64)
	endSubstep(dt float64)
}

/*
	GridFluidSolver advances an incompressible flow on a MAC grid. Each substep runs
		1) collider and emitter update, boundary condition refresh
		2) gravity
		3) viscosity
		4) pressure projection
		5) advection of the extra grids, then of the velocity through itself
	re-applying the boundary condition after every phase that changes velocity.
*/
type GridFluidSolver struct {
	*PhysicsAnimation
	Policy                 utils.ExecutionPolicy
	Logger                 *slog.Logger
	OnBeginAdvanceTimeStep func(dt float64)
	OnEndAdvanceTimeStep   func(dt float64)
	grids                  *grid.SystemData
	gravity                r3.Vec
	viscosity              float64
	maxCfl                 float64
	closedDomain           types.DirectionFlag
	collider               collider.Collider
	emitter                emitter.Emitter
	advectionSolver        advection.Solver
	diffusionSolver        diffusion.Solver
	pressureSolver         pressure.Solver
	bcSolver               pressure.BoundaryConditionSolver
	hooks                  phaseHooks
}

// NewGridFluidSolver uses semi-Lagrangian advection, backward Euler diffusion and the fractional
// projector with a conjugate gradient solver
func NewGridFluidSolver(g grid.Geometry, ep utils.ExecutionPolicy, logger *slog.Logger) (gs *GridFluidSolver) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	gs = &GridFluidSolver{
		Policy:       ep,
		Logger:       logger,
		grids:        grid.NewSystemData(g),
		gravity:      DefaultGravity,
		maxCfl:       DefaultMaxCfl,
		closedDomain: types.DirectionAll,
	}
	gs.PhysicsAnimation = NewPhysicsAnimation(gs, logger)
	gs.SetAdvectionSolver(advection.NewSemiLagrangian(ep))
	gs.SetDiffusionSolver(diffusion.NewBackwardEuler(diffusion.Neumann, nil, ep))
	gs.SetPressureSolver(pressure.NewFractionalProjector(fdm.NewCgSolver(200, 1e-6, ep), ep, logger))
	return
}

func (gs *GridFluidSolver) SystemData() *grid.SystemData { return gs.grids }

func (gs *GridFluidSolver) Velocity() *grid.FaceCenteredGrid { return gs.grids.Velocity() }

func (gs *GridFluidSolver) Geometry() grid.Geometry { return gs.grids.Geometry }

// Resize resets every grid to g
func (gs *GridFluidSolver) Resize(g grid.Geometry) {
	gs.grids.Resize(g)
}

func (gs *GridFluidSolver) Gravity() r3.Vec { return gs.gravity }

func (gs *GridFluidSolver) SetGravity(g r3.Vec) { gs.gravity = g }

func (gs *GridFluidSolver) ViscosityCoefficient() float64 { return gs.viscosity }

func (gs *GridFluidSolver) SetViscosityCoefficient(mu float64) {
	gs.viscosity = math.Max(mu, 0)
}

func (gs *GridFluidSolver) MaxCfl() float64 { return gs.maxCfl }

// SetMaxCfl keeps the limit above zero
func (gs *GridFluidSolver) SetMaxCfl(cfl float64) {
	gs.maxCfl = math.Max(cfl, math.SmallestNonzeroFloat64)
}

func (gs *GridFluidSolver) ClosedDomainBoundaryFlag() types.DirectionFlag { return gs.closedDomain }

func (gs *GridFluidSolver) SetClosedDomainBoundaryFlag(flag types.DirectionFlag) {
	gs.closedDomain = flag
	if gs.bcSolver != nil {
		gs.bcSolver.SetClosedDomainBoundaryFlag(flag)
	}
}

func (gs *GridFluidSolver) AdvectionSolver() advection.Solver { return gs.advectionSolver }

func (gs *GridFluidSolver) SetAdvectionSolver(s advection.Solver) { gs.advectionSolver = s }

func (gs *GridFluidSolver) DiffusionSolver() diffusion.Solver { return gs.diffusionSolver }

func (gs *GridFluidSolver) SetDiffusionSolver(s diffusion.Solver) { gs.diffusionSolver = s }

func (gs *GridFluidSolver) PressureSolver() pressure.Solver { return gs.pressureSolver }

// SetPressureSolver also installs the boundary condition solver that pairs with s
func (gs *GridFluidSolver) SetPressureSolver(s pressure.Solver) {
	gs.pressureSolver = s
	if s == nil {
		return
	}
	gs.bcSolver = s.SuggestedBoundaryConditionSolver()
	gs.bcSolver.SetClosedDomainBoundaryFlag(gs.closedDomain)
}

func (gs *GridFluidSolver) BoundaryConditionSolver() pressure.BoundaryConditionSolver { return gs.bcSolver }

func (gs *GridFluidSolver) Collider() collider.Collider { return gs.collider }

func (gs *GridFluidSolver) SetCollider(c collider.Collider) { gs.collider = c }

func (gs *GridFluidSolver) Emitter() emitter.Emitter { return gs.emitter }

func (gs *GridFluidSolver) SetEmitter(e emitter.Emitter) { gs.emitter = e }

// ColliderSdf is nil until the boundary condition solver has seen the collider
func (gs *GridFluidSolver) ColliderSdf() grid.ScalarField {
	if gs.bcSolver == nil {
		return nil
	}
	return gs.bcSolver.ColliderSdf()
}

func (gs *GridFluidSolver) ColliderVelocityField() grid.VectorField {
	if gs.bcSolver == nil {
		return grid.ConstantVectorField{}
	}
	return gs.bcSolver.ColliderVelocityField()
}

// FluidSdf is negative wherever there is fluid, everywhere for a single phase flow
func (gs *GridFluidSolver) FluidSdf() grid.ScalarField {
	if gs.hooks != nil {
		return gs.hooks.fluidSdf()
	}
	return grid.ConstantScalarField{Value: -math.MaxFloat64}
}

// Cfl is the largest cell center speed along any axis after a gravity kick of dt, in cells per dt
func (gs *GridFluidSolver) Cfl(dt float64) float64 {
	var (
		vel  = gs.grids.Velocity()
		g    = gs.grids.Geometry
		kick = r3.Scale(dt, gs.gravity)
	)
	if !g.Valid() {
		return 0
	}
	maxVel := gs.Policy.MaxReduce(g.NumCells(), func(lo, hi int) (m float64) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := cellCoord(g, idx)
			v := r3.Add(vel.ValueAtCellCenter(i, j, k), kick)
			for d := 0; d < g.Dim; d++ {
				m = math.Max(m, math.Abs(utils.Comp(v, d)))
			}
		}
		return
	})
	return maxVel * dt / g.MinSpacing()
}

func cellCoord(g grid.Geometry, idx int) (i, j, k int) {
	nx, ny := g.Resolution[0], g.Resolution[1]
	i = idx % nx
	j = (idx / nx) % ny
	k = idx / (nx * ny)
	return
}

// NumberOfSubsteps is the smallest count that keeps every substep within the max CFL
func (gs *GridFluidSolver) NumberOfSubsteps(dt float64) int {
	cfl := gs.Cfl(dt)
	if cfl <= 0 {
		return 1
	}
	n := math.Ceil(cfl / gs.maxCfl)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return max(int(n), 1)
}

// Initialize brings the collider and emitter to the start time
func (gs *GridFluidSolver) Initialize() {
	start := time.Now()
	gs.updateCollider(0)
	gs.updateEmitter(0)
	gs.Logger.Debug("initialize collider and emitter", "elapsed", time.Since(start))
}

func (gs *GridFluidSolver) AdvanceOneSubstep(dt float64) {
	if !gs.grids.Valid() {
		gs.Logger.Warn("empty grid, skipping substep", "geometry", gs.grids.Geometry.String())
		return
	}
	gs.beginAdvanceTimeStep(dt)

	start := time.Now()
	gs.computeGravity(dt)
	gs.Logger.Debug("gravity", "elapsed", time.Since(start))

	start = time.Now()
	gs.computeViscosity(dt)
	gs.Logger.Debug("viscosity", "elapsed", time.Since(start))

	start = time.Now()
	gs.computePressure(dt)
	gs.Logger.Debug("pressure", "elapsed", time.Since(start))

	start = time.Now()
	gs.computeAdvection(dt)
	gs.Logger.Debug("advection", "elapsed", time.Since(start))

	gs.endAdvanceTimeStep(dt)
}

func (gs *GridFluidSolver) beginAdvanceTimeStep(dt float64) {
	start := time.Now()
	gs.updateCollider(dt)
	gs.Logger.Debug("update collider", "elapsed", time.Since(start))

	start = time.Now()
	gs.updateEmitter(dt)
	gs.Logger.Debug("update emitter", "elapsed", time.Since(start))

	if gs.bcSolver != nil {
		gs.bcSolver.UpdateCollider(gs.collider, gs.grids.Geometry)
	}
	gs.applyBoundaryCondition()
	if gs.hooks != nil {
		gs.hooks.beginSubstep(dt)
	}
	if gs.OnBeginAdvanceTimeStep != nil {
		gs.OnBeginAdvanceTimeStep(dt)
	}
}

func (gs *GridFluidSolver) endAdvanceTimeStep(dt float64) {
	if gs.hooks != nil {
		gs.hooks.endSubstep(dt)
	}
	if gs.OnEndAdvanceTimeStep != nil {
		gs.OnEndAdvanceTimeStep(dt)
	}
}

func (gs *GridFluidSolver) updateCollider(dt float64) {
	if gs.collider != nil {
		gs.collider.Update(gs.CurrentTime(), dt)
	}
}

func (gs *GridFluidSolver) updateEmitter(dt float64) {
	if gs.emitter != nil {
		gs.emitter.Update(gs.CurrentTime(), dt)
	}
}

func (gs *GridFluidSolver) extrapolationDepth() int {
	return int(math.Ceil(gs.maxCfl))
}

func (gs *GridFluidSolver) applyBoundaryCondition() {
	if gs.bcSolver != nil {
		gs.bcSolver.ConstrainVelocity(gs.grids.Velocity(), gs.extrapolationDepth())
	}
}

func (gs *GridFluidSolver) computeGravity(dt float64) {
	if r3.Norm2(gs.gravity) <= math.SmallestNonzeroFloat64 {
		return
	}
	vel := gs.grids.Velocity()
	for d := 0; d < vel.Dim; d++ {
		g := utils.Comp(gs.gravity, d)
		if math.Abs(g) <= math.SmallestNonzeroFloat64 {
			continue
		}
		var (
			arr  = vel.Data[d]
			kick = dt * g
		)
		gs.Policy.ForEach(arr.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				arr.Data[idx] += kick
			}
		})
	}
	gs.applyBoundaryCondition()
}

func (gs *GridFluidSolver) computeViscosity(dt float64) {
	if gs.diffusionSolver == nil || gs.viscosity <= math.SmallestNonzeroFloat64 {
		return
	}
	vel := gs.grids.Velocity()
	vel0 := vel.Clone()
	gs.diffusionSolver.SolveFaceCentered(vel0, gs.viscosity, dt, vel, gs.ColliderSdf(), gs.FluidSdf())
	gs.applyBoundaryCondition()
}

func (gs *GridFluidSolver) computePressure(dt float64) {
	if gs.pressureSolver == nil {
		return
	}
	vel := gs.grids.Velocity()
	vel0 := vel.Clone()
	gs.pressureSolver.Solve(vel0, dt, vel, gs.ColliderSdf(), gs.ColliderVelocityField(), gs.FluidSdf())
	gs.applyBoundaryCondition()
}

func (gs *GridFluidSolver) computeAdvection(dt float64) {
	if gs.advectionSolver == nil {
		return
	}
	if gs.hooks != nil {
		gs.hooks.beforeAdvection(dt)
	}
	var (
		vel         = gs.grids.Velocity()
		colliderSdf = gs.ColliderSdf()
	)
	for n := 0; n < gs.grids.NumScalars(); n++ {
		sg := gs.grids.Scalar(n)
		sg0 := sg.Clone()
		gs.advectionSolver.Advect(sg0, vel, dt, sg, colliderSdf)
		gs.extrapolateIntoCollider(sg.Data, sg.DataPosition)
	}
	for n := 0; n < gs.grids.NumVectors(); n++ {
		cg := gs.grids.Vector(n)
		cg0 := cg.Clone()
		gs.advectionSolver.AdvectCollocated(cg0, vel, dt, cg, colliderSdf)
		for d := 0; d < cg.Dim; d++ {
			gs.extrapolateIntoCollider(cg.Data[d], cg.CellCenter)
		}
	}
	vel0 := vel.Clone()
	gs.advectionSolver.AdvectFaceCentered(vel0, vel0, dt, vel, colliderSdf)
	gs.applyBoundaryCondition()
}

// extrapolateIntoCollider fills the samples inside the collider from the fluid side
func (gs *GridFluidSolver) extrapolateIntoCollider(arr *grid.Array, pos func(i, j, k int) r3.Vec) {
	sdf := gs.ColliderSdf()
	if sdf == nil {
		return
	}
	valid := make([]bool, arr.Len())
	gs.Policy.ForEach(arr.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := arr.Coord(idx)
			valid[idx] = !levelset.IsInside(sdf.Sample(pos(i, j, k)))
		}
	})
	grid.ExtrapolateToRegion(gs.Policy, arr, valid, gs.extrapolationDepth(), arr)
}
