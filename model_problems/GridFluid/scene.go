package GridFluid

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/InputParameters"
	"github.com/notargets/gridfluid/collider"
	"github.com/notargets/gridfluid/emitter"
	"github.com/notargets/gridfluid/fdm"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/pressure"
	"github.com/notargets/gridfluid/types"
	"github.com/notargets/gridfluid/utils"
)

// FrameStats is one row of the per frame telemetry
type FrameStats struct {
	Frame         int     `csv:"frame"`
	Time          float64 `csv:"time"`
	Substeps      int     `csv:"substeps"`
	MaxSpeed      float64 `csv:"max_speed"`
	MaxDivergence float64 `csv:"max_divergence"`
	Volume        float64 `csv:"volume"`
	WallSeconds   float64 `csv:"wall_seconds"`
}

// Scene is a solver assembled from scene parameters. Liquid is set for free surface scenes,
// Density for single phase scenes with emitters.
type Scene struct {
	Params  *InputParameters.SceneParameters
	Solver  *GridFluidSolver
	Liquid  *LevelSetLiquidSolver
	Density *grid.ScalarGrid
	policy  utils.ExecutionPolicy
}

func NewScene(sp *InputParameters.SceneParameters, logger *slog.Logger) (sc *Scene, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err = sp.Validate(); err != nil {
		return
	}
	var closed types.DirectionFlag
	if closed, err = types.ParseDirections(sp.ClosedDomain); err != nil {
		return nil, fmt.Errorf("scene %q: %w", sp.Title, err)
	}
	sc = &Scene{Params: sp}
	if sc.policy, err = utils.NewExecutionPolicy(sp.Policy, sp.ProcLimit); err != nil {
		return nil, fmt.Errorf("scene %q: %w", sp.Title, err)
	}
	var res [3]int
	copy(res[:], sp.Resolution)
	b := NewBuilder(sp.Dimension).
		WithResolution(res).
		WithDomainSizeX(sp.DomainSizeX).
		WithOrigin(toVec(sp.Origin)).
		WithPolicy(sc.policy).
		WithLogger(logger)
	if sp.Liquid {
		sc.Liquid = b.BuildLevelSetLiquid()
		sc.Liquid.GlobalCompensation = sp.GlobalCompensation
		sc.Solver = sc.Liquid.GridFluidSolver
	} else {
		sc.Solver = b.Build()
	}
	gs := sc.Solver
	gs.SetGravity(toVec(sp.Gravity))
	gs.SetViscosityCoefficient(sp.Viscosity)
	gs.SetMaxCfl(sp.MaxCFL)
	if sp.FixedSubsteps > 0 {
		gs.UseFixedSubsteps = true
		gs.NumberOfFixedSubsteps = sp.FixedSubsteps
	}
	gs.SetPressureSolver(newPressureSolver(sp, sc.policy, logger))
	gs.SetClosedDomainBoundaryFlag(closed)
	sc.addColliders()
	sc.addEmitters()
	return
}

func newPressureSolver(sp *InputParameters.SceneParameters, ep utils.ExecutionPolicy,
	logger *slog.Logger) pressure.Solver {
	if strings.ToLower(sp.PressureSolver) == InputParameters.PressureFractionalMg {
		params := fdm.DefaultMgParameters()
		params.MaxNumberOfLevels = max(sp.MgLevels, 1)
		params.MaxTolerance = sp.Tolerance
		params.MaxCycles = sp.MaxIterations
		return pressure.NewFractionalMgProjector(fdm.NewMultigridSolver(params, ep), ep, logger)
	}
	return pressure.NewFractionalProjector(fdm.NewCgSolver(sp.MaxIterations, sp.Tolerance, ep), ep, logger)
}

func toVec(v []float64) (r r3.Vec) {
	for d := 0; d < len(v) && d < 3; d++ {
		utils.SetComp(&r, d, v[d])
	}
	return
}

func toSurface(sh InputParameters.ShapeParameters) (s collider.Surface) {
	switch strings.ToLower(sh.Type) {
	case "sphere":
		s = collider.Sphere{Center: toVec(sh.Center), Radius: sh.Radius}
	case "box":
		s = collider.Box{Lower: toVec(sh.Lower), Upper: toVec(sh.Upper)}
	case "plane":
		s = collider.Plane{Normal: toVec(sh.Normal), Point: toVec(sh.Point)}
	}
	if sh.Inverted {
		s = collider.Inverted{Surface: s}
	}
	return
}

func (sc *Scene) addColliders() {
	if len(sc.Params.Colliders) == 0 {
		return
	}
	var colliders []collider.Collider
	for _, sh := range sc.Params.Colliders {
		rb := collider.NewRigidBodyCollider(toSurface(sh))
		rb.Center = toVec(sh.Center)
		rb.LinearVelocity = toVec(sh.LinearVelocity)
		rb.AngularVelocity = toVec(sh.AngularVelocity)
		rb.Friction = sh.Friction
		colliders = append(colliders, rb)
	}
	if len(colliders) == 1 {
		sc.Solver.SetCollider(colliders[0])
		return
	}
	sc.Solver.SetCollider(collider.NewColliderSet(colliders...))
}

func (sc *Scene) addEmitters() {
	if len(sc.Params.Emitters) == 0 {
		return
	}
	var (
		set emitter.Set
		sd  = sc.Solver.SystemData()
	)
	for _, ep := range sc.Params.Emitters {
		ve := emitter.NewVolumeGridEmitter(toSurface(ep.Shape), ep.OneShot, sc.policy)
		if sc.Liquid != nil {
			ve.AddSignedDistanceTarget(sc.Liquid.SignedDistanceField())
		}
		if ep.Density > 0 {
			if sc.Density == nil {
				sc.Density = sd.Scalar(sd.AddScalar(0))
			}
			ve.AddStepFunctionTarget(sc.Density, 0, ep.Density)
		}
		if len(ep.Velocity) != 0 {
			v := toVec(ep.Velocity)
			ve.AddFaceCenteredTarget(sd.Velocity(), func(sdf float64, _ r3.Vec, old r3.Vec) r3.Vec {
				if levelset.IsInside(sdf) {
					return v
				}
				return old
			})
		}
		set = append(set, ve)
	}
	sc.Solver.SetEmitter(set)
}

// AdvanceFrame moves the scene forward by one frame at the configured rate
func (sc *Scene) AdvanceFrame() (fs FrameStats) {
	start := time.Now()
	fs.Substeps = sc.Solver.AdvanceOneFrame(1 / sc.Params.FPS)
	fs.WallSeconds = time.Since(start).Seconds()
	fs.Frame = sc.Solver.CurrentFrame().Index
	fs.Time = sc.Solver.CurrentTime()
	fs.MaxSpeed, fs.MaxDivergence = sc.velocityStats()
	fs.Volume = sc.Volume()
	return
}

// Volume is the liquid volume, the emitted density mass, or zero
func (sc *Scene) Volume() float64 {
	switch {
	case sc.Liquid != nil:
		return sc.Liquid.ComputeVolume()
	case sc.Density != nil:
		g := sc.Density.Geometry
		cell := 1.
		for d := 0; d < g.Dim; d++ {
			cell *= utils.Comp(g.Spacing, d)
		}
		return cell * sc.policy.SumReduce(sc.Density.Data.Len(), func(lo, hi int) (s float64) {
			for idx := lo; idx < hi; idx++ {
				s += sc.Density.Data.Data[idx]
			}
			return
		})
	}
	return 0
}

// velocityStats measures the fastest cell center speed and the largest divergence over fluid cells
func (sc *Scene) velocityStats() (maxSpeed, maxDiv float64) {
	var (
		gs          = sc.Solver
		vel         = gs.Velocity()
		g           = gs.Geometry()
		fluidSdf    = gs.FluidSdf()
		colliderSdf = gs.ColliderSdf()
	)
	if !g.Valid() {
		return
	}
	maxSpeed = sc.policy.MaxReduce(g.NumCells(), func(lo, hi int) (m float64) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := cellCoord(g, idx)
			m = math.Max(m, r3.Norm(vel.ValueAtCellCenter(i, j, k)))
		}
		return
	})
	maxDiv = sc.policy.MaxReduce(g.NumCells(), func(lo, hi int) (m float64) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := cellCoord(g, idx)
			x := g.CellCenter(i, j, k)
			if !levelset.IsInside(fluidSdf.Sample(x)) {
				continue
			}
			if colliderSdf != nil && levelset.IsInside(colliderSdf.Sample(x)) {
				continue
			}
			m = math.Max(m, math.Abs(vel.DivergenceAtCellCenter(i, j, k)))
		}
		return
	})
	return
}

// Close releases the worker pool of a bulk policy
func (sc *Scene) Close() {
	if bp, ok := sc.policy.(*utils.Bulk); ok {
		bp.Close()
	}
}

// Run builds the scene, advances every frame and hands each frame's stats to onFrame
func Run(sp *InputParameters.SceneParameters, logger *slog.Logger, onFrame func(FrameStats)) (stats []FrameStats, err error) {
	var sc *Scene
	if sc, err = NewScene(sp, logger); err != nil {
		return
	}
	defer sc.Close()
	for f := 0; f < sp.Frames; f++ {
		fs := sc.AdvanceFrame()
		stats = append(stats, fs)
		if onFrame != nil {
			onFrame(fs)
		}
	}
	return
}
