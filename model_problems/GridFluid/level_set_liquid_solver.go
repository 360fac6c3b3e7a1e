package GridFluid

import (
	"log/slog"
	"math"
	"time"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/utils"
)

// LevelSetLiquidSolver tracks a free surface liquid with an advected signed distance field.
// Velocity is extended into the air before advection and the level set is rebuilt after
// every substep. With GlobalCompensation the front is shifted to hold the volume measured
// at the start of the substep.
type LevelSetLiquidSolver struct {
	*GridFluidSolver
	MinReinitializeDistance float64 // in cells
	GlobalCompensation      bool
	levelSetSolver          levelset.Solver
	sdfID                   int
	lastKnownVolume         float64
}

func NewLevelSetLiquidSolver(g grid.Geometry, ep utils.ExecutionPolicy, logger *slog.Logger) (ls *LevelSetLiquidSolver) {
	gs := NewGridFluidSolver(g, ep, logger)
	ls = &LevelSetLiquidSolver{
		GridFluidSolver:         gs,
		MinReinitializeDistance: 10,
		levelSetSolver:          levelset.NewFmmSolver(gs.Policy),
		sdfID:                   gs.grids.AddScalar(math.MaxFloat64),
	}
	gs.hooks = ls
	return
}

// SignedDistanceField is negative inside the liquid
func (ls *LevelSetLiquidSolver) SignedDistanceField() *grid.ScalarGrid {
	return ls.grids.Scalar(ls.sdfID)
}

func (ls *LevelSetLiquidSolver) LevelSetSolver() levelset.Solver { return ls.levelSetSolver }

func (ls *LevelSetLiquidSolver) SetLevelSetSolver(s levelset.Solver) { ls.levelSetSolver = s }

func (ls *LevelSetLiquidSolver) fluidSdf() grid.ScalarField { return ls.SignedDistanceField() }

// maxSpacing is the cell size used to scale distances, the largest spacing of the active axes
func (ls *LevelSetLiquidSolver) maxSpacing() (h float64) {
	g := ls.grids.Geometry
	for d := 0; d < g.Dim; d++ {
		h = math.Max(h, utils.Comp(g.Spacing, d))
	}
	return
}

func (ls *LevelSetLiquidSolver) cellVolume() (v float64) {
	g := ls.grids.Geometry
	v = 1
	for d := 0; d < g.Dim; d++ {
		v *= utils.Comp(g.Spacing, d)
	}
	return
}

// ComputeVolume measures the liquid with the smeared Heaviside of the level set, an area in 2D
func (ls *LevelSetLiquidSolver) ComputeVolume() float64 {
	return ls.volumeShifted(0)
}

// volumeShifted is the volume after moving the front outward by shift cells
func (ls *LevelSetLiquidSolver) volumeShifted(shift float64) float64 {
	var (
		sdf = ls.SignedDistanceField().Data
		h   = ls.maxSpacing()
	)
	if h == 0 {
		return 0
	}
	sum := ls.Policy.SumReduce(sdf.Len(), func(lo, hi int) (s float64) {
		for idx := lo; idx < hi; idx++ {
			s += 1 - levelset.SmearedHeaviside(sdf.Data[idx]/h+shift)
		}
		return
	})
	return sum * ls.cellVolume()
}

func (ls *LevelSetLiquidSolver) beginSubstep(dt float64) {
	ls.lastKnownVolume = ls.ComputeVolume()
	ls.Logger.Debug("liquid volume", "volume", ls.lastKnownVolume)
}

func (ls *LevelSetLiquidSolver) endSubstep(dt float64) {
	start := time.Now()
	ls.reinitialize(ls.Cfl(dt))
	ls.Logger.Debug("reinitialize level set", "elapsed", time.Since(start))

	currentVol := ls.ComputeVolume()
	volDiff := currentVol - ls.lastKnownVolume
	ls.Logger.Debug("liquid volume", "volume", currentVol, "change", volDiff)
	if ls.GlobalCompensation {
		ls.addVolume(-volDiff)
		ls.Logger.Debug("liquid volume after compensation", "volume", ls.ComputeVolume())
	}
}

func (ls *LevelSetLiquidSolver) beforeAdvection(dt float64) {
	start := time.Now()
	ls.extrapolateVelocityToAir(ls.Cfl(dt))
	ls.Logger.Debug("extrapolate velocity to air", "elapsed", time.Since(start))
}

func (ls *LevelSetLiquidSolver) maxExtrapolationDistance(cfl float64) float64 {
	return math.Max(2*cfl, ls.MinReinitializeDistance) * ls.maxSpacing()
}

func (ls *LevelSetLiquidSolver) reinitialize(cfl float64) {
	if ls.levelSetSolver == nil {
		return
	}
	var (
		sdf  = ls.SignedDistanceField()
		sdf0 = sdf.Clone()
	)
	ls.levelSetSolver.Reinitialize(sdf0, ls.maxExtrapolationDistance(cfl), sdf)
	ls.extrapolateIntoCollider(sdf.Data, sdf.DataPosition)
}

// extrapolateVelocityToAir clears the air faces and refills them from the liquid
func (ls *LevelSetLiquidSolver) extrapolateVelocityToAir(cfl float64) {
	var (
		sdf = ls.SignedDistanceField()
		vel = ls.grids.Velocity()
	)
	for d := 0; d < vel.Dim; d++ {
		arr := vel.Data[d]
		ls.Policy.ForEach(arr.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := arr.Coord(idx)
				if !levelset.IsInside(sdf.Sample(vel.FacePosition(d, i, j, k))) {
					arr.Data[idx] = 0
				}
			}
		})
	}
	levelset.NewFmmSolver(ls.Policy).ExtrapolateFaceCentered(vel, sdf, ls.maxExtrapolationDistance(cfl), vel)
	ls.applyBoundaryCondition()
}

// addVolume shifts the whole front by the distance that changes the volume by volDiff
func (ls *LevelSetLiquidSolver) addVolume(volDiff float64) {
	var (
		h    = ls.maxSpacing()
		vol0 = ls.volumeShifted(0)
		vol1 = ls.volumeShifted(1)
		dVdh = (vol1 - vol0) / h
	)
	if math.Abs(dVdh) == 0 {
		return
	}
	var (
		dist = volDiff / dVdh
		sdf  = ls.SignedDistanceField().Data
	)
	ls.Policy.ForEach(sdf.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			sdf.Data[idx] += dist
		}
	})
}
