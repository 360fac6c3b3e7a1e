package pressure

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/fdm"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/levelset"
	"github.com/notargets/gridfluid/utils"
)

// Solver makes a face centered velocity field divergence free inside the fluid
type Solver interface {
	Solve(input *grid.FaceCenteredGrid, dt float64, output *grid.FaceCenteredGrid,
		boundarySdf grid.ScalarField, boundaryVelocity grid.VectorField, fluidSdf grid.ScalarField)
	SuggestedBoundaryConditionSolver() BoundaryConditionSolver
}

const (
	minWeight      = 0.01
	minTheta       = 0.01
	machineEpsilon = 2.220446049250313e-16
)

// projectionLevel holds the cell fluid SDF and face open-area weights of one multigrid level
type projectionLevel struct {
	geom     grid.Geometry
	fluidSdf *grid.Array
	weights  [3]*grid.Array
}

// FractionalProjector is the variational pressure projection with sub-cell solid
// weights and a ghost fluid free surface. The system is either flat or multigrid,
// fixed by the constructor.
type FractionalProjector struct {
	Policy   utils.ExecutionPolicy
	Logger   *slog.Logger
	solver   fdm.Solver
	mgSolver fdm.MgSolver
	system   fdm.System
	geom     grid.Geometry
	levels   []projectionLevel
	boundary [3]*grid.Array
	pressure *grid.ScalarGrid
	stats    fdm.Stats
}

func NewFractionalProjector(solver fdm.Solver, ep utils.ExecutionPolicy, logger *slog.Logger) (fp *FractionalProjector) {
	fp = newFractionalProjector(ep, logger)
	fp.solver = solver
	fp.system.Flat = &fdm.LinearSystem{}
	return
}

func NewFractionalMgProjector(solver fdm.MgSolver, ep utils.ExecutionPolicy, logger *slog.Logger) (fp *FractionalProjector) {
	fp = newFractionalProjector(ep, logger)
	fp.mgSolver = solver
	fp.system.Multigrid = &fdm.MgLinearSystem{}
	return
}

func newFractionalProjector(ep utils.ExecutionPolicy, logger *slog.Logger) *FractionalProjector {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FractionalProjector{Policy: ep, Logger: logger}
}

// Pressure is the solution of the last Solve
func (fp *FractionalProjector) Pressure() *grid.ScalarGrid { return fp.pressure }

func (fp *FractionalProjector) LastSolveStats() fdm.Stats { return fp.stats }

func (fp *FractionalProjector) SuggestedBoundaryConditionSolver() BoundaryConditionSolver {
	return NewFractionalBoundaryConditionSolver(fp.Policy)
}

// Solve projects input into output, which may be the same grid. A nil boundarySdf means
// no solid, a nil boundaryVelocity a resting solid and a nil fluidSdf fluid everywhere.
func (fp *FractionalProjector) Solve(input *grid.FaceCenteredGrid, dt float64, output *grid.FaceCenteredGrid,
	boundarySdf grid.ScalarField, boundaryVelocity grid.VectorField, fluidSdf grid.ScalarField) {
	if !input.SameShape(output.Geometry) {
		panic(fmt.Sprintf("pressure solve shape mismatch: %v vs %v", input.Resolution, output.Resolution))
	}
	if boundarySdf == nil {
		boundarySdf = grid.ConstantScalarField{Value: math.MaxFloat64}
	}
	if boundaryVelocity == nil {
		boundaryVelocity = grid.ConstantVectorField{}
	}
	if fluidSdf == nil {
		fluidSdf = grid.ConstantScalarField{Value: -math.MaxFloat64}
	}
	fp.resize(input.Geometry)
	fp.buildWeights(boundarySdf, boundaryVelocity, fluidSdf)
	fp.buildSystem(input)
	converged := fp.solve()
	if !converged {
		fp.Logger.Warn("pressure solve did not converge",
			"iterations", fp.stats.Iterations, "residual", fp.stats.Residual)
	} else {
		fp.Logger.Debug("pressure solve",
			"iterations", fp.stats.Iterations, "residual", fp.stats.Residual)
	}
	fp.pressure.Data.CopyFrom(fp.system.Finest().X)
	if output != input {
		output.CopyFrom(input)
	}
	fp.applyPressureGradient(output)
}

func (fp *FractionalProjector) resize(g grid.Geometry) {
	if fp.levels != nil && fp.geom == g {
		return
	}
	fp.geom = g
	sizes := [][3]int{g.Resolution}
	if fp.system.IsMultigrid() {
		sizes = fdm.LevelSizes(g.Dim, g.Resolution, fp.mgSolver.MaxLevels())
	}
	fp.levels = make([]projectionLevel, len(sizes))
	lg := g
	for l := range fp.levels {
		lv := &fp.levels[l]
		lv.geom = lg
		lv.fluidSdf = grid.NewArray(lg.Resolution)
		for d := 0; d < g.Dim; d++ {
			size := lg.Resolution
			size[d]++
			lv.weights[d] = grid.NewArray(size)
			if l == 0 {
				fp.boundary[d] = grid.NewArray(size)
			}
		}
		lg = lg.Coarsened()
	}
	for d := g.Dim; d < 3; d++ {
		fp.boundary[d] = nil
	}
	if fp.system.IsMultigrid() {
		fp.system.Multigrid.ResizeWithFinest(g.Dim, g.Resolution, len(sizes))
	} else {
		fp.system.Flat.Resize(g.Dim, g.Resolution)
	}
	fp.pressure = grid.NewScalarGrid(g, 0)
}

// openAreaWeight converts the inside fraction of a face to its open area, tiny
// openings are widened to minWeight
func openAreaWeight(fractionInside float64) (w float64) {
	w = utils.Clamp(1-fractionInside, 0, 1)
	if w > 0 && w < minWeight {
		w = minWeight
	}
	return
}

// faceWeight samples the boundary at the corners spanning the face at pos
func faceWeight(boundarySdf grid.ScalarField, dim, axis int, spacing, pos r3.Vec) float64 {
	if dim == 2 {
		o := 1 - axis
		e := r3.Scale(0.5*utils.Comp(spacing, o), utils.Unit(o))
		return openAreaWeight(levelset.FractionInsideSdf(
			boundarySdf.Sample(r3.Sub(pos, e)), boundarySdf.Sample(r3.Add(pos, e))))
	}
	var (
		a, b = (axis + 1) % 3, (axis + 2) % 3
		ea   = r3.Scale(0.5*utils.Comp(spacing, a), utils.Unit(a))
		eb   = r3.Scale(0.5*utils.Comp(spacing, b), utils.Unit(b))
	)
	return openAreaWeight(levelset.FractionInside(
		boundarySdf.Sample(r3.Sub(r3.Sub(pos, ea), eb)),
		boundarySdf.Sample(r3.Sub(r3.Add(pos, ea), eb)),
		boundarySdf.Sample(r3.Add(r3.Sub(pos, ea), eb)),
		boundarySdf.Sample(r3.Add(r3.Add(pos, ea), eb))))
}

func (fp *FractionalProjector) buildWeights(boundarySdf grid.ScalarField, boundaryVelocity grid.VectorField,
	fluidSdf grid.ScalarField) {
	var (
		finest = &fp.levels[0]
		g      = finest.geom
		faces  = grid.FaceCenteredGrid{Geometry: g}
	)
	fp.Policy.ForEach(finest.fluidSdf.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := finest.fluidSdf.Coord(idx)
			finest.fluidSdf.Data[idx] = fluidSdf.Sample(g.CellCenter(i, j, k))
		}
	})
	for d := 0; d < g.Dim; d++ {
		var (
			w  = finest.weights[d]
			ub = fp.boundary[d]
		)
		fp.Policy.ForEach(w.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := w.Coord(idx)
				pos := faces.FacePosition(d, i, j, k)
				w.Data[idx] = faceWeight(boundarySdf, g.Dim, d, g.Spacing, pos)
				ub.Data[idx] = utils.Comp(boundaryVelocity.Sample(pos), d)
			}
		})
	}
	for l := 1; l < len(fp.levels); l++ {
		fine, coarse := &fp.levels[l-1], &fp.levels[l]
		fdm.Restrict(fp.Policy, g.Dim, fine.fluidSdf, coarse.fluidSdf)
		for d := 0; d < g.Dim; d++ {
			fdm.Restrict(fp.Policy, g.Dim, fine.weights[d], coarse.weights[d])
		}
	}
}

func theta(centerPhi, neighborPhi float64) float64 {
	return math.Max(levelset.FractionInsideSdf(centerPhi, neighborPhi), minTheta)
}

func (fp *FractionalProjector) buildSystem(input *grid.FaceCenteredGrid) {
	if fp.system.IsMultigrid() {
		mg := fp.system.Multigrid
		for l := range fp.levels {
			if l == 0 {
				fp.buildLevel(&fp.levels[l], mg.A[l], mg.B[l], input)
			} else {
				fp.buildLevel(&fp.levels[l], mg.A[l], nil, nil)
			}
			mg.X[l].Fill(0)
		}
		return
	}
	fp.buildLevel(&fp.levels[0], fp.system.Flat.A, fp.system.Flat.B, input)
	fp.system.Flat.X.Fill(0)
}

// buildLevel assembles A and, when b is given, the divergence right hand side.
// Non fluid cells and cells closed off by the solid get identity rows.
func (fp *FractionalProjector) buildLevel(lv *projectionLevel, A *fdm.Matrix, b *grid.Array,
	input *grid.FaceCenteredGrid) {
	var (
		g   = lv.geom
		res = g.Resolution
		phi = lv.fluidSdf
	)
	fp.Policy.ForEach(phi.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			var (
				row       fdm.MatrixRow
				rhs       float64
				centerPhi = phi.Data[idx]
				i, j, k   = phi.Coord(idx)
				ijk       = [3]int{i, j, k}
			)
			if !levelset.IsInside(centerPhi) {
				A.Rows[idx] = fdm.MatrixRow{Center: 1}
				if b != nil {
					b.Data[idx] = 0
				}
				continue
			}
			for d := 0; d < g.Dim; d++ {
				var (
					invH   = 1 / utils.Comp(g.Spacing, d)
					invH2  = invH * invH
					lower  = ijk
					upper  = ijk
					w      = lv.weights[d]
					wLower = w.At(lower[0], lower[1], lower[2])
				)
				upper[d]++
				wUpper := w.At(upper[0], upper[1], upper[2])
				if ijk[d]+1 < res[d] {
					term := wUpper * invH2
					if nPhi := phi.At(upper[0], upper[1], upper[2]); levelset.IsInside(nPhi) {
						row.Center += term
						row.Off[d] -= term
					} else {
						row.Center += term / theta(centerPhi, nPhi)
					}
				}
				if ijk[d] > 0 {
					nb := ijk
					nb[d]--
					term := wLower * invH2
					if nPhi := phi.At(nb[0], nb[1], nb[2]); levelset.IsInside(nPhi) {
						row.Center += term
					} else {
						row.Center += term / theta(centerPhi, nPhi)
					}
				}
				if b == nil {
					continue
				}
				var (
					u       = input.Data[d]
					ub      = fp.boundary[d]
					uUpper  = u.At(upper[0], upper[1], upper[2])
					uLower  = u.At(lower[0], lower[1], lower[2])
					ubUpper = ub.At(upper[0], upper[1], upper[2])
					ubLower = ub.At(lower[0], lower[1], lower[2])
				)
				if ijk[d]+1 < res[d] {
					rhs += wUpper * uUpper * invH
				} else {
					rhs += uUpper * invH
				}
				if ijk[d] > 0 {
					rhs -= wLower * uLower * invH
				} else {
					rhs -= uLower * invH
				}
				// flux of the moving solid through the occluded part of each face
				rhs += (1-wUpper)*ubUpper*invH - (1-wLower)*ubLower*invH
			}
			if row.Center < machineEpsilon {
				row = fdm.MatrixRow{Center: 1}
				rhs = 0
			}
			A.Rows[idx] = row
			if b != nil {
				b.Data[idx] = rhs
			}
		}
	})
}

func (fp *FractionalProjector) solve() (converged bool) {
	if fp.system.IsMultigrid() {
		converged = fp.mgSolver.SolveMg(fp.system.Multigrid)
		fp.stats = fp.mgSolver.LastStats()
		return
	}
	converged = fp.solver.Solve(fp.system.Flat)
	fp.stats = fp.solver.LastStats()
	return
}

// applyPressureGradient subtracts the pressure gradient on interior faces touching fluid.
// Fully blocked faces take the boundary velocity.
func (fp *FractionalProjector) applyPressureGradient(vel *grid.FaceCenteredGrid) {
	var (
		lv  = &fp.levels[0]
		res = lv.geom.Resolution
		phi = lv.fluidSdf
		p   = fp.system.Finest().X
	)
	for d := 0; d < lv.geom.Dim; d++ {
		var (
			u    = vel.Data[d]
			w    = lv.weights[d]
			ub   = fp.boundary[d]
			invH = 1 / utils.Comp(lv.geom.Spacing, d)
		)
		fp.Policy.ForEach(u.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				if w.Data[idx] == 0 {
					u.Data[idx] = ub.Data[idx]
					continue
				}
				i, j, k := u.Coord(idx)
				upper := [3]int{i, j, k}
				if upper[d] == 0 || upper[d] == res[d] {
					continue
				}
				lower := upper
				lower[d]--
				var (
					lowerPhi = phi.At(lower[0], lower[1], lower[2])
					upperPhi = phi.At(upper[0], upper[1], upper[2])
					th       = 1.
				)
				if !levelset.IsInside(lowerPhi) && !levelset.IsInside(upperPhi) {
					continue
				}
				if !levelset.IsInside(lowerPhi) || !levelset.IsInside(upperPhi) {
					th = math.Max(levelset.FractionInsideSdf(lowerPhi, upperPhi), minTheta)
				}
				u.Data[idx] += invH / th * (p.At(upper[0], upper[1], upper[2]) - p.At(lower[0], lower[1], lower[2]))
			}
		})
	}
}
