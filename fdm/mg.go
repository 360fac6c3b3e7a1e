package fdm

import (
	"fmt"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

type MgParameters struct {
	MaxNumberOfLevels       int
	NumberOfRestrictionIter int
	NumberOfCorrectionIter  int
	NumberOfCoarsestIter    int
	NumberOfFinalIter       int
	MaxCycles               int
	MaxTolerance            float64
	SorFactor               float64
	UseRedBlack             bool
}

func DefaultMgParameters() MgParameters {
	return MgParameters{
		MaxNumberOfLevels:       5,
		NumberOfRestrictionIter: 5,
		NumberOfCorrectionIter:  5,
		NumberOfCoarsestIter:    20,
		NumberOfFinalIter:       20,
		MaxCycles:               20,
		MaxTolerance:            1e-9,
		SorFactor:               1.5,
		UseRedBlack:             true,
	}
}

// MultigridSolver runs V-cycles with SOR smoothing until the finest residual
// L2 norm is within MaxTolerance or MaxCycles is reached.
type MultigridSolver struct {
	Params MgParameters
	Policy utils.ExecutionPolicy
	stats  Stats
}

func NewMultigridSolver(params MgParameters, ep utils.ExecutionPolicy) (ms *MultigridSolver) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	if params.MaxNumberOfLevels < 1 {
		panic(fmt.Sprintf("invalid multigrid level count %d", params.MaxNumberOfLevels))
	}
	ms = &MultigridSolver{Params: params, Policy: ep}
	return
}

func (ms *MultigridSolver) MaxLevels() int { return ms.Params.MaxNumberOfLevels }

func (ms *MultigridSolver) LastStats() Stats { return ms.stats }

func (ms *MultigridSolver) SolveMg(sys *MgLinearSystem) bool {
	var (
		buffer = make([]*grid.Array, sys.NumberOfLevels())
	)
	for l := range buffer {
		buffer[l] = grid.NewArray(sys.X[l].Size())
	}
	ms.stats = Stats{}
	for cycle := 1; cycle <= max(1, ms.Params.MaxCycles); cycle++ {
		ms.stats.Residual = ms.vCycle(sys, 0, ms.Params.MaxTolerance, buffer)
		ms.stats.Iterations = cycle
		if ms.stats.Residual <= ms.Params.MaxTolerance {
			ms.stats.Converged = true
			break
		}
	}
	return ms.stats.Converged
}

func (ms *MultigridSolver) relax(A *Matrix, b *grid.Array, iterations int, x *grid.Array) {
	for it := 0; it < iterations; it++ {
		if ms.Params.UseRedBlack {
			RelaxRedBlack(ms.Policy, A, b, ms.Params.SorFactor, x)
		} else {
			Relax(A, b, ms.Params.SorFactor, x)
		}
	}
}

func (ms *MultigridSolver) vCycle(sys *MgLinearSystem, level int, tolerance float64,
	buffer []*grid.Array) float64 {
	var (
		A = sys.A[level]
		x = sys.X[level]
		b = sys.B[level]
	)
	ms.relax(A, b, ms.Params.NumberOfRestrictionIter, x)
	if level < sys.NumberOfLevels()-1 {
		Residual(ms.Policy, A, x, b, buffer[level])
		Restrict(ms.Policy, A.Dim, buffer[level], sys.B[level+1])
		sys.X[level+1].Fill(0)
		ms.vCycle(sys, level+1, 0.5*tolerance, buffer)
		Correct(ms.Policy, A.Dim, sys.X[level+1], x)
		if level > 0 {
			ms.relax(A, b, ms.Params.NumberOfCorrectionIter, x)
		} else {
			ms.relax(A, b, ms.Params.NumberOfFinalIter, x)
		}
	} else {
		ms.relax(A, b, ms.Params.NumberOfCoarsestIter, x)
	}
	Residual(ms.Policy, A, x, b, buffer[level])
	return L2Norm(buffer[level])
}

var (
	centeredKernel  = [4]float64{0.125, 0.375, 0.375, 0.125}
	staggeredKernel = [4]float64{0, 1, 0, 0}
)

type restrictTaps struct {
	n       int
	idx     [4]int
	weights [4]float64
}

func axisTaps(c, coarseN, fineN int) (t restrictTaps) {
	if fineN == 2*coarseN {
		t.n = 4
		t.weights = centeredKernel
		t.idx = [4]int{max(2*c-1, 0), 2 * c, 2*c + 1, 2*c + 1}
		if c+1 < coarseN {
			t.idx[3] = 2*c + 2
		}
		return
	}
	t.n = 3
	t.weights = staggeredKernel
	t.idx = [4]int{max(2*c-1, 0), min(2*c, fineN-1), min(2*c+1, fineN-1), 0}
	return
}

// Restrict down-samples fine into coarse. Axes where the fine size is exactly twice the
// coarse size use the centered 4 tap kernel, other axes (face-sampled, odd sized) are
// sampled at the coincident fine index.
func Restrict(ep utils.ExecutionPolicy, dim int, fine, coarse *grid.Array) {
	var (
		fs = fine.Size()
		cs = coarse.Size()
	)
	for d := dim; d < 3; d++ {
		if fs[d] != 1 || cs[d] != 1 {
			panic(fmt.Sprintf("restrict shape mismatch: %v to %v", fs, cs))
		}
	}
	for d := 0; d < dim; d++ {
		if cs[d] < 1 || fs[d] < 2*cs[d]-1 || fs[d] > 2*cs[d] {
			panic(fmt.Sprintf("restrict shape mismatch: %v to %v", fs, cs))
		}
	}
	ep.ForEach(coarse.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			var (
				i, j, k = coarse.Coord(idx)
				tx      = axisTaps(i, cs[0], fs[0])
				ty      = axisTaps(j, cs[1], fs[1])
				tz      = restrictTaps{n: 1, weights: [4]float64{1}}
				sum     float64
			)
			if dim == 3 {
				tz = axisTaps(k, cs[2], fs[2])
			}
			for z := 0; z < tz.n; z++ {
				for y := 0; y < ty.n; y++ {
					for x := 0; x < tx.n; x++ {
						w := tx.weights[x] * ty.weights[y] * tz.weights[z]
						if w != 0 {
							sum += w * fine.At(tx.idx[x], ty.idx[y], tz.idx[z])
						}
					}
				}
			}
			coarse.Data[idx] = sum
		}
	})
}

func correctTaps(i, fineN int) (idx [2]int, w [2]float64) {
	c := i / 2
	if i%2 == 0 {
		idx = [2]int{c, c}
		if i > 1 {
			idx[0] = c - 1
		}
		w = [2]float64{0.25, 0.75}
		return
	}
	idx = [2]int{c, c}
	if i+1 < fineN {
		idx[1] = c + 1
	}
	w = [2]float64{0.75, 0.25}
	return
}

// Correct adds the linear prolongation of coarse to fine
func Correct(ep utils.ExecutionPolicy, dim int, coarse, fine *grid.Array) {
	var (
		fs = fine.Size()
		cs = coarse.Size()
	)
	for d := 0; d < dim; d++ {
		if fs[d] != 2*cs[d] {
			panic(fmt.Sprintf("correct shape mismatch: %v to %v", cs, fs))
		}
	}
	ep.ForEach(fine.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			var (
				i, j, k = fine.Coord(idx)
				ix, wx  = correctTaps(i, fs[0])
				iy, wy  = correctTaps(j, fs[1])
				iz, wz  = [2]int{0, 0}, [2]float64{1, 0}
				sum     float64
			)
			if dim == 3 {
				iz, wz = correctTaps(k, fs[2])
			}
			for z := 0; z < 2; z++ {
				for y := 0; y < 2; y++ {
					for x := 0; x < 2; x++ {
						if w := wx[x] * wy[y] * wz[z]; w != 0 {
							sum += w * coarse.At(ix[x], iy[y], iz[z])
						}
					}
				}
			}
			fine.Data[idx] += sum
		}
	})
}
