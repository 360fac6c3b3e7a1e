package fdm

import (
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

// GaussSeidelSolver is a successive over-relaxation solver. With UseRedBlack the
// sweeps run in two colored half steps under Policy.
type GaussSeidelSolver struct {
	MaxIterations         int
	ResidualCheckInterval int
	Tolerance             float64
	SorFactor             float64
	UseRedBlack           bool
	Policy                utils.ExecutionPolicy
	stats                 Stats
}

func NewGaussSeidelSolver(maxIterations, checkInterval int, tolerance, sorFactor float64,
	useRedBlack bool, ep utils.ExecutionPolicy) (gs *GaussSeidelSolver) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	if checkInterval < 1 {
		checkInterval = 1
	}
	gs = &GaussSeidelSolver{
		MaxIterations:         maxIterations,
		ResidualCheckInterval: checkInterval,
		Tolerance:             tolerance,
		SorFactor:             sorFactor,
		UseRedBlack:           useRedBlack,
		Policy:                ep,
	}
	return
}

func (gs *GaussSeidelSolver) LastStats() Stats { return gs.stats }

func (gs *GaussSeidelSolver) Solve(sys *LinearSystem) bool {
	var (
		residual = grid.NewArray(sys.X.Size())
	)
	gs.stats = Stats{}
	for iter := 1; iter <= gs.MaxIterations; iter++ {
		gs.relax(sys)
		gs.stats.Iterations = iter
		if iter%gs.ResidualCheckInterval == 0 || iter == gs.MaxIterations {
			Residual(gs.Policy, sys.A, sys.X, sys.B, residual)
			gs.stats.Residual = LInfNorm(residual)
			if gs.stats.Residual <= gs.Tolerance {
				gs.stats.Converged = true
				break
			}
		}
	}
	return gs.stats.Converged
}

func (gs *GaussSeidelSolver) relax(sys *LinearSystem) {
	if gs.UseRedBlack {
		RelaxRedBlack(gs.Policy, sys.A, sys.B, gs.SorFactor, sys.X)
	} else {
		Relax(sys.A, sys.B, gs.SorFactor, sys.X)
	}
}

// Relax performs one lexicographic SOR sweep
func Relax(A *Matrix, b *grid.Array, sorFactor float64, x *grid.Array) {
	for idx := range A.Rows {
		r := A.offDiagonalProduct(x.Data, idx)
		x.Data[idx] = (1-sorFactor)*x.Data[idx] + sorFactor*(b.Data[idx]-r)/A.Rows[idx].Center
	}
}

// RelaxRedBlack performs one SOR sweep over even cells then odd cells
func RelaxRedBlack(ep utils.ExecutionPolicy, A *Matrix, b *grid.Array, sorFactor float64, x *grid.Array) {
	for color := 0; color < 2; color++ {
		ep.ForEach(A.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				i, j, k := A.Coord(idx)
				if (i+j+k)%2 != color {
					continue
				}
				r := A.offDiagonalProduct(x.Data, idx)
				x.Data[idx] = (1-sorFactor)*x.Data[idx] + sorFactor*(b.Data[idx]-r)/A.Rows[idx].Center
			}
		})
	}
}
