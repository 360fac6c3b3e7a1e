package fdm

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

// buildPoisson fills A with the Dirichlet Laplacian on spacing h
func buildPoisson(A *Matrix, h float64) {
	invH2 := 1 / (h * h)
	for idx := range A.Rows {
		i, j, k := A.Coord(idx)
		ijk := [3]int{i, j, k}
		A.Rows[idx].Center = 2 * float64(A.Dim) * invH2
		for d := 0; d < A.Dim; d++ {
			if ijk[d]+1 < A.Size[d] {
				A.Rows[idx].Off[d] = -invH2
			}
		}
	}
}

func manufactured(sys *LinearSystem) (xTrue *grid.Array) {
	xTrue = grid.NewArray(sys.X.Size())
	for idx := range xTrue.Data {
		i, j, k := xTrue.Coord(idx)
		xTrue.Data[idx] = math.Sin(0.3*float64(i)) + math.Cos(0.2*float64(j)) + 0.1*float64(k)
	}
	Mul(utils.Serial{}, sys.A, xTrue, sys.B)
	return
}

func TestMatrixAssembly(t *testing.T) {
	var (
		size = [3]int{4, 3, 2}
		A    = NewMatrix(3, size)
	)
	buildPoisson(A, 0.5)
	A.Rows[5].Center = 11
	{ // Test the CSR form matches an independently built DOK
		dok := sparse.NewDOK(A.Len(), A.Len())
		for idx := range A.Rows {
			dok.Set(idx, idx, A.Rows[idx].Center)
			i, j, k := A.Coord(idx)
			ijk := [3]int{i, j, k}
			for d := 0; d < 3; d++ {
				if ijk[d]+1 < size[d] {
					s := A.stride(d)
					dok.Set(idx, idx+s, A.Rows[idx].Off[d])
					dok.Set(idx+s, idx, A.Rows[idx].Off[d])
				}
			}
		}
		ref := dok.ToCSR()
		csr := A.ToCSR()
		for r := 0; r < A.Len(); r++ {
			for c := 0; c < A.Len(); c++ {
				require.Equal(t, ref.At(r, c), csr.At(r, c), "entry %d %d", r, c)
			}
		}
	}
	{ // Test the stencil product matches the CSR product
		x := grid.NewArray(size)
		for i := range x.Data {
			x.Data[i] = float64(i%5) - 1.5
		}
		y, yc := grid.NewArray(size), make([]float64, A.Len())
		Mul(utils.Threaded{}, A, x, y)
		csrMulVec(utils.Serial{}, A.ToCSR().RawMatrix(), x.Data, yc)
		for i := range yc {
			assert.InDelta(t, yc[i], y.Data[i], 1e-12)
		}
	}
}

func TestFlatSolvers(t *testing.T) {
	solvers := []Solver{
		NewCgSolver(200, 1e-10, utils.Threaded{}),
		NewGaussSeidelSolver(5000, 10, 1e-8, 1.5, false, utils.Serial{}),
		NewGaussSeidelSolver(5000, 10, 1e-8, 1.5, true, utils.Threaded{}),
	}
	for _, solver := range solvers {
		sys := NewLinearSystem(2, [3]int{12, 10, 1})
		buildPoisson(sys.A, 0.1)
		xTrue := manufactured(sys)
		require.True(t, solver.Solve(sys))
		stats := solver.LastStats()
		assert.True(t, stats.Converged)
		assert.True(t, stats.Iterations > 0)
		for i := range xTrue.Data {
			assert.InDelta(t, xTrue.Data[i], sys.X.Data[i], 1e-6)
		}
	}
	{ // Test an empty system
		cg := NewCgSolver(10, 1e-10, nil)
		assert.True(t, cg.Solve(NewLinearSystem(2, [3]int{0, 0, 1})))
	}
}

func TestMultigrid(t *testing.T) {
	{ // Test hierarchy sizing
		assert.Equal(t, [][3]int{{16, 12, 1}, {8, 6, 1}, {4, 3, 1}}, LevelSizes(2, [3]int{16, 12, 1}, 5))
		assert.Equal(t, [][3]int{{16, 16, 16}, {8, 8, 8}}, LevelSizes(3, [3]int{16, 16, 16}, 2))
		assert.Equal(t, [][3]int{{7, 8, 1}}, LevelSizes(2, [3]int{7, 8, 1}, 4))
		assert.Panics(t, func() { LevelSizes(2, [3]int{8, 8, 1}, 0) })
	}
	{ // Test restriction and correction of constants
		fine, coarse := grid.NewArray([3]int{8, 8, 1}), grid.NewArray([3]int{4, 4, 1})
		fine.Fill(3)
		Restrict(utils.Serial{}, 2, fine, coarse)
		for _, v := range coarse.Data {
			assert.InDelta(t, 3., v, 1e-14)
		}
		fine.Fill(1)
		Correct(utils.Threaded{}, 2, coarse, fine)
		for _, v := range fine.Data {
			assert.InDelta(t, 4., v, 1e-14)
		}
		faces, coarseFaces := grid.NewArray([3]int{9, 8, 1}), grid.NewArray([3]int{5, 4, 1})
		for idx := range faces.Data {
			i, _, _ := faces.Coord(idx)
			faces.Data[idx] = float64(i)
		}
		Restrict(utils.Serial{}, 2, faces, coarseFaces)
		for idx, v := range coarseFaces.Data {
			i, _, _ := coarseFaces.Coord(idx)
			assert.InDelta(t, float64(2*i), v, 1e-14)
		}
		assert.Panics(t, func() { Restrict(utils.Serial{}, 2, fine, grid.NewArray([3]int{3, 4, 1})) })
	}
	{ // Test V-cycles converge on the Poisson problem
		var (
			mg     = &MgLinearSystem{}
			params = DefaultMgParameters()
		)
		params.MaxTolerance = 1e-6
		params.MaxCycles = 100
		mg.ResizeWithFinest(2, [3]int{32, 32, 1}, params.MaxNumberOfLevels)
		require.Equal(t, 5, mg.NumberOfLevels())
		h := 1. / 32
		for l := 0; l < mg.NumberOfLevels(); l++ {
			buildPoisson(mg.A[l], h)
			h *= 2
		}
		xTrue := manufactured(mg.Level(0))
		solver := NewMultigridSolver(params, utils.Threaded{})
		assert.True(t, solver.SolveMg(mg))
		assert.True(t, solver.LastStats().Iterations < 100)
		for i := range xTrue.Data {
			assert.InDelta(t, xTrue.Data[i], mg.X[0].Data[i], 1e-6)
		}
	}
}
