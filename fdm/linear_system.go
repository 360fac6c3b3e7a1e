package fdm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

// MatrixRow is one row of a symmetric 7 point (5 in 2D) stencil. Off[d] couples the
// cell to its +1 neighbor along axis d (right, up, front), the -1 coupling is
// stored in the neighbor's row.
type MatrixRow struct {
	Center float64
	Off    [3]float64
}

type Matrix struct {
	Dim  int
	Size [3]int
	Rows []MatrixRow
}

func NewMatrix(dim int, size [3]int) (A *Matrix) {
	A = &Matrix{Dim: dim, Size: size, Rows: make([]MatrixRow, size[0]*size[1]*size[2])}
	return
}

func (A *Matrix) Len() int { return len(A.Rows) }

func (A *Matrix) Index(i, j, k int) int {
	return i + A.Size[0]*(j+A.Size[1]*k)
}

func (A *Matrix) Coord(idx int) (i, j, k int) {
	i = idx % A.Size[0]
	j = (idx / A.Size[0]) % A.Size[1]
	k = idx / (A.Size[0] * A.Size[1])
	return
}

// stride is the flat index offset of a +1 step along axis
func (A *Matrix) stride(axis int) int {
	switch axis {
	case 0:
		return 1
	case 1:
		return A.Size[0]
	}
	return A.Size[0] * A.Size[1]
}

// RowProduct is (A x) at idx
func (A *Matrix) RowProduct(x []float64, idx int) float64 {
	return A.Rows[idx].Center*x[idx] + A.offDiagonalProduct(x, idx)
}

// offDiagonalProduct is (A x) at idx without the diagonal term
func (A *Matrix) offDiagonalProduct(x []float64, idx int) (sum float64) {
	var (
		i, j, k = A.Coord(idx)
		ijk     = [3]int{i, j, k}
	)
	for d := 0; d < A.Dim; d++ {
		s := A.stride(d)
		if ijk[d] > 0 {
			sum += A.Rows[idx-s].Off[d] * x[idx-s]
		}
		if ijk[d]+1 < A.Size[d] {
			sum += A.Rows[idx].Off[d] * x[idx+s]
		}
	}
	return
}

// LinearSystem is A x = b over the cells of one grid
type LinearSystem struct {
	A    *Matrix
	X, B *grid.Array
}

func NewLinearSystem(dim int, size [3]int) (ls *LinearSystem) {
	ls = &LinearSystem{
		A: NewMatrix(dim, size),
		X: grid.NewArray(size),
		B: grid.NewArray(size),
	}
	return
}

func (ls *LinearSystem) Resize(dim int, size [3]int) {
	if ls.A != nil && ls.A.Dim == dim && ls.A.Size == size {
		for i := range ls.A.Rows {
			ls.A.Rows[i] = MatrixRow{}
		}
		ls.X.Fill(0)
		ls.B.Fill(0)
		return
	}
	*ls = *NewLinearSystem(dim, size)
}

// MgLinearSystem holds one system per multigrid level, level 0 is the finest
type MgLinearSystem struct {
	A    []*Matrix
	X, B []*grid.Array
}

// ResizeWithFinest builds levels by halving finest along every active axis while all are even
func (mg *MgLinearSystem) ResizeWithFinest(dim int, finest [3]int, maxLevels int) {
	sizes := LevelSizes(dim, finest, maxLevels)
	mg.A = make([]*Matrix, len(sizes))
	mg.X = make([]*grid.Array, len(sizes))
	mg.B = make([]*grid.Array, len(sizes))
	for l, size := range sizes {
		mg.A[l] = NewMatrix(dim, size)
		mg.X[l] = grid.NewArray(size)
		mg.B[l] = grid.NewArray(size)
	}
}

func (mg *MgLinearSystem) NumberOfLevels() int { return len(mg.A) }

// Level exposes level l as a flat system sharing storage
func (mg *MgLinearSystem) Level(l int) *LinearSystem {
	return &LinearSystem{A: mg.A[l], X: mg.X[l], B: mg.B[l]}
}

// LevelSizes lists the grid sizes of a multigrid hierarchy, finest first
func LevelSizes(dim int, finest [3]int, maxLevels int) (sizes [][3]int) {
	if maxLevels < 1 {
		panic(fmt.Sprintf("invalid multigrid level count %d", maxLevels))
	}
	size := finest
	sizes = append(sizes, size)
	for len(sizes) < maxLevels {
		even := true
		for d := 0; d < dim; d++ {
			if size[d]%2 != 0 || size[d] < 2 {
				even = false
			}
		}
		if !even {
			break
		}
		for d := 0; d < dim; d++ {
			size[d] /= 2
		}
		sizes = append(sizes, size)
	}
	return
}

// System is either a flat or a multigrid system, chosen once per solver configuration
type System struct {
	Flat      *LinearSystem
	Multigrid *MgLinearSystem
}

func (s System) IsMultigrid() bool { return s.Multigrid != nil }

// Finest returns the level that holds the solution
func (s System) Finest() *LinearSystem {
	if s.Multigrid != nil {
		return s.Multigrid.Level(0)
	}
	return s.Flat
}

// Mul computes out = A x
func Mul(ep utils.ExecutionPolicy, A *Matrix, x, out *grid.Array) {
	ep.ForEach(A.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			out.Data[idx] = A.RowProduct(x.Data, idx)
		}
	})
}

// Residual computes out = b - A x
func Residual(ep utils.ExecutionPolicy, A *Matrix, x, b, out *grid.Array) {
	ep.ForEach(A.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			out.Data[idx] = b.Data[idx] - A.RowProduct(x.Data, idx)
		}
	})
}

func L2Norm(v *grid.Array) float64 {
	if v.Len() == 0 {
		return 0
	}
	return floats.Norm(v.Data, 2)
}

func LInfNorm(v *grid.Array) float64 {
	if v.Len() == 0 {
		return 0
	}
	return floats.Norm(v.Data, math.Inf(1))
}

// Stats describes the outcome of the last solve
type Stats struct {
	Iterations int
	Residual   float64
	Converged  bool
}

// Solver solves a flat system in place, returning false when the tolerance was not reached
type Solver interface {
	Solve(sys *LinearSystem) bool
	LastStats() Stats
}

// MgSolver solves a multigrid system in place
type MgSolver interface {
	SolveMg(sys *MgLinearSystem) bool
	MaxLevels() int
	LastStats() Stats
}
