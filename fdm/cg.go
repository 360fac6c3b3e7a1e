package fdm

import (
	"math"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gridfluid/utils"
)

// CgSolver is a Jacobi preconditioned conjugate gradient solver over the CSR form of the stencil
type CgSolver struct {
	MaxIterations int
	Tolerance     float64
	Policy        utils.ExecutionPolicy
	stats         Stats
}

func NewCgSolver(maxIterations int, tolerance float64, ep utils.ExecutionPolicy) (cg *CgSolver) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	cg = &CgSolver{
		MaxIterations: maxIterations,
		Tolerance:     tolerance,
		Policy:        ep,
	}
	return
}

func (cg *CgSolver) LastStats() Stats { return cg.stats }

// ToCSR assembles the full symmetric matrix, column indices sorted within each row
func (A *Matrix) ToCSR() (csr *sparse.CSR) {
	var (
		n      = A.Len()
		indptr = make([]int, n+1)
		ind    = make([]int, 0, n*(2*A.Dim+1))
		data   = make([]float64, 0, n*(2*A.Dim+1))
	)
	for idx := 0; idx < n; idx++ {
		i, j, k := A.Coord(idx)
		ijk := [3]int{i, j, k}
		for d := A.Dim - 1; d >= 0; d-- {
			if s := A.stride(d); ijk[d] > 0 && A.Rows[idx-s].Off[d] != 0 {
				ind = append(ind, idx-s)
				data = append(data, A.Rows[idx-s].Off[d])
			}
		}
		ind = append(ind, idx)
		data = append(data, A.Rows[idx].Center)
		for d := 0; d < A.Dim; d++ {
			if s := A.stride(d); ijk[d]+1 < A.Size[d] && A.Rows[idx].Off[d] != 0 {
				ind = append(ind, idx+s)
				data = append(data, A.Rows[idx].Off[d])
			}
		}
		indptr[idx+1] = len(ind)
	}
	csr = sparse.NewCSR(n, n, indptr, ind, data)
	return
}

func csrMulVec(ep utils.ExecutionPolicy, raw *blas.SparseMatrix, x, y []float64) {
	ep.ForEach(raw.I, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			var sum float64
			for p := raw.Indptr[r]; p < raw.Indptr[r+1]; p++ {
				sum += raw.Data[p] * x[raw.Ind[p]]
			}
			y[r] = sum
		}
	})
}

func (cg *CgSolver) dot(a, b []float64) float64 {
	return cg.Policy.SumReduce(len(a), func(lo, hi int) float64 {
		return floats.Dot(a[lo:hi], b[lo:hi])
	})
}

func (cg *CgSolver) maxAbs(a []float64) float64 {
	return cg.Policy.MaxReduce(len(a), func(lo, hi int) float64 {
		return floats.Norm(a[lo:hi], math.Inf(1))
	})
}

// Solve iterates until the largest residual component is within Tolerance
func (cg *CgSolver) Solve(sys *LinearSystem) bool {
	n := sys.X.Len()
	cg.stats = Stats{}
	if n == 0 {
		cg.stats.Converged = true
		return true
	}
	var (
		raw   = sys.A.ToCSR().RawMatrix()
		x     = mat.NewVecDense(n, sys.X.Data)
		r     = mat.NewVecDense(n, nil)
		z     = mat.NewVecDense(n, nil)
		p     = mat.NewVecDense(n, nil)
		q     = mat.NewVecDense(n, nil)
		invD  = make([]float64, n)
		rRaw  = r.RawVector().Data
		zRaw  = z.RawVector().Data
		pRaw  = p.RawVector().Data
		qRaw  = q.RawVector().Data
		xRaw  = x.RawVector().Data
		apply = func(dst, src []float64) {
			cg.Policy.ForEach(n, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					dst[i] = invD[i] * src[i]
				}
			})
		}
	)
	for i, row := range sys.A.Rows {
		invD[i] = 1
		if math.Abs(row.Center) > 0 {
			invD[i] = 1 / row.Center
		}
	}
	csrMulVec(cg.Policy, raw, xRaw, rRaw)
	floats.SubTo(rRaw, sys.B.Data, rRaw)
	cg.stats.Residual = cg.maxAbs(rRaw)
	if cg.stats.Residual <= cg.Tolerance {
		cg.stats.Converged = true
		return true
	}
	apply(zRaw, rRaw)
	p.CopyVec(z)
	rz := cg.dot(rRaw, zRaw)
	for iter := 1; iter <= cg.MaxIterations; iter++ {
		csrMulVec(cg.Policy, raw, pRaw, qRaw)
		pq := cg.dot(pRaw, qRaw)
		if pq == 0 {
			break
		}
		alpha := rz / pq
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, q)
		cg.stats.Iterations = iter
		cg.stats.Residual = cg.maxAbs(rRaw)
		if cg.stats.Residual <= cg.Tolerance {
			cg.stats.Converged = true
			break
		}
		apply(zRaw, rRaw)
		rzNew := cg.dot(rRaw, zRaw)
		beta := rzNew / rz
		rz = rzNew
		p.AddScaledVec(z, beta, p)
	}
	return cg.stats.Converged
}
