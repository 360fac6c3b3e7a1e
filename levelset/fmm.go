package levelset

import (
	"container/heap"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

// Solver maintains signed distance fields and extends quantities across an interface
type Solver interface {
	Reinitialize(input *grid.ScalarGrid, maxDistance float64, output *grid.ScalarGrid)
	Extrapolate(input *grid.ScalarGrid, sdf grid.ScalarField, maxDistance float64, output *grid.ScalarGrid)
	ExtrapolateCollocated(input *grid.CollocatedVectorGrid, sdf grid.ScalarField, maxDistance float64,
		output *grid.CollocatedVectorGrid)
	ExtrapolateFaceCentered(input *grid.FaceCenteredGrid, sdf grid.ScalarField, maxDistance float64,
		output *grid.FaceCenteredGrid)
}

type Marker byte

const (
	Unknown Marker = iota
	Trial
	Known
)

// FmmSolver is a Fast Marching Method level set solver. Marker setup and the
// interface band seeding run under Policy, the marching front is sequential.
type FmmSolver struct {
	Policy utils.ExecutionPolicy
}

func NewFmmSolver(ep utils.ExecutionPolicy) (fs *FmmSolver) {
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	fs = &FmmSolver{Policy: ep}
	return
}

// Reinitialize rebuilds a true signed distance from input out to maxDistance.
// Cells the front never reaches keep their input value.
func (fs *FmmSolver) Reinitialize(input *grid.ScalarGrid, maxDistance float64, output *grid.ScalarGrid) {
	if !input.SameShape(output.Geometry) {
		panic(fmt.Sprintf("reinitialize shape mismatch: %v vs %v", input.Resolution, output.Resolution))
	}
	fs.reinitialize(input.Data, input.Dim, input.Spacing, maxDistance, output.Data)
}

func (fs *FmmSolver) reinitialize(in *grid.Array, dim int, h r3.Vec, maxDistance float64, out *grid.Array) {
	var (
		n       = in.Len()
		band    = make([]bool, n)
		markers = make([]Marker, n)
	)
	out.CopyFrom(in)
	fs.Policy.ForEach(n, func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			i, j, k := in.Coord(idx)
			if d, ok := seedDistance(in, dim, h, i, j, k); ok {
				band[idx] = true
				if IsInside(in.Data[idx]) {
					d = -d
				}
				out.Data[idx] = d
			}
		}
	})
	// Outward pass, then the inward pass on the negated field
	for pass := 0; pass < 2; pass++ {
		fs.Policy.ForEach(n, func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				if IsInside(out.Data[idx]) || band[idx] {
					markers[idx] = Known
				} else {
					markers[idx] = Unknown
				}
			}
		})
		q := newMarchQueue(n)
		for idx := 0; idx < n; idx++ {
			if markers[idx] != Known && hasKnownNeighbor(markers, out, dim, idx) {
				i, j, k := out.Coord(idx)
				markers[idx] = Trial
				q.update(idx, solveEikonal(markers, out, dim, h, i, j, k))
			}
		}
		for q.Len() > 0 {
			idx, dist := q.popMin()
			if dist > maxDistance {
				break
			}
			out.Data[idx] = dist
			markers[idx] = Known
			forEachNeighbor(out, dim, idx, func(nbr int) {
				if markers[nbr] == Known {
					return
				}
				i, j, k := out.Coord(nbr)
				markers[nbr] = Trial
				q.update(nbr, solveEikonal(markers, out, dim, h, i, j, k))
			})
		}
		fs.Policy.ForEach(n, func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				out.Data[idx] = -out.Data[idx]
			}
		})
	}
}

// Extrapolate copies input inside sdf <= 0 and extends it outward along the sdf gradient up to maxDistance
func (fs *FmmSolver) Extrapolate(input *grid.ScalarGrid, sdf grid.ScalarField, maxDistance float64,
	output *grid.ScalarGrid) {
	if !input.SameShape(output.Geometry) {
		panic(fmt.Sprintf("extrapolate shape mismatch: %v vs %v", input.Resolution, output.Resolution))
	}
	sdfArr := fs.sampleSdf(input.Data, sdf, input.DataPosition)
	fs.extrapolate(input.Data, sdfArr, input.Dim, input.Spacing, maxDistance, output.Data)
}

func (fs *FmmSolver) ExtrapolateCollocated(input *grid.CollocatedVectorGrid, sdf grid.ScalarField,
	maxDistance float64, output *grid.CollocatedVectorGrid) {
	if !input.SameShape(output.Geometry) {
		panic(fmt.Sprintf("extrapolate shape mismatch: %v vs %v", input.Resolution, output.Resolution))
	}
	sdfArr := fs.sampleSdf(input.Data[0], sdf, input.CellCenter)
	for d := 0; d < input.Dim; d++ {
		fs.extrapolate(input.Data[d], sdfArr, input.Dim, input.Spacing, maxDistance, output.Data[d])
	}
}

func (fs *FmmSolver) ExtrapolateFaceCentered(input *grid.FaceCenteredGrid, sdf grid.ScalarField,
	maxDistance float64, output *grid.FaceCenteredGrid) {
	if !input.SameShape(output.Geometry) {
		panic(fmt.Sprintf("extrapolate shape mismatch: %v vs %v", input.Resolution, output.Resolution))
	}
	for d := 0; d < input.Dim; d++ {
		axis := d
		sdfArr := fs.sampleSdf(input.Data[d], sdf, func(i, j, k int) r3.Vec {
			return input.FacePosition(axis, i, j, k)
		})
		fs.extrapolate(input.Data[d], sdfArr, input.Dim, input.Spacing, maxDistance, output.Data[d])
	}
}

func (fs *FmmSolver) sampleSdf(like *grid.Array, sdf grid.ScalarField,
	position func(i, j, k int) r3.Vec) (sdfArr *grid.Array) {
	sdfArr = grid.NewArray(like.Size())
	fs.Policy.ForEach(sdfArr.Len(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			sdfArr.Data[idx] = sdf.Sample(position(sdfArr.Coord(idx)))
		}
	})
	return
}

func (fs *FmmSolver) extrapolate(in, sdf *grid.Array, dim int, h r3.Vec, maxDistance float64, out *grid.Array) {
	var (
		n       = in.Len()
		markers = make([]Marker, n)
	)
	out.CopyFrom(in)
	fs.Policy.ForEach(n, func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			if sdf.Data[idx] <= 0 {
				markers[idx] = Known
			} else {
				markers[idx] = Unknown
			}
		}
	})
	q := newMarchQueue(n)
	for idx := 0; idx < n; idx++ {
		if markers[idx] != Known && hasKnownNeighbor(markers, out, dim, idx) {
			markers[idx] = Trial
			q.update(idx, sdf.Data[idx])
		}
	}
	for q.Len() > 0 {
		idx, dist := q.popMin()
		if dist > maxDistance {
			break
		}
		i, j, k := out.Coord(idx)
		out.Data[idx] = upwindAverage(markers, out, sdf, dim, h, i, j, k)
		markers[idx] = Known
		forEachNeighbor(out, dim, idx, func(nbr int) {
			if markers[nbr] == Unknown {
				markers[nbr] = Trial
				q.update(nbr, sdf.Data[nbr])
			}
		})
	}
}

// upwindAverage weights Known neighbors by how far upwind of the sdf gradient they lie
func upwindAverage(markers []Marker, out, sdf *grid.Array, dim int, h r3.Vec, i, j, k int) float64 {
	var (
		grad     = utils.Normalize(grid.GradientAtIndex(sdf, dim, h, i, j, k))
		size     = out.Size()
		ijk      = [3]int{i, j, k}
		vals     [6]float64
		weights  [6]float64
		nContrib int
		total    float64
	)
	for d := 0; d < dim; d++ {
		var (
			g    = utils.Comp(grad, d)
			invH = 1 / utils.Comp(h, d)
		)
		if ijk[d] > 0 {
			nbr := ijk
			nbr[d]--
			if idx := out.Index(nbr[0], nbr[1], nbr[2]); markers[idx] == Known {
				vals[nContrib], weights[nContrib] = out.Data[idx], math.Max(g, 0)*invH
				total += weights[nContrib]
				nContrib++
			}
		}
		if ijk[d]+1 < size[d] {
			nbr := ijk
			nbr[d]++
			if idx := out.Index(nbr[0], nbr[1], nbr[2]); markers[idx] == Known {
				vals[nContrib], weights[nContrib] = out.Data[idx], -math.Min(g, 0)*invH
				total += weights[nContrib]
				nContrib++
			}
		}
	}
	if nContrib == 0 {
		panic(fmt.Sprintf("no known neighbor at (%d,%d,%d)", i, j, k))
	}
	if total < math.SmallestNonzeroFloat64 {
		// flat sdf, fall back to a plain average
		for c := 0; c < nContrib; c++ {
			weights[c] = 1
		}
		total = float64(nContrib)
	}
	var sum float64
	for c := 0; c < nContrib; c++ {
		sum += weights[c] * vals[c]
	}
	return sum / total
}

// seedDistance estimates the distance to the zero crossing from cells next to a sign change
func seedDistance(in *grid.Array, dim int, h r3.Vec, i, j, k int) (dist float64, ok bool) {
	var (
		phi    = in.At(i, j, k)
		inside = IsInside(phi)
		size   = in.Size()
		ijk    = [3]int{i, j, k}
		invSum float64
	)
	for d := 0; d < dim; d++ {
		var (
			axisDist = math.Inf(1)
			found    bool
		)
		for _, off := range [2]int{-1, 1} {
			nbr := ijk
			nbr[d] += off
			if nbr[d] < 0 || nbr[d] >= size[d] {
				continue
			}
			phiN := in.At(nbr[0], nbr[1], nbr[2])
			if IsInside(phiN) != inside {
				found = true
				axisDist = math.Min(axisDist, utils.Comp(h, d)*DistanceToZeroLevelSet(phi, phiN))
			}
		}
		if found {
			ok = true
			invSum += 1 / (axisDist * axisDist)
		}
	}
	if ok {
		dist = 1 / math.Sqrt(invSum)
	}
	return
}

// solveEikonal solves the upwind |grad phi| = 1 discretization from the Known neighbors of (i,j,k)
func solveEikonal(markers []Marker, out *grid.Array, dim int, h r3.Vec, i, j, k int) (solution float64) {
	var (
		size    = out.Size()
		ijk     = [3]int{i, j, k}
		a, b, c = 0., 0., -1.
		maxPhi  = math.Inf(-1)
		has     bool
	)
	solution = math.Inf(1)
	for d := 0; d < dim; d++ {
		var (
			phiA  = math.Inf(1)
			found bool
		)
		for _, off := range [2]int{-1, 1} {
			nbr := ijk
			nbr[d] += off
			if nbr[d] < 0 || nbr[d] >= size[d] {
				continue
			}
			if idx := out.Index(nbr[0], nbr[1], nbr[2]); markers[idx] == Known {
				found = true
				phiA = math.Min(phiA, out.Data[idx])
			}
		}
		if !found {
			continue
		}
		has = true
		hd := utils.Comp(h, d)
		solution = math.Min(solution, phiA+hd)
		maxPhi = math.Max(maxPhi, phiA)
		invH2 := 1 / (hd * hd)
		a += invH2
		b -= phiA * invH2
		c += phiA * phiA * invH2
	}
	if !has {
		panic(fmt.Sprintf("no known neighbor at (%d,%d,%d)", i, j, k))
	}
	if det := b*b - a*c; det > 0 {
		if quad := (-b + math.Sqrt(det)) / a; quad >= maxPhi {
			solution = math.Min(solution, quad)
		}
	}
	return
}

func forEachNeighbor(arr *grid.Array, dim, idx int, fn func(nbr int)) {
	var (
		size    = arr.Size()
		i, j, k = arr.Coord(idx)
		ijk     = [3]int{i, j, k}
	)
	for d := 0; d < dim; d++ {
		if ijk[d] > 0 {
			nbr := ijk
			nbr[d]--
			fn(arr.Index(nbr[0], nbr[1], nbr[2]))
		}
		if ijk[d]+1 < size[d] {
			nbr := ijk
			nbr[d]++
			fn(arr.Index(nbr[0], nbr[1], nbr[2]))
		}
	}
}

func hasKnownNeighbor(markers []Marker, arr *grid.Array, dim, idx int) (found bool) {
	forEachNeighbor(arr, dim, idx, func(nbr int) {
		if markers[nbr] == Known {
			found = true
		}
	})
	return
}

// marchQueue is a min-heap of cells keyed by candidate distance, with decrease-key
type marchQueue struct {
	cells []int
	key   []float64
	pos   []int // heap slot of each cell, -1 when absent
}

func newMarchQueue(n int) (q *marchQueue) {
	q = &marchQueue{
		cells: make([]int, 0, n/4+1),
		key:   make([]float64, n),
		pos:   make([]int, n),
	}
	for i := range q.pos {
		q.pos[i] = -1
	}
	return
}

func (q *marchQueue) Len() int { return len(q.cells) }

func (q *marchQueue) Less(a, b int) bool { return q.key[q.cells[a]] < q.key[q.cells[b]] }

func (q *marchQueue) Swap(a, b int) {
	q.cells[a], q.cells[b] = q.cells[b], q.cells[a]
	q.pos[q.cells[a]] = a
	q.pos[q.cells[b]] = b
}

func (q *marchQueue) Push(x any) {
	cell := x.(int)
	q.pos[cell] = len(q.cells)
	q.cells = append(q.cells, cell)
}

func (q *marchQueue) Pop() any {
	last := len(q.cells) - 1
	cell := q.cells[last]
	q.cells = q.cells[:last]
	q.pos[cell] = -1
	return cell
}

// update inserts cell or lowers its key
func (q *marchQueue) update(cell int, key float64) {
	if p := q.pos[cell]; p >= 0 {
		if key < q.key[cell] {
			q.key[cell] = key
			heap.Fix(q, p)
		}
		return
	}
	q.key[cell] = key
	heap.Push(q, cell)
}

func (q *marchQueue) popMin() (cell int, key float64) {
	cell = heap.Pop(q).(int)
	key = q.key[cell]
	return
}
