package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/exascience/pargo/parallel"
)

// ExecutionPolicy dispatches a per-index kernel over [0, n). Every policy runs the
// same kernel bodies, so results only differ by floating point reassociation.
type ExecutionPolicy interface {
	Name() string
	ForEach(n int, kernel func(lo, hi int))
	SumReduce(n int, kernel func(lo, hi int) float64) float64
	MaxReduce(n int, kernel func(lo, hi int) float64) float64
}

type PolicyType uint8

const (
	SerialPolicy PolicyType = iota
	ThreadedPolicy
	BulkPolicy
)

var PolicyNames = map[string]PolicyType{
	"serial":   SerialPolicy,
	"threaded": ThreadedPolicy,
	"bulk":     BulkPolicy,
}

func (pt PolicyType) String() string {
	for name, p := range PolicyNames {
		if p == pt {
			return name
		}
	}
	return "unknown"
}

func NewExecutionPolicy(name string, procLimit int) (ep ExecutionPolicy, err error) {
	pt, ok := PolicyNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		err = fmt.Errorf("unknown execution policy %q", name)
		return
	}
	switch pt {
	case SerialPolicy:
		ep = Serial{}
	case ThreadedPolicy:
		ep = Threaded{Grain: 0}
	case BulkPolicy:
		ep = NewBulk(procLimit)
	}
	return
}

// DefaultPolicy is used by solvers that were not given one
var DefaultPolicy ExecutionPolicy = Threaded{}

type Serial struct{}

func (Serial) Name() string { return "serial" }

func (Serial) ForEach(n int, kernel func(lo, hi int)) {
	if n > 0 {
		kernel(0, n)
	}
}

func (Serial) SumReduce(n int, kernel func(lo, hi int) float64) float64 {
	if n <= 0 {
		return 0
	}
	return kernel(0, n)
}

func (Serial) MaxReduce(n int, kernel func(lo, hi int) float64) float64 {
	if n <= 0 {
		return math.Inf(-1)
	}
	return kernel(0, n)
}

// Threaded runs kernels on goroutines through pargo. Grain is the pargo
// split count, 0 lets pargo pick.
type Threaded struct {
	Grain int
}

func (Threaded) Name() string { return "threaded" }

func (tp Threaded) ForEach(n int, kernel func(lo, hi int)) {
	if n <= 0 {
		return
	}
	parallel.Range(0, n, tp.Grain, kernel)
}

func (tp Threaded) SumReduce(n int, kernel func(lo, hi int) float64) float64 {
	if n <= 0 {
		return 0
	}
	return parallel.RangeReduceFloat64(0, n, tp.Grain, kernel,
		func(x, y float64) float64 { return x + y })
}

func (tp Threaded) MaxReduce(n int, kernel func(lo, hi int) float64) float64 {
	if n <= 0 {
		return math.Inf(-1)
	}
	return parallel.RangeReduceFloat64(0, n, tp.Grain, kernel, math.Max)
}

// Bulk hands each loop to a persistent worker pool as one batch of partitions
type Bulk struct {
	ProcLimit int
	pool      *WorkerPool
}

func NewBulk(procLimit int) (bp *Bulk) {
	bp = &Bulk{
		ProcLimit: procLimit,
		pool:      NewWorkerPool(SetParallelDegree(procLimit, math.MaxInt32)),
	}
	return
}

func (*Bulk) Name() string { return "bulk" }

func (bp *Bulk) dispatch(n int, kernel func(lo, hi int) float64) []float64 {
	pm := NewPartitionMap(SetParallelDegree(bp.ProcLimit, n), n)
	return bp.pool.Dispatch(pm, kernel)
}

func (bp *Bulk) ForEach(n int, kernel func(lo, hi int)) {
	if n <= 0 {
		return
	}
	bp.dispatch(n, func(lo, hi int) float64 {
		kernel(lo, hi)
		return 0
	})
}

func (bp *Bulk) SumReduce(n int, kernel func(lo, hi int) float64) (sum float64) {
	if n <= 0 {
		return 0
	}
	for _, r := range bp.dispatch(n, kernel) {
		sum += r
	}
	return
}

func (bp *Bulk) MaxReduce(n int, kernel func(lo, hi int) float64) (mx float64) {
	mx = math.Inf(-1)
	if n <= 0 {
		return
	}
	for _, r := range bp.dispatch(n, kernel) {
		mx = math.Max(mx, r)
	}
	return
}

func (bp *Bulk) Close() {
	bp.pool.Close()
}
