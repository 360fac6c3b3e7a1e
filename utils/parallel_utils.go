package utils

import (
	"runtime"
	"sync"
)

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket returns the partition holding global index idx, or -1 when idx is out of range
func (pm *PartitionMap) GetBucket(idx int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(idx)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(idx int) (tryCount, bucketNum, min, max int) {
	if idx < 0 || idx >= pm.MaxIndex {
		return 0, -1, 0, 0
	}
	// Initial guess
	bucketNum = int(float64(pm.ParallelDegree*idx) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= idx && pm.Partitions[bucketNum][1] > idx) {
		if pm.Partitions[bucketNum][0] > idx {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (iMin, iMax int) {
	iMin, iMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetLocalIndex(globalIdx int) (idx, localMax, bn int) {
	var (
		imin, imax int
	)
	bn, imin, imax = pm.GetBucket(globalIdx)
	localMax = imax - imin
	idx = globalIdx - imin
	return
}

func (pm *PartitionMap) GetGlobalIndex(localIdx, bn int) (globalIdx int) {
	if bn == -1 {
		globalIdx = localIdx
		return
	}
	globalIdx = pm.Partitions[bn][0] + localIdx
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (iMax int) {
	if bn == -1 {
		iMax = pm.MaxIndex
		return
	}
	var (
		i1, i2 = pm.GetBucketRange(bn)
	)
	iMax = i2 - i1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// Split one dimension into ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// SetParallelDegree picks the number of partitions for a loop over maxIndex items
func SetParallelDegree(procLimit, maxIndex int) (np int) {
	np = runtime.NumCPU()
	if procLimit > 0 && procLimit < np {
		np = procLimit
	}
	if np > maxIndex {
		np = maxIndex
	}
	if np < 1 {
		np = 1
	}
	return
}

type workItem struct {
	lo, hi int
	bucket int
	kernel func(lo, hi int) float64
	result []float64
	wg     *sync.WaitGroup
}

// WorkerPool is a set of persistent goroutines fed whole partitions at a time
type WorkerPool struct {
	NumWorkers int
	work       chan workItem
	stop       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

func NewWorkerPool(numWorkers int) (wp *WorkerPool) {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	wp = &WorkerPool{
		NumWorkers: numWorkers,
	}
	return
}

func (wp *WorkerPool) start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.running {
		return
	}
	wp.work = make(chan workItem, wp.NumWorkers)
	wp.stop = make(chan struct{})
	wp.running = true
	for i := 0; i < wp.NumWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.stop:
			return
		case w := <-wp.work:
			w.result[w.bucket] = w.kernel(w.lo, w.hi)
			w.wg.Done()
		}
	}
}

// Dispatch runs kernel once per partition of pm and returns the per-partition results
func (wp *WorkerPool) Dispatch(pm *PartitionMap, kernel func(lo, hi int) float64) (results []float64) {
	wp.start()
	var (
		wg sync.WaitGroup
	)
	results = make([]float64, pm.ParallelDegree)
	wg.Add(pm.ParallelDegree)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		lo, hi := pm.GetBucketRange(bn)
		wp.work <- workItem{lo: lo, hi: hi, bucket: bn, kernel: kernel, result: results, wg: &wg}
	}
	wg.Wait()
	return
}

// Close stops the workers, the pool restarts on the next Dispatch
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.running {
		return
	}
	close(wp.stop)
	wp.wg.Wait()
	wp.running = false
}
