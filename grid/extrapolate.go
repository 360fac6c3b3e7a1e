package grid

import (
	"fmt"

	"github.com/notargets/gridfluid/utils"
)

// ExtrapolateToRegion grows values from the valid samples of input into the invalid
// ones, each iteration setting invalid samples that touch a valid one to the mean
// of those neighbors. Samples out of reach after iterations keep the input value.
func ExtrapolateToRegion(ep utils.ExecutionPolicy, input *Array, valid []bool, iterations int, output *Array) {
	if !input.SameShape(output) || len(valid) != input.Len() {
		panic(fmt.Sprintf("extrapolate shape mismatch: %v vs %v", input.Size(), output.Size()))
	}
	if ep == nil {
		ep = utils.DefaultPolicy
	}
	var (
		size      = input.Size()
		prev      = input.Clone()
		validPrev = append([]bool{}, valid...)
		validNext = append([]bool{}, valid...)
	)
	output.CopyFrom(input)
	for iter := 0; iter < iterations; iter++ {
		ep.ForEach(input.Len(), func(lo, hi int) {
			for idx := lo; idx < hi; idx++ {
				if validPrev[idx] {
					continue
				}
				var (
					i, j, k = input.Coord(idx)
					ijk     = [3]int{i, j, k}
					sum     float64
					count   int
				)
				for d := 0; d < 3; d++ {
					for _, step := range [2]int{-1, 1} {
						nb := ijk
						nb[d] += step
						if nb[d] < 0 || nb[d] >= size[d] {
							continue
						}
						if n := input.Index(nb[0], nb[1], nb[2]); validPrev[n] {
							sum += prev.Data[n]
							count++
						}
					}
				}
				if count > 0 {
					output.Data[idx] = sum / float64(count)
					validNext[idx] = true
				}
			}
		})
		prev.CopyFrom(output)
		copy(validPrev, validNext)
	}
}
