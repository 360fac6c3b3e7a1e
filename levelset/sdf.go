package levelset

import "math"

func IsInside(phi float64) bool {
	return phi < 0
}

// SmearedHeaviside ramps from 0 to 1 over |phi| <= 1.5
func SmearedHeaviside(phi float64) float64 {
	switch {
	case phi > 1.5:
		return 1
	case phi < -1.5:
		return 0
	}
	return 0.5 + phi/3 + 0.5/math.Pi*math.Sin(math.Pi*phi/1.5)
}

func SmearedDelta(phi float64) float64 {
	if math.Abs(phi) > 1.5 {
		return 0
	}
	return 1./3. + 1./3.*math.Cos(math.Pi*phi/1.5)
}

// FractionInsideSdf is the fraction of the segment between two samples that lies inside
func FractionInsideSdf(phi0, phi1 float64) float64 {
	in0, in1 := IsInside(phi0), IsInside(phi1)
	switch {
	case in0 && in1:
		return 1
	case in0:
		return phi0 / (phi0 - phi1)
	case in1:
		return phi1 / (phi1 - phi0)
	}
	return 0
}

func cycle(list *[4]float64) {
	list[0], list[1], list[2], list[3] = list[1], list[2], list[3], list[0]
}

// FractionInside is the fraction of a square that lies inside, given the four corner values
func FractionInside(bottomLeft, bottomRight, topLeft, topRight float64) float64 {
	var (
		list  = [4]float64{bottomLeft, bottomRight, topRight, topLeft}
		count int
	)
	for _, phi := range list {
		if IsInside(phi) {
			count++
		}
	}
	switch count {
	case 4:
		return 1
	case 3:
		for IsInside(list[0]) {
			cycle(&list)
		}
		side0 := 1 - FractionInsideSdf(list[0], list[3])
		side1 := 1 - FractionInsideSdf(list[0], list[1])
		return 1 - 0.5*side0*side1
	case 2:
		for !IsInside(list[0]) || !(IsInside(list[1]) || IsInside(list[2])) {
			cycle(&list)
		}
		if IsInside(list[1]) {
			left := FractionInsideSdf(list[0], list[3])
			right := FractionInsideSdf(list[1], list[2])
			return 0.5 * (left + right)
		}
		// diagonal corners, the center decides which way the saddle opens
		middle := 0.25 * (list[0] + list[1] + list[2] + list[3])
		if IsInside(middle) {
			var area float64
			area += 0.5 * (1 - FractionInsideSdf(list[0], list[3])) * (1 - FractionInsideSdf(list[2], list[3]))
			area += 0.5 * (1 - FractionInsideSdf(list[0], list[1])) * (1 - FractionInsideSdf(list[2], list[1]))
			return 1 - area
		}
		var area float64
		area += 0.5 * FractionInsideSdf(list[0], list[1]) * FractionInsideSdf(list[0], list[3])
		area += 0.5 * FractionInsideSdf(list[2], list[1]) * FractionInsideSdf(list[2], list[3])
		return area
	case 1:
		for !IsInside(list[0]) {
			cycle(&list)
		}
		return 0.5 * FractionInsideSdf(list[0], list[3]) * FractionInsideSdf(list[0], list[1])
	}
	return 0
}

// DistanceToZeroLevelSet is the fraction of the way from sample 0 to sample 1 where phi crosses zero
func DistanceToZeroLevelSet(phi0, phi1 float64) float64 {
	if math.Abs(phi0)+math.Abs(phi1) > math.SmallestNonzeroFloat64 {
		return math.Abs(phi0) / (math.Abs(phi0) + math.Abs(phi1))
	}
	return 0.5
}
