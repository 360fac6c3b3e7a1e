package collider

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/utils"
)

// Surface is an implicit surface, negative inside
type Surface interface {
	SignedDistance(x r3.Vec) float64
	ClosestNormal(x r3.Vec) r3.Vec
}

// numericalNormal is the normalized central difference gradient of the distance
func numericalNormal(s Surface, x r3.Vec) (n r3.Vec) {
	const eps = 1e-6
	for d := 0; d < 3; d++ {
		e := r3.Scale(eps, utils.Unit(d))
		utils.SetComp(&n, d, s.SignedDistance(r3.Add(x, e))-s.SignedDistance(r3.Sub(x, e)))
	}
	return utils.Normalize(n)
}

type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) SignedDistance(x r3.Vec) float64 {
	return r3.Norm(r3.Sub(x, s.Center)) - s.Radius
}

func (s Sphere) ClosestNormal(x r3.Vec) r3.Vec {
	r := r3.Sub(x, s.Center)
	if r3.Norm(r) == 0 {
		return r3.Vec{Y: 1}
	}
	return r3.Unit(r)
}

// Box is axis aligned. Axes where Lower equals Upper are unbounded, which is how
// a 2D box is written.
type Box struct {
	Lower, Upper r3.Vec
}

func (b Box) SignedDistance(x r3.Vec) float64 {
	var (
		outside, inside = 0., math.Inf(-1)
		bounded         bool
	)
	for d := 0; d < 3; d++ {
		lo, hi := utils.Comp(b.Lower, d), utils.Comp(b.Upper, d)
		if lo == hi {
			continue
		}
		bounded = true
		q := math.Abs(utils.Comp(x, d)-0.5*(lo+hi)) - 0.5*math.Abs(hi-lo)
		outside += math.Pow(math.Max(q, 0), 2)
		inside = math.Max(inside, q)
	}
	if !bounded {
		return math.Inf(-1)
	}
	return math.Sqrt(outside) + math.Min(inside, 0)
}

func (b Box) ClosestNormal(x r3.Vec) r3.Vec { return numericalNormal(b, x) }

// Plane is the half space below Point along Normal
type Plane struct {
	Normal r3.Vec
	Point  r3.Vec
}

func (p Plane) SignedDistance(x r3.Vec) float64 {
	return r3.Dot(r3.Sub(x, p.Point), utils.Normalize(p.Normal))
}

func (p Plane) ClosestNormal(r3.Vec) r3.Vec { return utils.Normalize(p.Normal) }

// Union is the closest of its members
type Union []Surface

func (u Union) SignedDistance(x r3.Vec) (dist float64) {
	dist = math.MaxFloat64
	for _, s := range u {
		dist = math.Min(dist, s.SignedDistance(x))
	}
	return
}

func (u Union) ClosestNormal(x r3.Vec) (n r3.Vec) {
	dist := math.MaxFloat64
	for _, s := range u {
		if d := s.SignedDistance(x); d < dist {
			dist, n = d, s.ClosestNormal(x)
		}
	}
	return
}

// Inverted swaps inside and outside, a Box container becomes walls around the domain
type Inverted struct {
	Surface
}

func (iv Inverted) SignedDistance(x r3.Vec) float64 { return -iv.Surface.SignedDistance(x) }

func (iv Inverted) ClosestNormal(x r3.Vec) r3.Vec { return r3.Scale(-1, iv.Surface.ClosestNormal(x)) }
