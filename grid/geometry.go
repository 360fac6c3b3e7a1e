package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/utils"
)

// Geometry locates a cell grid in space. Axes at or beyond Dim have a
// resolution of 1.
type Geometry struct {
	Dim        int
	Resolution [3]int
	Spacing    r3.Vec
	Origin     r3.Vec
}

func NewGeometry(dim int, resolution [3]int, spacing, origin r3.Vec) (g Geometry) {
	if dim != 2 && dim != 3 {
		panic(fmt.Sprintf("unsupported dimension %d", dim))
	}
	g = Geometry{Dim: dim, Resolution: resolution, Spacing: spacing, Origin: origin}
	for d := dim; d < 3; d++ {
		g.Resolution[d] = 1
		if utils.Comp(g.Spacing, d) == 0 {
			utils.SetComp(&g.Spacing, d, spacing.X)
		}
		utils.SetComp(&g.Origin, d, 0)
	}
	return
}

func (g Geometry) Valid() bool {
	for d := 0; d < g.Dim; d++ {
		if g.Resolution[d] <= 0 {
			return false
		}
	}
	return g.Dim == 2 || g.Dim == 3
}

func (g Geometry) NumCells() int {
	return g.Resolution[0] * g.Resolution[1] * g.Resolution[2]
}

func (g Geometry) MinSpacing() float64 {
	return utils.MinComp(g.Spacing, g.Dim)
}

// CellCenter is the position of cell (i,j,k), inactive axes stay at zero
func (g Geometry) CellCenter(i, j, k int) (x r3.Vec) {
	x = r3.Add(g.Origin, utils.Hadamard(g.Spacing,
		r3.Vec{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k) + 0.5}))
	for d := g.Dim; d < 3; d++ {
		utils.SetComp(&x, d, 0)
	}
	return
}

// CellOrigin is the position of the first cell center
func (g Geometry) CellOrigin() r3.Vec {
	return g.CellCenter(0, 0, 0)
}

func (g Geometry) BoundingBoxUpper() (upper r3.Vec) {
	upper = g.Origin
	for d := 0; d < g.Dim; d++ {
		utils.SetComp(&upper, d, utils.Comp(g.Origin, d)+utils.Comp(g.Spacing, d)*float64(g.Resolution[d]))
	}
	return
}

func (g Geometry) SameShape(o Geometry) bool {
	return g.Dim == o.Dim && g.Resolution == o.Resolution
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dD res=%v h=(%g,%g,%g) origin=(%g,%g,%g)", g.Dim, g.Resolution[:g.Dim],
		g.Spacing.X, g.Spacing.Y, g.Spacing.Z, g.Origin.X, g.Origin.Y, g.Origin.Z)
}

// Coarsened halves the resolution along every active axis and doubles the spacing
func (g Geometry) Coarsened() (c Geometry) {
	c = g
	for d := 0; d < g.Dim; d++ {
		c.Resolution[d] = int(math.Max(1, float64(g.Resolution[d]/2)))
		utils.SetComp(&c.Spacing, d, utils.Comp(g.Spacing, d)*float64(g.Resolution[d])/float64(c.Resolution[d]))
	}
	return
}
