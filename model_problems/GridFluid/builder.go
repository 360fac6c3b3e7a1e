package GridFluid

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

// Builder collects the grid layout of a solver. A domain size along x overrides the spacing with
// uniform cells of domainSizeX / resolution.
type Builder struct {
	dim           int
	resolution    [3]int
	spacing       r3.Vec
	origin        r3.Vec
	domainSizeX   float64
	useDomainSize bool
	policy        utils.ExecutionPolicy
	logger        *slog.Logger
}

func NewBuilder(dim int) *Builder {
	return &Builder{
		dim:         dim,
		resolution:  [3]int{1, 1, 1},
		spacing:     r3.Vec{X: 1, Y: 1, Z: 1},
		domainSizeX: 1,
	}
}

func (b *Builder) WithResolution(resolution [3]int) *Builder {
	b.resolution = resolution
	return b
}

func (b *Builder) WithGridSpacing(spacing r3.Vec) *Builder {
	b.spacing = spacing
	b.useDomainSize = false
	return b
}

func (b *Builder) WithDomainSizeX(domainSizeX float64) *Builder {
	b.domainSizeX = domainSizeX
	b.useDomainSize = true
	return b
}

func (b *Builder) WithOrigin(origin r3.Vec) *Builder {
	b.origin = origin
	return b
}

func (b *Builder) WithPolicy(ep utils.ExecutionPolicy) *Builder {
	b.policy = ep
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) GridSpacing() (spacing r3.Vec) {
	spacing = b.spacing
	if b.useDomainSize && b.resolution[0] > 0 {
		h := b.domainSizeX / float64(b.resolution[0])
		spacing = r3.Vec{X: h, Y: h, Z: h}
	}
	return
}

func (b *Builder) Geometry() grid.Geometry {
	return grid.NewGeometry(b.dim, b.resolution, b.GridSpacing(), b.origin)
}

func (b *Builder) Build() *GridFluidSolver {
	return NewGridFluidSolver(b.Geometry(), b.policy, b.logger)
}

func (b *Builder) BuildLevelSetLiquid() *LevelSetLiquidSolver {
	return NewLevelSetLiquidSolver(b.Geometry(), b.policy, b.logger)
}
