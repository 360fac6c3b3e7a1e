package GridFluid

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gridfluid/InputParameters"
	"github.com/notargets/gridfluid/grid"
	"github.com/notargets/gridfluid/utils"
)

type countingStepper struct {
	initialized int
	limit       float64
	substeps    []float64
}

func (cs *countingStepper) Initialize() { cs.initialized++ }

func (cs *countingStepper) NumberOfSubsteps(dt float64) int {
	return max(int(math.Ceil(dt/cs.limit)), 1)
}

func (cs *countingStepper) AdvanceOneSubstep(dt float64) { cs.substeps = append(cs.substeps, dt) }

func TestPhysicsAnimation(t *testing.T) {
	{ // Test fixed substeps split the frame evenly
		cs := &countingStepper{limit: 1}
		pa := NewPhysicsAnimation(cs, nil)
		pa.UseFixedSubsteps = true
		pa.NumberOfFixedSubsteps = 4
		assert.Equal(t, -1, pa.CurrentFrame().Index)
		assert.Equal(t, 4, pa.AdvanceOneFrame(1))
		assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, cs.substeps)
		assert.Equal(t, 1, cs.initialized)
		assert.Equal(t, 0, pa.CurrentFrame().Index)
		assert.InDelta(t, 1., pa.CurrentTime(), 1e-15)
	}
	{ // Test adaptive substeps follow the stepper's count on the remaining time
		cs := &countingStepper{limit: 0.25}
		pa := NewPhysicsAnimation(cs, nil)
		assert.Equal(t, 4, pa.AdvanceOneFrame(1))
		assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, cs.substeps)
		pa.Update(Frame{Index: 3, TimeInterval: 1})
		assert.Equal(t, 3, pa.CurrentFrame().Index)
		assert.Equal(t, 4, pa.LastSubsteps())
		assert.InDelta(t, 4., pa.CurrentTime(), 1e-15)
		assert.InDelta(t, 4., pa.CurrentFrame().Time(), 1e-15)
		pa.Update(Frame{Index: 1, TimeInterval: 1})
		assert.Equal(t, 3, pa.CurrentFrame().Index)
		assert.Equal(t, 1, cs.initialized)
	}
}

func TestGridFluidSolver(t *testing.T) {
	g := grid.NewGeometry(2, [3]int{8, 8, 1}, r3.Vec{X: 0.125, Y: 0.125}, r3.Vec{})
	{ // Test the substep count is the CFL over the max CFL, rounded up
		gs := NewGridFluidSolver(g, utils.Serial{}, nil)
		gs.SetGravity(r3.Vec{})
		assert.Equal(t, 1, gs.NumberOfSubsteps(0.25))
		gs.Velocity().Fill(r3.Vec{X: 3})
		assert.Equal(t, 6., gs.Cfl(0.25))
		gs.SetMaxCfl(1)
		assert.Equal(t, 6, gs.NumberOfSubsteps(0.25))
		gs.SetMaxCfl(4)
		assert.Equal(t, 2, gs.NumberOfSubsteps(0.25))
		gs.SetMaxCfl(6)
		assert.Equal(t, 1, gs.NumberOfSubsteps(0.25))
		gs.Velocity().Fill(r3.Vec{Y: -3})
		gs.SetMaxCfl(4)
		assert.Equal(t, 2, gs.NumberOfSubsteps(0.25))
		gs.Velocity().Fill(r3.Vec{})
		gs.SetGravity(r3.Vec{Y: -8})
		gs.SetMaxCfl(1)
		assert.Equal(t, 4, gs.NumberOfSubsteps(0.25))
	}
	{ // Test viscosity and the max CFL are clamped on assignment
		gs := NewGridFluidSolver(g, nil, nil)
		assert.Equal(t, DefaultGravity, gs.Gravity())
		assert.Equal(t, DefaultMaxCfl, gs.MaxCfl())
		gs.SetViscosityCoefficient(-2)
		assert.Equal(t, 0., gs.ViscosityCoefficient())
		gs.SetMaxCfl(-1)
		assert.True(t, gs.MaxCfl() > 0)
		assert.NotNil(t, gs.BoundaryConditionSolver())
	}
	{ // Test an empty grid skips the substep without touching state
		var (
			buf    bytes.Buffer
			logger = slog.New(slog.NewTextHandler(&buf, nil))
			empty  = grid.NewGeometry(2, [3]int{0, 4, 1}, r3.Vec{X: 0.25, Y: 0.25}, r3.Vec{})
			gs     = NewGridFluidSolver(empty, utils.Serial{}, logger)
		)
		gs.Velocity().Data[0].Fill(1)
		gs.AdvanceOneSubstep(0.1)
		for _, v := range gs.Velocity().Data[0].Data {
			assert.Equal(t, 1., v)
		}
		assert.Contains(t, buf.String(), "empty grid")
	}
	{ // Test a closed box of fluid stays at rest under gravity
		gs := NewGridFluidSolver(g, utils.Threaded{}, nil)
		gs.SetViscosityCoefficient(0.01)
		substeps := gs.AdvanceOneFrame(0.05)
		assert.Equal(t, 1, substeps)
		vel := gs.Velocity()
		for d := 0; d < 2; d++ {
			assert.Less(t, vel.Data[d].AbsMax(), 1e-3)
		}
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				assert.InDelta(t, 0., vel.DivergenceAtCellCenter(i, j, 0), 1e-3)
			}
		}
		assert.InDelta(t, 0.05, gs.CurrentTime(), 1e-15)
	}
	{ // Test the begin and end hooks run once per substep
		var begins, ends int
		gs := NewGridFluidSolver(g, utils.Serial{}, nil)
		gs.UseFixedSubsteps = true
		gs.NumberOfFixedSubsteps = 3
		gs.OnBeginAdvanceTimeStep = func(float64) { begins++ }
		gs.OnEndAdvanceTimeStep = func(float64) { ends++ }
		gs.AdvanceOneFrame(0.03)
		assert.Equal(t, 3, begins)
		assert.Equal(t, 3, ends)
	}
}

func TestBuilder(t *testing.T) {
	{ // Test a domain size sets uniform spacing from the x resolution
		b := NewBuilder(2).WithResolution([3]int{4, 8, 1}).WithDomainSizeX(2).WithOrigin(r3.Vec{X: -1})
		g := b.Geometry()
		assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, g.Spacing)
		assert.Equal(t, r3.Vec{X: -1}, g.Origin)
		assert.Equal(t, [3]int{4, 8, 1}, b.Build().Geometry().Resolution)
		b.WithGridSpacing(r3.Vec{X: 0.1, Y: 0.2})
		assert.Equal(t, 0.2, b.GridSpacing().Y)
	}
}

func TestLevelSetLiquidSolver(t *testing.T) {
	var (
		g  = grid.NewGeometry(2, [3]int{16, 16, 1}, r3.Vec{X: 1. / 16, Y: 1. / 16}, r3.Vec{})
		ls = NewLevelSetLiquidSolver(g, utils.Threaded{}, nil)
	)
	ls.SignedDistanceField().FillFunc(func(x r3.Vec) float64 { return x.Y - 0.5 }, utils.Serial{})
	{ // Test the volume of a half full box
		assert.InDelta(t, 0.5, ls.ComputeVolume(), 1e-2)
		assert.Equal(t, ls.SignedDistanceField(), ls.FluidSdf())
	}
	{ // Test a resting pool stays at rest and keeps its volume
		v0 := ls.ComputeVolume()
		ls.AdvanceOneFrame(1. / 60)
		assert.InDelta(t, v0, ls.ComputeVolume(), 1e-2*v0)
		vel := ls.Velocity()
		for d := 0; d < 2; d++ {
			assert.Less(t, vel.Data[d].AbsMax(), 1e-2)
		}
		assert.InDelta(t, 3.5/16-0.5, ls.SignedDistanceField().At(3, 3, 0), 2e-2)
	}
	{ // Test global compensation restores a lost volume
		ls.GlobalCompensation = true
		v0 := ls.ComputeVolume()
		ls.addVolume(0.05)
		assert.InDelta(t, v0+0.05, ls.ComputeVolume(), 5e-3)
	}
}

func TestRun(t *testing.T) {
	scene := func(policy string) *InputParameters.SceneParameters {
		sp := &InputParameters.SceneParameters{}
		require.NoError(t, sp.Parse([]byte(`
Title: "small dam"
Resolution: [8, 8]
Frames: 2
FPS: 30
Liquid: true
Emitters:
  - Shape: {Type: box, Lower: [0, 0], Upper: [0.5, 0.5]}
    OneShot: true
Colliders:
  - Type: sphere
    Center: [0.75, 0.25]
    Radius: 0.125
`)))
		sp.Defaults()
		sp.Policy = policy
		return sp
	}
	{ // Test a liquid scene runs every frame and reports its stats
		var seen int
		stats, err := Run(scene("serial"), nil, func(FrameStats) { seen++ })
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, 2, seen)
		assert.Equal(t, 1, stats[1].Frame)
		assert.InDelta(t, 2./30, stats[1].Time, 1e-12)
		for _, fs := range stats {
			assert.GreaterOrEqual(t, fs.Substeps, 1)
			assert.Greater(t, fs.Volume, 0.)
			assert.False(t, math.IsNaN(fs.MaxSpeed))
		}
		bulk, err := Run(scene("bulk"), nil, nil)
		require.NoError(t, err)
		assert.InDelta(t, stats[1].Volume, bulk[1].Volume, 1e-6)
	}
	{ // Test a single phase scene with a density emitter and two colliders
		sp := scene("threaded")
		sp.Liquid = false
		sp.Emitters[0].Density = 1
		sp.Colliders = append(sp.Colliders, InputParameters.ShapeParameters{Type: "plane",
			Normal: []float64{0, 1}, Point: []float64{0, 0.1}})
		sc, err := NewScene(sp, nil)
		require.NoError(t, err)
		defer sc.Close()
		assert.Nil(t, sc.Liquid)
		require.NotNil(t, sc.Density)
		fs := sc.AdvanceFrame()
		assert.Equal(t, 0, fs.Frame)
		assert.Greater(t, fs.Volume, 0.)
	}
	{ // Test configuration errors are returned
		sp := scene("gpu")
		_, err := Run(sp, nil, nil)
		assert.ErrorContains(t, err, "unknown execution policy")
		sp = scene("serial")
		sp.ClosedDomain = []string{"sideways"}
		_, err = NewScene(sp, nil)
		assert.ErrorContains(t, err, "unknown boundary direction")
	}
}
