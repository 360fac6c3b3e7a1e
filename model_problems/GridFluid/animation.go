package GridFluid

import (
	"log/slog"
	"math"
	"time"
)

// Frame is one fixed interval of animation time
type Frame struct {
	Index        int
	TimeInterval float64
}

// Time is the animation time at the end of the frame
func (f Frame) Time() float64 {
	return float64(f.Index+1) * f.TimeInterval
}

// TimeStepper is what a PhysicsAnimation advances
type TimeStepper interface {
	Initialize()
	NumberOfSubsteps(dt float64) int
	AdvanceOneSubstep(dt float64)
}

// PhysicsAnimation splits frames into substeps, either a fixed number of equal ones or as many as the
// stepper asks for on the time remaining in the frame.
type PhysicsAnimation struct {
	UseFixedSubsteps      bool
	NumberOfFixedSubsteps int
	Logger                *slog.Logger
	stepper               TimeStepper
	frame                 Frame
	currentTime           float64
	lastSubsteps          int
}

func NewPhysicsAnimation(stepper TimeStepper, logger *slog.Logger) (pa *PhysicsAnimation) {
	if logger == nil {
		logger = slog.Default()
	}
	pa = &PhysicsAnimation{
		NumberOfFixedSubsteps: 1,
		Logger:                logger,
		stepper:               stepper,
		frame:                 Frame{Index: -1},
	}
	return
}

// CurrentFrame is the last completed frame, index -1 before the first one
func (pa *PhysicsAnimation) CurrentFrame() Frame { return pa.frame }

func (pa *PhysicsAnimation) CurrentTime() float64 { return pa.currentTime }

// LastSubsteps is the number of substeps taken by the most recent frame
func (pa *PhysicsAnimation) LastSubsteps() int { return pa.lastSubsteps }

// AdvanceOneFrame moves the animation forward by dt and returns the substeps taken
func (pa *PhysicsAnimation) AdvanceOneFrame(dt float64) (substeps int) {
	next := pa.frame
	next.Index++
	next.TimeInterval = dt
	pa.Update(next)
	substeps = pa.lastSubsteps
	return
}

// Update advances every frame between the current one and f, doing nothing when f is not ahead
func (pa *PhysicsAnimation) Update(f Frame) {
	if f.Index <= pa.frame.Index {
		return
	}
	if pa.frame.Index < 0 {
		pa.stepper.Initialize()
	}
	for n := f.Index - pa.frame.Index; n > 0; n-- {
		pa.lastSubsteps = pa.advanceTimeStep(f.TimeInterval)
		pa.Logger.Info("advanced frame", "substeps", pa.lastSubsteps, "time", pa.currentTime)
	}
	pa.frame = f
}

func (pa *PhysicsAnimation) advanceTimeStep(dt float64) (substeps int) {
	if pa.UseFixedSubsteps {
		n := max(pa.NumberOfFixedSubsteps, 1)
		subDt := dt / float64(n)
		for ; substeps < n; substeps++ {
			pa.substep(subDt)
		}
		return
	}
	remaining := dt
	for remaining > math.SmallestNonzeroFloat64 {
		n := pa.stepper.NumberOfSubsteps(remaining)
		subDt := remaining / float64(n)
		pa.Logger.Debug("adaptive substep", "substeps", n, "dt", subDt)
		pa.substep(subDt)
		remaining -= subDt
		substeps++
		if n == 1 {
			break
		}
	}
	return
}

func (pa *PhysicsAnimation) substep(dt float64) {
	start := time.Now()
	pa.stepper.AdvanceOneSubstep(dt)
	pa.currentTime += dt
	pa.Logger.Debug("substep", "dt", dt, "elapsed", time.Since(start))
}
