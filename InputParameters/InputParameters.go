package InputParameters

import (
	"fmt"
	"strings"

	"github.com/ghodss/yaml"
)

const (
	PressureFractional   = "fractional"
	PressureFractionalMg = "fractional-mg"
)

// Parameters obtained from the YAML scene file
type SceneParameters struct {
	Title              string            `yaml:"Title"`
	Dimension          int               `yaml:"Dimension"`
	Resolution         []int             `yaml:"Resolution"`
	DomainSizeX        float64           `yaml:"DomainSizeX"`
	Origin             []float64         `yaml:"Origin"`
	Gravity            []float64         `yaml:"Gravity"`
	Viscosity          float64           `yaml:"Viscosity"`
	MaxCFL             float64           `yaml:"MaxCFL"`
	ClosedDomain       []string          `yaml:"ClosedDomain"`
	PressureSolver     string            `yaml:"PressureSolver"` // fractional or fractional-mg
	Tolerance          float64           `yaml:"Tolerance"`
	MaxIterations      int               `yaml:"MaxIterations"`
	MgLevels           int               `yaml:"MgLevels"`
	Policy             string            `yaml:"Policy"`
	ProcLimit          int               `yaml:"ProcLimit"`
	Frames             int               `yaml:"Frames"`
	FPS                float64           `yaml:"FPS"`
	FixedSubsteps      int               `yaml:"FixedSubsteps"` // 0 selects adaptive substepping
	Liquid             bool              `yaml:"Liquid"`
	GlobalCompensation bool              `yaml:"GlobalCompensation"`
	Colliders          []ShapeParameters `yaml:"Colliders"`
	Emitters           []EmitterParams   `yaml:"Emitters"`
}

// ShapeParameters describes a sphere, box or plane, optionally moving as a rigid body
type ShapeParameters struct {
	Type            string    `yaml:"Type"`
	Center          []float64 `yaml:"Center"`
	Radius          float64   `yaml:"Radius"`
	Lower           []float64 `yaml:"Lower"`
	Upper           []float64 `yaml:"Upper"`
	Normal          []float64 `yaml:"Normal"`
	Point           []float64 `yaml:"Point"`
	Inverted        bool      `yaml:"Inverted"` // solid outside the shape, for containers
	LinearVelocity  []float64 `yaml:"LinearVelocity"`
	AngularVelocity []float64 `yaml:"AngularVelocity"`
	Friction        float64   `yaml:"Friction"`
}

// EmitterParams fills the liquid level set or a density field inside Shape
type EmitterParams struct {
	Shape    ShapeParameters `yaml:"Shape"`
	OneShot  bool            `yaml:"OneShot"`
	Velocity []float64       `yaml:"Velocity"`
	Density  float64         `yaml:"Density"`
}

const ExampleFile = `
########################################
Title: "Dam Break"
Dimension: 2
Resolution: [64, 64]
DomainSizeX: 1.
Gravity: [0, -9.8]
MaxCFL: 5
ClosedDomain: [all]
PressureSolver: fractional    # or fractional-mg
Tolerance: 1.e-6
MaxIterations: 200
Policy: threaded              # or bulk, serial
Frames: 60
FPS: 60
Liquid: true
Emitters:
  - Shape: {Type: box, Lower: [0, 0], Upper: [0.3, 0.6]}
    OneShot: true
Colliders:
  - Type: sphere
    Center: [0.7, 0.2]
    Radius: 0.1
########################################
`

func (sp *SceneParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, sp)
}

// Defaults fills every unset field
func (sp *SceneParameters) Defaults() {
	if sp.Dimension == 0 {
		sp.Dimension = 2
	}
	if len(sp.Resolution) == 0 {
		sp.Resolution = []int{32, 32, 32}[:min(sp.Dimension, 3)]
	}
	if sp.DomainSizeX == 0 {
		sp.DomainSizeX = 1
	}
	if len(sp.Gravity) == 0 {
		sp.Gravity = []float64{0, -9.8}
	}
	if sp.MaxCFL == 0 {
		sp.MaxCFL = 5
	}
	if len(sp.ClosedDomain) == 0 {
		sp.ClosedDomain = []string{"all"}
	}
	if sp.PressureSolver == "" {
		sp.PressureSolver = PressureFractional
	}
	if sp.Tolerance == 0 {
		sp.Tolerance = 1.e-6
	}
	if sp.MaxIterations == 0 {
		sp.MaxIterations = 200
	}
	if sp.MgLevels == 0 {
		sp.MgLevels = 5
	}
	if sp.Policy == "" {
		sp.Policy = "threaded"
	}
	if sp.Frames == 0 {
		sp.Frames = 60
	}
	if sp.FPS == 0 {
		sp.FPS = 60
	}
}

func (sp *SceneParameters) Validate() (err error) {
	var problems []string
	if sp.Dimension != 2 && sp.Dimension != 3 {
		problems = append(problems, fmt.Sprintf("dimension must be 2 or 3, have %d", sp.Dimension))
	}
	if len(sp.Resolution) < sp.Dimension {
		problems = append(problems, fmt.Sprintf("need %d resolution values, have %v", sp.Dimension, sp.Resolution))
	}
	for _, n := range sp.Resolution {
		if n <= 0 {
			problems = append(problems, fmt.Sprintf("resolution must be positive, have %v", sp.Resolution))
			break
		}
	}
	if sp.DomainSizeX <= 0 {
		problems = append(problems, fmt.Sprintf("domain size must be positive, have %g", sp.DomainSizeX))
	}
	if sp.Viscosity < 0 {
		problems = append(problems, fmt.Sprintf("viscosity must not be negative, have %g", sp.Viscosity))
	}
	if sp.FPS <= 0 {
		problems = append(problems, fmt.Sprintf("frames per second must be positive, have %g", sp.FPS))
	}
	switch strings.ToLower(sp.PressureSolver) {
	case PressureFractional, PressureFractionalMg:
	default:
		problems = append(problems, fmt.Sprintf("unknown pressure solver %q", sp.PressureSolver))
	}
	for i, c := range sp.Colliders {
		if e := c.validate(); e != nil {
			problems = append(problems, fmt.Sprintf("collider %d: %s", i, e))
		}
	}
	for i, e := range sp.Emitters {
		if e2 := e.Shape.validate(); e2 != nil {
			problems = append(problems, fmt.Sprintf("emitter %d: %s", i, e2))
		}
	}
	if len(problems) != 0 {
		err = fmt.Errorf("invalid scene %q: %s", sp.Title, strings.Join(problems, "; "))
	}
	return
}

func (sh ShapeParameters) validate() error {
	switch strings.ToLower(sh.Type) {
	case "sphere":
		if sh.Radius <= 0 {
			return fmt.Errorf("sphere radius must be positive, have %g", sh.Radius)
		}
	case "box":
		if len(sh.Lower) == 0 || len(sh.Upper) == 0 {
			return fmt.Errorf("box needs Lower and Upper corners")
		}
	case "plane":
		if len(sh.Normal) == 0 {
			return fmt.Errorf("plane needs a Normal")
		}
	default:
		return fmt.Errorf("unknown shape type %q", sh.Type)
	}
	return nil
}

func (sp *SceneParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%d]\t\t\t\t= Dimension\n", sp.Dimension)
	fmt.Printf("%v\t\t\t= Resolution\n", sp.Resolution)
	fmt.Printf("%8.5f\t\t= DomainSizeX\n", sp.DomainSizeX)
	fmt.Printf("%v\t\t\t= Gravity\n", sp.Gravity)
	fmt.Printf("%8.5f\t\t= Viscosity\n", sp.Viscosity)
	fmt.Printf("%8.5f\t\t= MaxCFL\n", sp.MaxCFL)
	fmt.Printf("%v\t\t\t= Closed Domain\n", sp.ClosedDomain)
	fmt.Printf("[%s]\t\t= Pressure Solver\n", sp.PressureSolver)
	fmt.Printf("%8.2e\t\t= Tolerance\n", sp.Tolerance)
	fmt.Printf("[%s]\t\t= Execution Policy\n", sp.Policy)
	fmt.Printf("[%d]\t\t\t\t= Frames\n", sp.Frames)
	fmt.Printf("%8.5f\t\t= FPS\n", sp.FPS)
	if sp.FixedSubsteps > 0 {
		fmt.Printf("[%d]\t\t\t\t= Fixed Substeps\n", sp.FixedSubsteps)
	} else {
		fmt.Printf("[adaptive]\t\t= Substeps\n")
	}
	fmt.Printf("[%v]\t\t\t= Liquid\n", sp.Liquid)
	for i, c := range sp.Colliders {
		fmt.Printf("Colliders[%d] = %s\n", i, c.Type)
	}
	for i, e := range sp.Emitters {
		fmt.Printf("Emitters[%d] = %s oneShot=%v\n", i, e.Shape.Type, e.OneShot)
	}
}
