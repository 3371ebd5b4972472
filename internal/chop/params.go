package chop

import (
	"sync"

	"github.com/dj-oyu/pb-receiver/internal/channels"
)

// Parameter names declared to the host.
const (
	ParOutputPositions    = "Pboutputpositions"
	ParOutputOrientations = "Pboutputorientations"
	ParOutputConfidences  = "Pboutputconfs"
	ParResetIndexes       = "Pbresetindexes"
)

// ParameterKind is the widget type of a declared parameter.
type ParameterKind string

const (
	KindToggle ParameterKind = "toggle"
	KindPulse  ParameterKind = "pulse"
)

// Parameter is one parameter declaration.
type Parameter struct {
	Name    string        `json:"name"`
	Label   string        `json:"label"`
	Kind    ParameterKind `json:"kind"`
	Default int           `json:"default"`
}

// Inputs gives read access to the host parameters during a cook.
type Inputs interface {
	ParInt(name string) int
}

// Parameters is an Inputs implementation whose values can be changed from any
// goroutine.
type Parameters struct {
	mu     sync.RWMutex
	values map[string]int
}

// NewParameters returns parameters holding the declared defaults.
func NewParameters() *Parameters {
	p := &Parameters{values: make(map[string]int)}
	for _, par := range Declarations() {
		if par.Kind == KindToggle {
			p.values[par.Name] = par.Default
		}
	}
	return p
}

// ParInt returns the value of a parameter, 0 when unknown.
func (p *Parameters) ParInt(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[name]
}

// SetInt sets a parameter value.
func (p *Parameters) SetInt(name string, v int) {
	p.mu.Lock()
	p.values[name] = v
	p.mu.Unlock()
}

// SetOutputs sets the three output toggles at once.
func (p *Parameters) SetOutputs(cfg channels.Config) {
	p.mu.Lock()
	p.values[ParOutputPositions] = boolToInt(cfg.Positions)
	p.values[ParOutputOrientations] = boolToInt(cfg.Orientations)
	p.values[ParOutputConfidences] = boolToInt(cfg.Confidences)
	p.mu.Unlock()
}

// Outputs reads the three output toggles.
func (p *Parameters) Outputs() channels.Config {
	return OutputsFrom(p)
}

// OutputsFrom reads the output toggles from any Inputs.
func OutputsFrom(in Inputs) channels.Config {
	return channels.Config{
		Positions:    in.ParInt(ParOutputPositions) != 0,
		Orientations: in.ParInt(ParOutputOrientations) != 0,
		Confidences:  in.ParInt(ParOutputConfidences) != 0,
	}
}

// Declarations lists the parameters the operator exposes, in page order.
func Declarations() []Parameter {
	return []Parameter{
		{Name: ParOutputPositions, Label: "Positions", Kind: KindToggle, Default: 1},
		{Name: ParOutputOrientations, Label: "Orientations", Kind: KindToggle},
		{Name: ParOutputConfidences, Label: "Confidences", Kind: KindToggle},
		{Name: ParResetIndexes, Label: "Reset indexes", Kind: KindPulse},
	}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
