// Package evaluate prices schedules. The evaluator decomposes a schedule
// into volume and cost components, combines them under configurable weights
// into a single minimisation objective, and keeps incremental rescoring
// bit-identical with scoring from scratch. The repairer lives here too: it
// normalises schedules after neighbourhood moves so sequencing rules hold
// before anything is priced.
package evaluate

import "fmt"

// Weights combines the evaluator components into one objective. The search
// minimises the result, so delivered volume enters negatively and
// everything else is a cost.
type Weights struct {
	Production   float64 `json:"production"`
	Staged       float64 `json:"staged"`
	Mobilisation float64 `json:"mobilisation"`
	Leftover     float64 `json:"leftover"`
	Overflow     float64 `json:"overflow"`
}

// DefaultWeights favour finishing and delivering blocks over minimising
// machine movement.
func DefaultWeights() Weights {
	return Weights{
		Production:   10,
		Staged:       1,
		Mobilisation: 1,
		Leftover:     4,
		Overflow:     2,
	}
}

func (w Weights) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"production", w.Production},
		{"staged", w.Staged},
		{"mobilisation", w.Mobilisation},
		{"leftover", w.Leftover},
		{"overflow", w.Overflow},
	} {
		if f.v < 0 {
			return fmt.Errorf("weights: %s must not be negative, got %g", f.name, f.v)
		}
	}
	return nil
}
