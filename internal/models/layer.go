package models

import (
	"fmt"
	"strings"
)

// Layer identifies one of the four measured OSI layers.
type Layer string

const (
	LayerTransport    Layer = "transport"    // OSI layer 4
	LayerSession      Layer = "session"      // OSI layer 5
	LayerPresentation Layer = "presentation" // OSI layer 6
	LayerApplication  Layer = "application"  // OSI layer 7
)

// Layers lists every layer in OSI order.
var Layers = []Layer{LayerTransport, LayerSession, LayerPresentation, LayerApplication}

// Valid returns true if the layer is a recognized value.
func (l Layer) Valid() bool {
	return l.Index() != 0
}

// Index returns the OSI layer number, or 0 for an unknown layer.
func (l Layer) Index() int {
	switch l {
	case LayerTransport:
		return 4
	case LayerSession:
		return 5
	case LayerPresentation:
		return 6
	case LayerApplication:
		return 7
	}
	return 0
}

// String returns the string representation of the layer.
func (l Layer) String() string {
	return string(l)
}

// ParseLayer accepts the canonical names as well as the "layer_4_transport"
// and "osi_layer_4_transport" spellings that drivers tend to emit.
func ParseLayer(s string) (Layer, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "osi_")
	if rest, ok := strings.CutPrefix(name, "layer_"); ok {
		if i := strings.IndexByte(rest, '_'); i >= 0 {
			name = rest[i+1:]
		}
	}
	l := Layer(name)
	if !l.Valid() {
		return "", fmt.Errorf("unknown layer %q", s)
	}
	return l, nil
}

// Unit is the unit a metric is measured in.
type Unit string

const (
	UnitMilliseconds Unit = "ms"
	UnitBytes        Unit = "bytes"
	UnitRatio        Unit = "ratio"
	UnitScore        Unit = "score"
)

// Valid returns true if the unit is a recognized value.
func (u Unit) Valid() bool {
	switch u {
	case UnitMilliseconds, UnitBytes, UnitRatio, UnitScore:
		return true
	}
	return false
}

// String returns the string representation of the unit.
func (u Unit) String() string {
	return string(u)
}

// ParseUnit maps a unit name to a Unit. "milliseconds" and "bytes" long forms
// are accepted alongside the canonical short names.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ms", "milliseconds", "millis":
		return UnitMilliseconds, nil
	case "bytes", "byte", "b":
		return UnitBytes, nil
	case "ratio":
		return UnitRatio, nil
	case "score":
		return UnitScore, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// Polarity says whether lower or higher values of a metric are preferable.
type Polarity string

const (
	// PolarityCost marks metrics where lower is better (time, overhead bytes).
	PolarityCost Polarity = "cost"

	// PolarityBenefit marks metrics where higher is better (efficiency, interoperability).
	PolarityBenefit Polarity = "benefit"
)

// Valid returns true if the polarity is a recognized value.
func (p Polarity) Valid() bool {
	return p == PolarityCost || p == PolarityBenefit
}

// String returns the string representation of the polarity.
func (p Polarity) String() string {
	return string(p)
}

// Better reports whether value a is preferable to value b under this polarity.
// An unrecognized polarity prefers neither value.
func (p Polarity) Better(a, b float64) bool {
	switch p {
	case PolarityCost:
		return a < b
	case PolarityBenefit:
		return a > b
	}
	return false
}
