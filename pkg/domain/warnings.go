package domain

import (
	"fmt"
	"strings"
)

// WarningKind enumerates non-fatal data-quality findings in the routing graph.
type WarningKind string

// Structural warning kinds. They never stop a read.
const (
	WarningAsymmetricEdge WarningKind = "asymmetric_edge"
	WarningCycleDetected  WarningKind = "cycle_detected"
	WarningDanglingEdge   WarningKind = "dangling_edge"
)

// StructuralWarning flags a routing edge that needs human correction.
// For cycles, Path lists the codes in cycle order starting and ending at the
// re-entered node, and From/To name the edge that closed the cycle.
type StructuralWarning struct {
	Kind   WarningKind `json:"kind"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Path   []string    `json:"path,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (w StructuralWarning) String() string {
	switch w.Kind {
	case WarningCycleDetected:
		return fmt.Sprintf("%s: %s", w.Kind, strings.Join(w.Path, " -> "))
	case WarningAsymmetricEdge, WarningDanglingEdge:
		if w.Detail != "" {
			return fmt.Sprintf("%s: %s -> %s (%s)", w.Kind, w.From, w.To, w.Detail)
		}
		return fmt.Sprintf("%s: %s -> %s", w.Kind, w.From, w.To)
	default:
		return string(w.Kind)
	}
}
