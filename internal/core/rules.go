package core

import (
	"context"
	"slices"

	"routingcore/internal/routing"
	"routingcore/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in routing
// policy set: unresolved edges block a write, while asymmetric edges, cycles
// and edges left pointing at deactivated operations are reported as warnings.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewEdgeResolutionRule())
	engine.Register(NewEdgeSymmetryRule())
	engine.Register(NewRoutingCycleRule())
	engine.Register(NewInactiveReferenceRule())
	return engine
}

// touched collects the codes of operations written in a transaction.
func touched(changes []domain.Change, actions ...domain.Action) map[string]domain.Operation {
	out := make(map[string]domain.Operation, len(changes))
	for _, change := range changes {
		if change.Entity != domain.EntityOperation {
			continue
		}
		if len(actions) > 0 && !slices.Contains(actions, change.Action) {
			continue
		}
		if op, ok := change.After.(domain.Operation); ok {
			out[op.OperationCode] = op
		}
	}
	return out
}

func warning(rule string, w domain.StructuralWarning, entityID string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityWarn,
		Message:  w.String(),
		Entity:   domain.EntityOperation,
		EntityID: entityID,
		Warning:  &w,
	}
}

// NewEdgeResolutionRule blocks writes whose precedence edges name a code that
// is not registered. The check runs against the post-transaction view, so a
// batch may reference records created in the same transaction.
func NewEdgeResolutionRule() domain.Rule { return edgeResolutionRule{} }

type edgeResolutionRule struct{}

func (edgeResolutionRule) Name() string { return "edge_resolution" }

func (r edgeResolutionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Action != domain.ActionCreate && change.Action != domain.ActionUpdate {
			continue
		}
		op, ok := change.After.(domain.Operation)
		if !ok {
			continue
		}
		check := func(field string, refs []string) {
			for _, ref := range refs {
				if _, found := view.FindOperation(ref); found {
					continue
				}
				verr := domain.ValidationError{
					Kind: domain.KindDanglingEdge, Code: op.OperationCode, Field: field, Ref: ref, Detail: "unknown",
				}
				res.Violations = append(res.Violations, domain.Violation{
					Rule:       r.Name(),
					Severity:   domain.SeverityBlock,
					Message:    verr.Error(),
					Entity:     domain.EntityOperation,
					EntityID:   op.OperationCode,
					Validation: &verr,
				})
			}
		}
		check("precedingOperations", op.PrecedingOperations)
		check("succeedingOperations", op.SucceedingOperations)
	}
	return res, nil
}

// NewEdgeSymmetryRule warns when a written operation declares an edge that
// the other side does not mirror, or is named by an edge it does not mirror.
func NewEdgeSymmetryRule() domain.Rule { return edgeSymmetryRule{} }

type edgeSymmetryRule struct{}

func (edgeSymmetryRule) Name() string { return "edge_symmetry" }

func (r edgeSymmetryRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	written := touched(changes, domain.ActionCreate, domain.ActionUpdate)
	if len(written) == 0 {
		return domain.Result{}, nil
	}
	var res domain.Result
	for _, w := range routing.NewGraph(view.ListOperations()).FindAsymmetricEdges() {
		_, from := written[w.From]
		_, to := written[w.To]
		if !from && !to {
			continue
		}
		id := w.From
		if !from {
			id = w.To
		}
		res.Violations = append(res.Violations, warning(r.Name(), w, id))
	}
	return res, nil
}

// NewRoutingCycleRule warns when a write leaves a written operation on a
// precedence cycle.
func NewRoutingCycleRule() domain.Rule { return routingCycleRule{} }

type routingCycleRule struct{}

func (routingCycleRule) Name() string { return "routing_cycle" }

func (r routingCycleRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	written := touched(changes, domain.ActionCreate, domain.ActionUpdate)
	if len(written) == 0 {
		return domain.Result{}, nil
	}
	var res domain.Result
	for _, w := range routing.NewGraph(view.ListOperations()).DetectCycles() {
		for _, code := range w.Path {
			if _, ok := written[code]; ok {
				res.Violations = append(res.Violations, warning(r.Name(), w, code))
				break
			}
		}
	}
	return res, nil
}

// NewInactiveReferenceRule reports the edges left dangling when an operation
// is deactivated, either by a forced remove or by a put that clears isActive.
func NewInactiveReferenceRule() domain.Rule { return inactiveReferenceRule{} }

type inactiveReferenceRule struct{}

func (inactiveReferenceRule) Name() string { return "inactive_reference" }

func (r inactiveReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	deactivated := touched(changes, domain.ActionDeactivate)
	for _, change := range changes {
		before, wasOp := change.Before.(domain.Operation)
		after, isOp := change.After.(domain.Operation)
		if change.Action == domain.ActionUpdate && wasOp && isOp && before.IsActive && !after.IsActive {
			deactivated[after.OperationCode] = after
		}
	}
	if len(deactivated) == 0 {
		return domain.Result{}, nil
	}
	var res domain.Result
	for _, w := range routing.NewGraph(view.ListOperations()).DanglingEdges() {
		if w.Detail != "inactive" {
			continue
		}
		if _, ok := deactivated[w.To]; ok {
			res.Violations = append(res.Violations, warning(r.Name(), w, w.To))
			continue
		}
		if _, ok := deactivated[w.From]; ok {
			res.Violations = append(res.Violations, warning(r.Name(), w, w.From))
		}
	}
	return res, nil
}
