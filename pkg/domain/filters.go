package domain

// Predicate selects operations. Predicates are pure and composable; the
// by-type, by-category and by-risk helpers below are thin factories over it.
//
//	ops := domain.Filter(all, domain.And(
//		domain.ByCategory(domain.CategoryManufacturing),
//		domain.Active(),
//	))
type Predicate func(Operation) bool

// Filter returns the operations matching predicate, preserving input order.
// A nil predicate matches everything.
func Filter(ops []Operation, predicate Predicate) []Operation {
	filtered := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if predicate == nil || predicate(op) {
			filtered = append(filtered, op)
		}
	}
	return filtered
}

// All matches every operation.
func All() Predicate {
	return func(Operation) bool { return true }
}

// ByType matches operations of the given type.
func ByType(t OperationType) Predicate {
	return func(op Operation) bool { return op.OperationType == t }
}

// ByCategory matches operations in the given category.
func ByCategory(c Category) Predicate {
	return func(op Operation) bool { return op.Category == c }
}

// ByRiskLevel matches operations with exactly the given risk level.
func ByRiskLevel(r RiskLevel) Predicate {
	return func(op Operation) bool { return op.RiskLevel == r }
}

// AtLeastRisk matches operations whose risk level ranks at or above r.
func AtLeastRisk(r RiskLevel) Predicate {
	return func(op Operation) bool {
		rank := op.RiskLevel.Rank()
		return rank >= 0 && rank >= r.Rank()
	}
}

// Active matches operations that have not been deactivated.
func Active() Predicate {
	return func(op Operation) bool { return op.IsActive }
}

// ByActive matches operations whose active flag equals active.
func ByActive(active bool) Predicate {
	return func(op Operation) bool { return op.IsActive == active }
}

// And matches when every predicate matches. Nil entries are skipped.
func And(preds ...Predicate) Predicate {
	return func(op Operation) bool {
		for _, p := range preds {
			if p != nil && !p(op) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches.
func Or(preds ...Predicate) Predicate {
	return func(op Operation) bool {
		for _, p := range preds {
			if p != nil && p(op) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate. A nil predicate matches everything, as in Filter,
// so Not(nil) matches nothing.
func Not(p Predicate) Predicate {
	if p == nil {
		return func(Operation) bool { return false }
	}
	return func(op Operation) bool { return !p(op) }
}
