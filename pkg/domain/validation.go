package domain

import (
	"math"
	"strings"
)

// ValidateOperation checks the field-level invariants of a single operation
// and returns the first violation, or nil. Registry-level invariants
// (code uniqueness, edge resolution) are enforced by the store and rules.
func ValidateOperation(op Operation) error {
	if issues := OperationIssues(op); len(issues) > 0 {
		return issues[0]
	}
	return nil
}

// OperationIssues returns every field-level violation in a stable order:
// identity, enumerations, non-negative values, percentages, inspection fields.
func OperationIssues(op Operation) []ValidationError {
	code := op.OperationCode
	var issues []ValidationError
	add := func(kind ValidationKind, field, detail string) {
		issues = append(issues, ValidationError{Kind: kind, Code: code, Field: field, Detail: detail})
	}

	if strings.TrimSpace(op.OperationCode) == "" {
		add(KindMissingField, "operationCode", "operation code is required")
	}
	if strings.TrimSpace(op.OperationName) == "" {
		add(KindMissingField, "operationName", "operation name is required")
	}

	if !op.OperationType.Valid() {
		add(KindInvalidEnum, "operationType", string(op.OperationType))
	}
	if !op.Category.Valid() {
		add(KindInvalidEnum, "category", string(op.Category))
	}
	if !op.RiskLevel.Valid() {
		add(KindInvalidEnum, "riskLevel", string(op.RiskLevel))
	}
	if op.SkillLevelRequired != "" && !op.SkillLevelRequired.Valid() {
		add(KindInvalidEnum, "skillLevelRequired", string(op.SkillLevelRequired))
	}
	if op.CostingMethod != "" && !op.CostingMethod.Valid() {
		add(KindInvalidEnum, "costingMethod", string(op.CostingMethod))
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"setupTime", op.SetupTime},
		{"cycleTime", op.CycleTime},
		{"teardownTime", op.TeardownTime},
		{"capacityPerHour", op.CapacityPerHour},
		{"capacityPerShift", op.CapacityPerShift},
		{"laborCostPerHour", op.LaborCostPerHour},
		{"machineRatePerHour", op.MachineRatePerHour},
		{"avgActualCycleTime", op.AvgActualCycleTime},
	} {
		if negative(f.value) {
			add(KindNegativeValue, f.name, "must be >= 0")
		}
	}
	if op.BatchSetupTime != nil && negative(*op.BatchSetupTime) {
		add(KindNegativeValue, "batchSetupTime", "must be >= 0")
	}
	if op.OperatorsRequired < 0 {
		add(KindNegativeValue, "operatorsRequired", "must be >= 0")
	}
	if op.HelpersRequired < 0 {
		add(KindNegativeValue, "helpersRequired", "must be >= 0")
	}
	for _, c := range op.Consumables {
		if negative(c.QuantityPerUnit) {
			add(KindNegativeValue, "consumables."+c.Item, "quantity per unit must be >= 0")
		}
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"efficiencyFactor", op.EfficiencyFactor},
		{"materialWastagePercent", op.MaterialWastagePercent},
		{"overheadRate", op.OverheadRate},
		{"defectRate", op.DefectRate},
		{"utilizationRate", op.UtilizationRate},
	} {
		if !(f.value >= 0 && f.value <= 100) {
			add(KindOutOfRangePercentage, f.name, "must be within [0, 100]")
		}
	}

	if op.RequiresInspection {
		var missing []string
		if strings.TrimSpace(string(op.InspectionType)) == "" {
			missing = append(missing, "inspectionType")
		}
		if strings.TrimSpace(string(op.InspectionFrequency)) == "" {
			missing = append(missing, "inspectionFrequency")
		}
		if len(missing) > 0 {
			add(KindMissingInspectionFields, strings.Join(missing, ","), "required when requiresInspection is true")
		}
	}
	return issues
}

// NormalizeOperation drops inspection attributes that are ignored when no
// inspection is required and removes empty or repeated edge codes while
// keeping declaration order.
func NormalizeOperation(op Operation) Operation {
	op.OperationCode = strings.TrimSpace(op.OperationCode)
	if !op.RequiresInspection {
		op.InspectionType = ""
		op.InspectionFrequency = ""
	}
	op.PrecedingOperations = dedupeCodes(op.PrecedingOperations)
	op.SucceedingOperations = dedupeCodes(op.SucceedingOperations)
	return op
}

func negative(v float64) bool {
	return v < 0 || math.IsNaN(v)
}

func dedupeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
