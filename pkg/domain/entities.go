// Package domain defines the operation routing entities, closed enumerations,
// validation taxonomy, and rule evaluation primitives used by routingcore.
package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"
)

// EntityType identifies the type of record stored in the registry.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityOperation identifies a manufacturing operation record.
	EntityOperation EntityType = "operation"
)

// OperationType classifies the physical work performed by an operation.
type OperationType string

// Canonical operation types. The set is closed; unknown values fail validation.
const (
	TypeCutting    OperationType = "cutting"
	TypeBending    OperationType = "bending"
	TypeWelding    OperationType = "welding"
	TypeFinishing  OperationType = "finishing"
	TypeAssembly   OperationType = "assembly"
	TypeInspection OperationType = "inspection"
	TypePackaging  OperationType = "packaging"
	TypeMachining  OperationType = "machining"
)

// OperationTypes lists every valid OperationType in display order.
var OperationTypes = []OperationType{
	TypeCutting, TypeBending, TypeWelding, TypeFinishing,
	TypeAssembly, TypeInspection, TypePackaging, TypeMachining,
}

// Valid reports whether t is a member of the closed enumeration.
func (t OperationType) Valid() bool {
	switch t {
	case TypeCutting, TypeBending, TypeWelding, TypeFinishing,
		TypeAssembly, TypeInspection, TypePackaging, TypeMachining:
		return true
	default:
		return false
	}
}

// Category groups operations by their role in the routing.
type Category string

// Canonical operation categories.
const (
	CategoryManufacturing    Category = "manufacturing"
	CategoryQuality          Category = "quality"
	CategoryMaterialHandling Category = "material_handling"
	CategorySetup            Category = "setup"
)

// Categories lists every valid Category in display order.
var Categories = []Category{CategoryManufacturing, CategoryQuality, CategoryMaterialHandling, CategorySetup}

// Valid reports whether c is a member of the closed enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryManufacturing, CategoryQuality, CategoryMaterialHandling, CategorySetup:
		return true
	default:
		return false
	}
}

// SkillLevel is the ordered operator qualification required by an operation.
type SkillLevel string

// Skill levels ordered basic < intermediate < advanced < expert.
const (
	SkillBasic        SkillLevel = "basic"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Rank returns the ordinal position of the skill level, or -1 when unknown.
func (s SkillLevel) Rank() int {
	switch s {
	case SkillBasic:
		return 0
	case SkillIntermediate:
		return 1
	case SkillAdvanced:
		return 2
	case SkillExpert:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a member of the closed enumeration.
func (s SkillLevel) Valid() bool { return s.Rank() >= 0 }

// CostingMethod describes how an operation's cost is attributed downstream.
type CostingMethod string

// Canonical costing methods.
const (
	CostingTimeBased CostingMethod = "time_based"
	CostingUnitBased CostingMethod = "unit_based"
	CostingFixed     CostingMethod = "fixed"
)

// Valid reports whether m is a member of the closed enumeration.
func (m CostingMethod) Valid() bool {
	switch m {
	case CostingTimeBased, CostingUnitBased, CostingFixed:
		return true
	default:
		return false
	}
}

// RiskLevel is the ordered safety risk classification of an operation.
type RiskLevel string

// Risk levels ordered low < medium < high < critical.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels lists every valid RiskLevel in ascending order.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Rank returns the ordinal position of the risk level, or -1 when unknown.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether r is a member of the closed enumeration.
func (r RiskLevel) Valid() bool { return r.Rank() >= 0 }

// InspectionType names the inspection technique applied at a checkpoint.
// Values outside the known constants are accepted; only presence is enforced.
type InspectionType string

// Known inspection types.
const (
	InspectionVisual         InspectionType = "visual"
	InspectionDimensional    InspectionType = "dimensional"
	InspectionFunctional     InspectionType = "functional"
	InspectionNonDestructive InspectionType = "non_destructive"
	InspectionDestructive    InspectionType = "destructive"
)

// InspectionFrequency names how often inspection is performed.
type InspectionFrequency string

// Known inspection frequencies.
const (
	FrequencyEveryUnit  InspectionFrequency = "every_unit"
	FrequencyFirstPiece InspectionFrequency = "first_piece"
	FrequencySampling   InspectionFrequency = "sampling"
	FrequencyBatchEnd   InspectionFrequency = "batch_end"
)

// Consumable is a material line consumed per unit processed.
type Consumable struct {
	Item            string  `json:"item"`
	QuantityPerUnit float64 `json:"quantityPerUnit"`
	Unit            string  `json:"unit"`
}

// Operation is a single manufacturing or quality step with its own time,
// cost, and resource profile. OperationCode is the unique business key;
// precedence edges reference other operations by code, never by ID.
type Operation struct {
	ID            string        `json:"id"`
	OperationCode string        `json:"operationCode"`
	OperationName string        `json:"operationName"`
	Description   string        `json:"description,omitempty"`
	OperationType OperationType `json:"operationType"`
	Category      Category      `json:"category"`

	DefaultWorkstation    string     `json:"defaultWorkstation,omitempty"`
	AlternateWorkstations []string   `json:"alternateWorkstations,omitempty"`
	MachineID             string     `json:"machineId,omitempty"`
	MachineType           string     `json:"machineType,omitempty"`
	RequiredTools         []string   `json:"requiredTools,omitempty"`
	SkillLevelRequired    SkillLevel `json:"skillLevelRequired"`
	OperatorsRequired     int        `json:"operatorsRequired"`
	HelpersRequired       int        `json:"helpersRequired"`

	// Time standards in minutes.
	SetupTime      float64  `json:"setupTime"`
	CycleTime      float64  `json:"cycleTime"`
	TeardownTime   float64  `json:"teardownTime"`
	BatchSetupTime *float64 `json:"batchSetupTime,omitempty"`

	CapacityPerHour  float64 `json:"capacityPerHour"`
	CapacityPerShift float64 `json:"capacityPerShift"`
	EfficiencyFactor float64 `json:"efficiencyFactor"`

	CostingMethod      CostingMethod `json:"costingMethod"`
	LaborCostPerHour   float64       `json:"laborCostPerHour"`
	MachineRatePerHour float64       `json:"machineRatePerHour"`
	OverheadRate       float64       `json:"overheadRate"`
	Currency           string        `json:"currency"`

	RequiresInspection  bool                `json:"requiresInspection"`
	InspectionType      InspectionType      `json:"inspectionType,omitempty"`
	InspectionFrequency InspectionFrequency `json:"inspectionFrequency,omitempty"`
	QualityCheckpoints  []string            `json:"qualityCheckpoints,omitempty"`

	MaterialWastagePercent float64      `json:"materialWastagePercent"`
	Consumables            []Consumable `json:"consumables,omitempty"`

	SafetyGearRequired []string  `json:"safetyGearRequired,omitempty"`
	SafetyInstructions []string  `json:"safetyInstructions,omitempty"`
	RiskLevel          RiskLevel `json:"riskLevel"`

	PrecedingOperations  []string `json:"precedingOperations,omitempty"`
	SucceedingOperations []string `json:"succeedingOperations,omitempty"`
	CanRunParallel       bool     `json:"canRunParallel"`

	AvgActualCycleTime float64 `json:"avgActualCycleTime"`
	DefectRate         float64 `json:"defectRate"`
	UtilizationRate    float64 `json:"utilizationRate"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Notes     string    `json:"notes,omitempty"`
}

// UnmarshalJSON decodes an operation strictly: unknown fields are rejected.
// A record that omits isActive is active; only an explicit false creates or
// keeps it inactive.
func (o *Operation) UnmarshalJSON(data []byte) error {
	type plain Operation
	decoded := plain{IsActive: true}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decoded); err != nil {
		return err
	}
	*o = Operation(decoded)
	return nil
}

// HourlyRate returns the combined labor and machine rate. Overhead is a
// percentage applied downstream and is never folded in here.
func (o Operation) HourlyRate() float64 {
	return o.LaborCostPerHour + o.MachineRatePerHour
}

// References reports whether the operation lists code in either edge list.
func (o Operation) References(code string) bool {
	return slices.Contains(o.SucceedingOperations, code) || slices.Contains(o.PrecedingOperations, code)
}

// Clone returns a deep copy so callers never share slices with the registry.
func (o Operation) Clone() Operation {
	cp := o
	cp.AlternateWorkstations = slices.Clone(o.AlternateWorkstations)
	cp.RequiredTools = slices.Clone(o.RequiredTools)
	cp.QualityCheckpoints = slices.Clone(o.QualityCheckpoints)
	cp.Consumables = slices.Clone(o.Consumables)
	cp.SafetyGearRequired = slices.Clone(o.SafetyGearRequired)
	cp.SafetyInstructions = slices.Clone(o.SafetyInstructions)
	cp.PrecedingOperations = slices.Clone(o.PrecedingOperations)
	cp.SucceedingOperations = slices.Clone(o.SucceedingOperations)
	if o.BatchSetupTime != nil {
		v := *o.BatchSetupTime
		cp.BatchSetupTime = &v
	}
	return cp
}

// Change describes a mutation applied to the registry within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDeactivate indicates an entity was soft-deleted.
	ActionDeactivate Action = "deactivate"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a structural warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a rule evaluation outcome. Blocking violations carry the
// ValidationError that caused them; warnings carry a StructuralWarning.
type Violation struct {
	Rule       string
	Severity   Severity
	Message    string
	Entity     EntityType
	EntityID   string
	Validation *ValidationError
	Warning    *StructuralWarning
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the structural warnings carried by non-blocking violations.
func (r Result) Warnings() []StructuralWarning {
	var out []StructuralWarning
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock && v.Warning != nil {
			out = append(out, *v.Warning)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// Unwrap exposes the first blocking ValidationError so callers can match it
// with errors.As or errors.Is.
func (e RuleViolationError) Unwrap() error {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Validation != nil {
			return *v.Validation
		}
	}
	return nil
}
