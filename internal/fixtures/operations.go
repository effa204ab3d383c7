// Package fixtures provides the sample shop routing used to seed demo
// registries and exercise the routing algorithms in tests.
//
// The routing is a sheet-metal line: cutting feeds bending and welding in
// parallel, both join at finishing, then final inspection and packaging. A
// separate CNC branch (machine setup, then machining) also feeds final
// inspection.
package fixtures

import (
	"time"

	"routingcore/pkg/domain"
)

// Sample operation codes.
const (
	Cutting    = "OP-CUT-001"
	Bending    = "OP-BND-001"
	Welding    = "OP-WLD-001"
	Finishing  = "OP-FIN-001"
	Inspection = "OP-QC-001"
	Packaging  = "OP-PKG-001"
	CNCSetup   = "OP-STP-001"
	CNC        = "OP-CNC-001"
)

// Operations returns fresh copies of the eight sample operations in
// registration order, stamped with now.
func Operations(now time.Time) []domain.Operation {
	ops := []domain.Operation{
		{
			OperationCode:          Cutting,
			OperationName:          "Laser Cutting - Sheet Blank",
			Description:            "Cut sheet stock to blank profile on the fiber laser.",
			OperationType:          domain.TypeCutting,
			Category:               domain.CategoryManufacturing,
			DefaultWorkstation:     "WS-LASER-01",
			AlternateWorkstations:  []string{"WS-LASER-02", "WS-PLASMA-01"},
			MachineID:              "MC-LASER-6KW",
			MachineType:            "Fiber Laser",
			RequiredTools:          []string{"Nozzle 1.5mm", "Focus lens"},
			SkillLevelRequired:     domain.SkillIntermediate,
			OperatorsRequired:      1,
			HelpersRequired:        1,
			SetupTime:              15,
			CycleTime:              2.5,
			TeardownTime:           10,
			CapacityPerHour:        24,
			CapacityPerShift:       192,
			EfficiencyFactor:       92,
			CostingMethod:          domain.CostingTimeBased,
			LaborCostPerHour:       45,
			MachineRatePerHour:     85,
			OverheadRate:           15,
			Currency:               "USD",
			QualityCheckpoints:     []string{"Edge burr", "Profile tolerance"},
			MaterialWastagePercent: 3.5,
			Consumables: []domain.Consumable{
				{Item: "Nitrogen assist gas", QuantityPerUnit: 0.4, Unit: "m3"},
			},
			SafetyGearRequired:   []string{"Laser goggles", "Gloves"},
			SafetyInstructions:   []string{"Verify enclosure interlock", "Clear bed before cycle start"},
			RiskLevel:            domain.RiskHigh,
			SucceedingOperations: []string{Bending, Welding},
			AvgActualCycleTime:   2.6,
			DefectRate:           1.2,
			UtilizationRate:      78,
		},
		{
			OperationCode:          Bending,
			OperationName:          "Press Brake Bending",
			OperationType:          domain.TypeBending,
			Category:               domain.CategoryManufacturing,
			DefaultWorkstation:     "WS-BRAKE-01",
			MachineID:              "MC-BRAKE-110T",
			MachineType:            "CNC Press Brake",
			RequiredTools:          []string{"V-die 16mm", "Gooseneck punch"},
			SkillLevelRequired:     domain.SkillAdvanced,
			OperatorsRequired:      1,
			SetupTime:              20,
			CycleTime:              1.8,
			TeardownTime:           5,
			CapacityPerHour:        33,
			CapacityPerShift:       264,
			EfficiencyFactor:       88,
			CostingMethod:          domain.CostingTimeBased,
			LaborCostPerHour:       42,
			MachineRatePerHour:     65,
			OverheadRate:           12,
			Currency:               "USD",
			MaterialWastagePercent: 1,
			SafetyGearRequired:     []string{"Gloves", "Safety shoes"},
			SafetyInstructions:     []string{"Use two-hand control"},
			RiskLevel:              domain.RiskMedium,
			PrecedingOperations:    []string{Cutting},
			SucceedingOperations:   []string{Finishing},
			CanRunParallel:         true,
			AvgActualCycleTime:     1.9,
			DefectRate:             0.8,
			UtilizationRate:        72,
		},
		{
			OperationCode:          Welding,
			OperationName:          "MIG Welding - Bracket Tabs",
			OperationType:          domain.TypeWelding,
			Category:               domain.CategoryManufacturing,
			DefaultWorkstation:     "WS-WELD-02",
			MachineType:            "MIG Welder",
			RequiredTools:          []string{"Welding fixture WF-12"},
			SkillLevelRequired:     domain.SkillExpert,
			OperatorsRequired:      1,
			SetupTime:              25,
			CycleTime:              4.5,
			TeardownTime:           10,
			CapacityPerHour:        13,
			CapacityPerShift:       104,
			EfficiencyFactor:       85,
			CostingMethod:          domain.CostingTimeBased,
			LaborCostPerHour:       55,
			MachineRatePerHour:     40,
			OverheadRate:           18,
			Currency:               "USD",
			RequiresInspection:     true,
			InspectionType:         domain.InspectionVisual,
			InspectionFrequency:    domain.FrequencySampling,
			QualityCheckpoints:     []string{"Weld bead continuity", "Spatter"},
			MaterialWastagePercent: 0.5,
			Consumables: []domain.Consumable{
				{Item: "ER70S-6 wire", QuantityPerUnit: 0.05, Unit: "kg"},
				{Item: "Argon/CO2 mix", QuantityPerUnit: 0.2, Unit: "m3"},
			},
			SafetyGearRequired:   []string{"Welding helmet", "Leather apron", "Gloves"},
			SafetyInstructions:   []string{"Check extraction is running", "Keep hot-work permit posted"},
			RiskLevel:            domain.RiskHigh,
			PrecedingOperations:  []string{Cutting},
			SucceedingOperations: []string{Finishing},
			CanRunParallel:       true,
			AvgActualCycleTime:   4.8,
			DefectRate:           2.1,
			UtilizationRate:      81,
		},
		{
			OperationCode:          Finishing,
			OperationName:          "Powder Coating",
			OperationType:          domain.TypeFinishing,
			Category:               domain.CategoryManufacturing,
			DefaultWorkstation:     "WS-PAINT-01",
			MachineType:            "Powder Booth",
			SkillLevelRequired:     domain.SkillIntermediate,
			OperatorsRequired:      1,
			HelpersRequired:        1,
			SetupTime:              10,
			CycleTime:              3.2,
			TeardownTime:           15,
			CapacityPerHour:        18,
			CapacityPerShift:       144,
			EfficiencyFactor:       90,
			CostingMethod:          domain.CostingTimeBased,
			LaborCostPerHour:       38,
			MachineRatePerHour:     30,
			OverheadRate:           10,
			Currency:               "USD",
			MaterialWastagePercent: 4,
			SafetyGearRequired:     []string{"Respirator", "Coveralls"},
			RiskLevel:              domain.RiskMedium,
			PrecedingOperations:    []string{Bending, Welding},
			SucceedingOperations:   []string{Inspection},
			AvgActualCycleTime:     3.1,
			DefectRate:             1.5,
			UtilizationRate:        65,
		},
		{
			OperationCode:        Inspection,
			OperationName:        "Final Dimensional Inspection",
			OperationType:        domain.TypeInspection,
			Category:             domain.CategoryQuality,
			DefaultWorkstation:   "WS-QC-01",
			MachineType:          "CMM",
			RequiredTools:        []string{"Vernier caliper", "Height gauge"},
			SkillLevelRequired:   domain.SkillAdvanced,
			OperatorsRequired:    1,
			SetupTime:            5,
			CycleTime:            1.5,
			TeardownTime:         5,
			CapacityPerHour:      40,
			CapacityPerShift:     320,
			EfficiencyFactor:     95,
			CostingMethod:        domain.CostingUnitBased,
			LaborCostPerHour:     40,
			MachineRatePerHour:   15,
			OverheadRate:         8,
			Currency:             "USD",
			RequiresInspection:   true,
			InspectionType:       domain.InspectionDimensional,
			InspectionFrequency:  domain.FrequencyEveryUnit,
			QualityCheckpoints:   []string{"Hole positions", "Flatness", "Coating thickness"},
			RiskLevel:            domain.RiskLow,
			PrecedingOperations:  []string{Finishing, CNC},
			SucceedingOperations: []string{Packaging},
			AvgActualCycleTime:   1.4,
			DefectRate:           0.3,
			UtilizationRate:      60,
		},
		{
			OperationCode:      Packaging,
			OperationName:      "Pack and Label",
			OperationType:      domain.TypePackaging,
			Category:           domain.CategoryMaterialHandling,
			DefaultWorkstation: "WS-PACK-01",
			SkillLevelRequired: domain.SkillBasic,
			OperatorsRequired:  1,
			SetupTime:          5,
			CycleTime:          1,
			TeardownTime:       5,
			CapacityPerHour:    60,
			CapacityPerShift:   480,
			EfficiencyFactor:   96,
			CostingMethod:      domain.CostingUnitBased,
			LaborCostPerHour:   28,
			MachineRatePerHour: 10,
			OverheadRate:       6,
			Currency:           "USD",
			Consumables: []domain.Consumable{
				{Item: "Carton 400x300", QuantityPerUnit: 0.25, Unit: "pcs"},
			},
			RiskLevel:           domain.RiskLow,
			PrecedingOperations: []string{Inspection},
			AvgActualCycleTime:  1.1,
			DefectRate:          0.2,
			UtilizationRate:     55,
		},
		{
			OperationCode:        CNCSetup,
			OperationName:        "CNC Fixture and Program Setup",
			OperationType:        domain.TypeMachining,
			Category:             domain.CategorySetup,
			DefaultWorkstation:   "WS-CNC-01",
			MachineID:            "MC-VMC-850",
			MachineType:          "Vertical Machining Center",
			RequiredTools:        []string{"Vise", "Edge finder"},
			SkillLevelRequired:   domain.SkillExpert,
			OperatorsRequired:    1,
			SetupTime:            45,
			TeardownTime:         15,
			EfficiencyFactor:     100,
			CostingMethod:        domain.CostingFixed,
			LaborCostPerHour:     60,
			OverheadRate:         10,
			Currency:             "USD",
			RiskLevel:            domain.RiskMedium,
			SucceedingOperations: []string{CNC},
			UtilizationRate:      40,
		},
		{
			OperationCode:          CNC,
			OperationName:          "CNC Machining - Mounting Block",
			OperationType:          domain.TypeMachining,
			Category:               domain.CategoryManufacturing,
			DefaultWorkstation:     "WS-CNC-01",
			MachineID:              "MC-VMC-850",
			MachineType:            "Vertical Machining Center",
			RequiredTools:          []string{"10mm end mill", "M8 tap", "Spot drill"},
			SkillLevelRequired:     domain.SkillExpert,
			OperatorsRequired:      1,
			SetupTime:              30,
			CycleTime:              6.5,
			TeardownTime:           10,
			BatchSetupTime:         float64Ptr(12),
			CapacityPerHour:        9,
			CapacityPerShift:       72,
			EfficiencyFactor:       87,
			CostingMethod:          domain.CostingTimeBased,
			LaborCostPerHour:       65,
			MachineRatePerHour:     120,
			OverheadRate:           20,
			Currency:               "USD",
			RequiresInspection:     true,
			InspectionType:         domain.InspectionDimensional,
			InspectionFrequency:    domain.FrequencyFirstPiece,
			QualityCheckpoints:     []string{"Bore diameter", "Thread gauge"},
			MaterialWastagePercent: 12,
			Consumables: []domain.Consumable{
				{Item: "Coolant", QuantityPerUnit: 0.1, Unit: "l"},
			},
			SafetyGearRequired:   []string{"Safety glasses"},
			SafetyInstructions:   []string{"Close doors before spindle start", "No gloves near rotating spindle"},
			RiskLevel:            domain.RiskCritical,
			PrecedingOperations:  []string{CNCSetup},
			SucceedingOperations: []string{Inspection},
			AvgActualCycleTime:   6.9,
			DefectRate:           1,
			UtilizationRate:      84,
			Notes:                "Spindle warm-up required at shift start.",
		},
	}
	for i := range ops {
		ops[i].IsActive = true
		ops[i].CreatedAt = now
		ops[i].UpdatedAt = now
	}
	return ops
}

func float64Ptr(v float64) *float64 { return &v }
