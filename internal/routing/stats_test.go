package routing

import (
	"math"
	"testing"
	"time"

	"routingcore/internal/fixtures"
	"routingcore/pkg/domain"
)

func TestStatsEmptySetIsZero(t *testing.T) {
	ops := fixtures.Operations(time.Unix(0, 0).UTC())
	stats := StatsFor(ops, func(domain.Operation) bool { return false })
	if stats.Total != 0 || stats.AvgCycleTime != 0 || stats.AvgDefectRate != 0 ||
		stats.AvgUtilization != 0 || stats.AvgOverheadRate != 0 || stats.TotalHourlyCost != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
	for _, v := range []float64{stats.AvgCycleTime, stats.AvgDefectRate, stats.AvgUtilization} {
		if math.IsNaN(v) {
			t.Fatalf("NaN average")
		}
	}
	if stats.CountByCategory[domain.CategoryQuality] != 0 {
		t.Fatalf("expected zero category counts")
	}

	if empty := Aggregate(nil); empty.Total != 0 || empty.AvgCycleTime != 0 {
		t.Fatalf("nil input must aggregate to zero, got %+v", empty)
	}
}

func TestStatsManufacturingSample(t *testing.T) {
	ops := fixtures.Operations(time.Unix(0, 0).UTC())
	stats := StatsFor(ops, func(op domain.Operation) bool { return op.Category == domain.CategoryManufacturing })
	if stats.Total != 5 {
		t.Fatalf("expected 5 manufacturing operations, got %d", stats.Total)
	}
	if stats.AvgDefectRate == 0 {
		t.Fatalf("expected non-zero defect rate")
	}
	if stats.AvgDefectRate != 1.3 || stats.AvgCycleTime != 3.7 || stats.AvgUtilization != 76 {
		t.Fatalf("unexpected averages %+v", stats)
	}
	if stats.TotalHourlyCost != 585 {
		t.Fatalf("expected hourly cost 585, got %v", stats.TotalHourlyCost)
	}
	if stats.CountByType[domain.TypeMachining] != 1 || stats.CountByType[domain.TypeInspection] != 0 {
		t.Fatalf("unexpected type counts %v", stats.CountByType)
	}
}

func TestStatsRiskCountsAndOverheadSeparate(t *testing.T) {
	ops := fixtures.Operations(time.Unix(0, 0).UTC())
	stats := StatsFor(ops, nil)
	if stats.Total != 8 || stats.ActiveCount != 8 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.CountByRiskLevel.High != 2 || stats.CountByRiskLevel.Critical != 1 {
		t.Fatalf("unexpected risk counts %+v", stats.CountByRiskLevel)
	}
	var rates float64
	for _, op := range ops {
		rates += op.LaborCostPerHour + op.MachineRatePerHour
	}
	if stats.TotalHourlyCost != rates {
		t.Fatalf("overhead must not be folded into hourly cost: %v vs %v", stats.TotalHourlyCost, rates)
	}
	if stats.AvgOverheadRate != 12.4 {
		t.Fatalf("expected avg overhead 12.4, got %v", stats.AvgOverheadRate)
	}
}

func TestByRiskLevelMatchesExactSubset(t *testing.T) {
	sample := fixtures.Operations(time.Unix(0, 0).UTC())
	cases := map[string][]domain.Operation{
		"none": nil,
		"one":  {sample[0]},
		"many": sample,
	}
	for name, ops := range cases {
		got := domain.Filter(ops, domain.ByRiskLevel(domain.RiskHigh))
		var want []string
		for _, op := range ops {
			if op.RiskLevel == domain.RiskHigh {
				want = append(want, op.OperationCode)
			}
		}
		var codes []string
		for _, op := range got {
			codes = append(codes, op.OperationCode)
		}
		if len(codes) != len(want) {
			t.Fatalf("%s: expected %v, got %v", name, want, codes)
		}
		for i := range want {
			if codes[i] != want[i] {
				t.Fatalf("%s: expected %v, got %v", name, want, codes)
			}
		}
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in     float64
		places int
		want   float64
	}{
		{1.25, 1, 1.3},
		{-1.25, 1, -1.3},
		{1.45, 1, 1.5},
		{1.24, 1, 1.2},
		{2.675, 2, 2.68},
		{0, 1, 0},
		{math.NaN(), 1, 0},
		{0.04999996, 1, 0},
		{0.05, 1, 0.1},
		{-0.04, 1, 0},
		{0.1 + 0.2, 1, 0.3},
		{2.5, 0, 3},
		{1e-9, 2, 0},
		{7, 2, 7},
	}
	for _, tc := range cases {
		if got := Round(tc.in, tc.places); got != tc.want {
			t.Fatalf("Round(%v, %d) = %v, want %v", tc.in, tc.places, got, tc.want)
		}
	}
}
