package routing

import (
	"errors"
	"math"
	"testing"

	"routingcore/pkg/domain"
)

func estimateGraph() *Graph {
	a := node("A", "B", "C")
	a.SetupTime, a.CycleTime, a.LaborCostPerHour, a.OverheadRate = 10, 1, 60, 50
	a.Currency = "USD"

	b := node("B", "D")
	b.CycleTime, b.EfficiencyFactor, b.MachineRatePerHour = 3, 100, 120
	b.CanRunParallel = true
	b.Currency = "USD"

	c := node("C", "D")
	c.CycleTime, c.EfficiencyFactor, c.LaborCostPerHour, c.OperatorsRequired = 1, 100, 30, 2
	c.CanRunParallel = true

	batch := 5.0
	d := node("D")
	d.SetupTime, d.BatchSetupTime, d.LaborCostPerHour = 5, &batch, 60
	d.Currency = "USD"

	return NewGraph(linked(a, b, c, d))
}

func TestEstimateFrom(t *testing.T) {
	est, err := estimateGraph().EstimateFrom("A", 10)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(est.Lines) != 4 {
		t.Fatalf("expected four lines, got %d", len(est.Lines))
	}
	wantMinutes := map[string]float64{"A": 20, "B": 30, "C": 10, "D": 10}
	for _, line := range est.Lines {
		if line.Minutes != wantMinutes[line.OperationCode] {
			t.Fatalf("%s: expected %v minutes, got %v", line.OperationCode, wantMinutes[line.OperationCode], line.Minutes)
		}
	}
	if est.TotalMinutes != 70 || est.CriticalPathMinutes != 60 {
		t.Fatalf("unexpected minutes total=%v critical=%v", est.TotalMinutes, est.CriticalPathMinutes)
	}
	if est.DirectCost != 100 || est.OverheadCost != 10 || est.TotalCost != 110 {
		t.Fatalf("unexpected cost %+v", est)
	}
	if est.Currency != "USD" {
		t.Fatalf("expected USD, got %q", est.Currency)
	}
}

func TestEstimateChainsPredecessorOnlyEdges(t *testing.T) {
	a := node("A")
	a.CycleTime = 1
	b := node("B")
	b.CycleTime = 2
	b.PrecedingOperations = []string{"A"}
	est, err := NewGraph([]domain.Operation{a, b}).EstimateFrom("A", 1)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(est.Lines) != 2 || est.TotalMinutes != 3 || est.CriticalPathMinutes != 3 {
		t.Fatalf("expected a two-step chain of 3 minutes, got %+v", est)
	}
}

func TestEstimateRejectsNegativeQuantity(t *testing.T) {
	for _, q := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := estimateGraph().EstimateFrom("A", q)
		if !errors.Is(err, domain.ErrNegativeValue) {
			t.Fatalf("quantity %v: expected negative value error, got %v", q, err)
		}
	}
}

func TestEstimateUnknownStartIsEmpty(t *testing.T) {
	est, err := estimateGraph().EstimateFrom("missing", 5)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(est.Lines) != 0 || est.TotalCost != 0 || est.CriticalPathMinutes != 0 {
		t.Fatalf("expected empty estimate, got %+v", est)
	}
}

func TestEstimateMixedCurrency(t *testing.T) {
	a := node("A", "B")
	a.Currency = "USD"
	b := node("B")
	b.Currency = "EUR"
	est, err := NewGraph(linked(a, b)).EstimateFrom("A", 1)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.Currency != MixedCurrency {
		t.Fatalf("expected mixed currency, got %q", est.Currency)
	}
}

func TestBatchMinutesTreatsZeroEfficiencyAsFull(t *testing.T) {
	op := node("A")
	op.CycleTime = 2
	if got := BatchMinutes(op, 3); got != 6 {
		t.Fatalf("expected 6, got %v", got)
	}
	op.EfficiencyFactor = 50
	if got := BatchMinutes(op, 3); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
}
