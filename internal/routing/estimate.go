package routing

import (
	"math"

	"routingcore/pkg/domain"
)

// EstimateLine is the batch cost of one operation of a routing.
type EstimateLine struct {
	OperationCode  string  `json:"operationCode"`
	OperationName  string  `json:"operationName"`
	Minutes        float64 `json:"minutes"`
	DirectCost     float64 `json:"directCost"`
	OverheadCost   float64 `json:"overheadCost"`
	CanRunParallel bool    `json:"canRunParallel"`
}

// Estimate is the time and cost of running quantity units through the
// routing that starts at Start. TotalMinutes adds every line; CriticalPath
// counts only the longest chain of dependent operations.
type Estimate struct {
	Start               string                     `json:"start"`
	Quantity            float64                    `json:"quantity"`
	Currency            string                     `json:"currency"`
	Lines               []EstimateLine             `json:"lines"`
	TotalMinutes        float64                    `json:"totalMinutes"`
	CriticalPathMinutes float64                    `json:"criticalPathMinutes"`
	DirectCost          float64                    `json:"directCost"`
	OverheadCost        float64                    `json:"overheadCost"`
	TotalCost           float64                    `json:"totalCost"`
	Warnings            []domain.StructuralWarning `json:"warnings"`
}

// MixedCurrency is reported when the routing prices operations in more than
// one currency.
const MixedCurrency = "MIXED"

// BatchMinutes returns the minutes one operation needs for quantity units:
// setup, batch setup and teardown once, plus cycle time per unit scaled by
// the efficiency factor. A zero efficiency factor counts as 100 percent.
func BatchMinutes(op domain.Operation, quantity float64) float64 {
	minutes := op.SetupTime + op.TeardownTime
	if op.BatchSetupTime != nil {
		minutes += *op.BatchSetupTime
	}
	efficiency := op.EfficiencyFactor / 100
	if efficiency <= 0 {
		efficiency = 1
	}
	return minutes + op.CycleTime*quantity/efficiency
}

// DirectCost prices minutes of an operation at its labor rate per crew
// member plus its machine rate. The crew is at least one person.
func DirectCost(op domain.Operation, minutes float64) float64 {
	crew := op.OperatorsRequired + op.HelpersRequired
	if crew < 1 {
		crew = 1
	}
	return minutes / 60 * (op.LaborCostPerHour*float64(crew) + op.MachineRatePerHour)
}

// EstimateFrom sequences the graph from start and prices quantity units
// through it. The sequence warnings are carried over. A negative quantity is
// rejected; an unknown start yields an empty estimate.
func (g *Graph) EstimateFrom(start string, quantity float64) (Estimate, error) {
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return Estimate{}, domain.ValidationError{
			Kind: domain.KindNegativeValue, Code: start, Field: "quantity", Detail: "must be a finite value >= 0",
		}
	}
	seq := g.SequenceFrom(start)
	est := Estimate{
		Start:    start,
		Quantity: quantity,
		Lines:    make([]EstimateLine, 0, len(seq.Operations)),
		Warnings: seq.Warnings,
	}

	position := make(map[string]int, len(seq.Operations))
	finish := make([]float64, len(seq.Operations))
	var minutes, direct, overhead float64
	for i, op := range seq.Operations {
		position[op.OperationCode] = i
		m := BatchMinutes(op, quantity)
		d := DirectCost(op, m)
		o := d * op.OverheadRate / 100
		minutes += m
		direct += d
		overhead += o
		est.Lines = append(est.Lines, EstimateLine{
			OperationCode:  op.OperationCode,
			OperationName:  op.OperationName,
			Minutes:        Round(m, 2),
			DirectCost:     Round(d, 2),
			OverheadCost:   Round(o, 2),
			CanRunParallel: op.CanRunParallel,
		})
		switch {
		case op.Currency == "":
		case est.Currency == "":
			est.Currency = op.Currency
		case est.Currency != op.Currency:
			est.Currency = MixedCurrency
		}
		finish[i] = m
	}

	// Sequence order is topological for every edge that points forward in
	// it, so one pass relaxes the longest path.
	var critical float64
	for i, op := range seq.Operations {
		for _, code := range g.Successors(op.OperationCode) {
			j, ok := position[code]
			if !ok || j <= i {
				continue
			}
			if candidate := finish[i] + BatchMinutes(seq.Operations[j], quantity); candidate > finish[j] {
				finish[j] = candidate
			}
		}
		critical = math.Max(critical, finish[i])
	}

	est.TotalMinutes = Round(minutes, 2)
	est.CriticalPathMinutes = Round(critical, 2)
	est.DirectCost = Round(direct, 2)
	est.OverheadCost = Round(overhead, 2)
	est.TotalCost = Round(direct+overhead, 2)
	return est, nil
}
