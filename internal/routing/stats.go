package routing

import (
	"math"
	"strconv"
	"strings"

	"routingcore/pkg/domain"
)

// RiskCounts tallies the elevated risk levels.
type RiskCounts struct {
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Stats summarizes a filtered subset of the registry. Averages are rounded
// to one decimal place and are zero for an empty subset. TotalHourlyCost is
// the sum of labor and machine rates; overhead is reported only as an
// average percentage.
type Stats struct {
	Total            int                          `json:"total"`
	ActiveCount      int                          `json:"activeCount"`
	CountByCategory  map[domain.Category]int      `json:"countByCategory"`
	CountByType      map[domain.OperationType]int `json:"countByType"`
	CountByRiskLevel RiskCounts                   `json:"countByRiskLevel"`
	AvgCycleTime     float64                      `json:"avgCycleTime"`
	AvgDefectRate    float64                      `json:"avgDefectRate"`
	AvgUtilization   float64                      `json:"avgUtilization"`
	AvgOverheadRate  float64                      `json:"avgOverheadRate"`
	TotalHourlyCost  float64                      `json:"totalHourlyCost"`
}

// StatsFor aggregates the operations matching predicate. A nil predicate
// selects everything.
func StatsFor(ops []domain.Operation, predicate domain.Predicate) Stats {
	return Aggregate(domain.Filter(ops, predicate))
}

// Aggregate computes Stats over ops as given.
func Aggregate(ops []domain.Operation) Stats {
	stats := Stats{
		CountByCategory: make(map[domain.Category]int, len(domain.Categories)),
		CountByType:     make(map[domain.OperationType]int, len(domain.OperationTypes)),
	}
	for _, c := range domain.Categories {
		stats.CountByCategory[c] = 0
	}
	for _, t := range domain.OperationTypes {
		stats.CountByType[t] = 0
	}

	var cycle, defect, utilization, overhead, hourly float64
	for _, op := range ops {
		stats.Total++
		if op.IsActive {
			stats.ActiveCount++
		}
		stats.CountByCategory[op.Category]++
		stats.CountByType[op.OperationType]++
		switch op.RiskLevel {
		case domain.RiskHigh:
			stats.CountByRiskLevel.High++
		case domain.RiskCritical:
			stats.CountByRiskLevel.Critical++
		case domain.RiskLow, domain.RiskMedium:
		}
		cycle += op.CycleTime
		defect += op.DefectRate
		utilization += op.UtilizationRate
		overhead += op.OverheadRate
		hourly += op.HourlyRate()
	}

	stats.TotalHourlyCost = Round(hourly, 2)
	if stats.Total == 0 {
		return stats
	}
	n := float64(stats.Total)
	stats.AvgCycleTime = Round(cycle/n, 1)
	stats.AvgDefectRate = Round(defect/n, 1)
	stats.AvgUtilization = Round(utilization/n, 1)
	stats.AvgOverheadRate = Round(overhead/n, 1)
	return stats
}

// Round rounds v to the given number of decimal places, half away from
// zero. The decision is taken on the shortest decimal form of v, so 1.45
// (stored as 1.4499999...) rounds up while 0.04999996 stays below the half.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	places = max(places, 0)
	whole, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(v), 'f', -1, 64), ".")
	if len(frac) <= places {
		return v
	}
	scaled, err := strconv.ParseFloat(whole+frac[:places], 64)
	if err != nil {
		return v
	}
	if frac[places] >= '5' {
		scaled++
	}
	out := scaled / math.Pow10(places)
	if v < 0 && out != 0 {
		out = -out
	}
	return out
}
