package routing

import (
	"slices"
	"testing"

	"routingcore/pkg/domain"
)

func node(code string, succ ...string) domain.Operation {
	return domain.Operation{
		OperationCode:        code,
		OperationName:        code,
		OperationType:        domain.TypeAssembly,
		Category:             domain.CategoryManufacturing,
		RiskLevel:            domain.RiskLow,
		SucceedingOperations: succ,
		IsActive:             true,
	}
}

// linked fills precedingOperations from the successor lists so every edge is
// recorded on both sides.
func linked(ops ...domain.Operation) []domain.Operation {
	index := make(map[string]int, len(ops))
	for i, op := range ops {
		index[op.OperationCode] = i
	}
	for _, op := range ops {
		for _, s := range op.SucceedingOperations {
			if j, ok := index[s]; ok {
				ops[j].PrecedingOperations = append(ops[j].PrecedingOperations, op.OperationCode)
			}
		}
	}
	return ops
}

func assertCodes(t *testing.T, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func indexOf(codes []string, code string) int {
	return slices.Index(codes, code)
}
