package core

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"routingcore/internal/fixtures"
	"routingcore/pkg/domain"
)

func operation(code string, succ ...string) domain.Operation {
	return domain.Operation{
		OperationCode:        code,
		OperationName:        "Operation " + code,
		OperationType:        domain.TypeAssembly,
		Category:             domain.CategoryManufacturing,
		RiskLevel:            domain.RiskLow,
		CycleTime:            2,
		SucceedingOperations: succ,
		IsActive:             true,
	}
}

// linked fills precedingOperations from the successor lists.
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

func seededService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewInMemoryService(nil, opts...)
	if _, _, err := svc.PutAll(context.Background(), fixtures.Operations(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("seed fixtures: %v", err)
	}
	return svc
}

func codesOf(ops []domain.Operation) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.OperationCode)
	}
	return out
}

func hasWarning(warnings []domain.StructuralWarning, kind domain.WarningKind) bool {
	return slices.ContainsFunc(warnings, func(w domain.StructuralWarning) bool { return w.Kind == kind })
}

func TestFixtureRoutingSequence(t *testing.T) {
	svc := seededService(t)
	seq := svc.SequenceFrom(context.Background(), fixtures.Cutting)
	codes := seq.Codes()
	if len(codes) == 0 || codes[0] != fixtures.Cutting {
		t.Fatalf("expected sequence to start at cutting, got %v", codes)
	}
	pos := func(code string) int { return slices.Index(codes, code) }
	if pos(fixtures.Bending) < 0 || pos(fixtures.Welding) < 0 || pos(fixtures.Finishing) < 0 {
		t.Fatalf("expected bending, welding, finishing in %v", codes)
	}
	if pos(fixtures.Bending) > pos(fixtures.Finishing) || pos(fixtures.Welding) > pos(fixtures.Finishing) {
		t.Fatalf("expected bending and welding before finishing, got %v", codes)
	}
	if pos(fixtures.Inspection) > pos(fixtures.Packaging) || codes[len(codes)-1] != fixtures.Packaging {
		t.Fatalf("expected inspection before packaging and packaging last, got %v", codes)
	}
	if len(seq.Warnings) != 0 {
		t.Fatalf("expected clean fixture routing, got %v", seq.Warnings)
	}
	if len(svc.Validate(context.Background())) != 0 {
		t.Fatalf("expected no structural warnings over fixtures")
	}
}

func TestFixtureManufacturingStats(t *testing.T) {
	svc := seededService(t)
	stats := svc.Stats(context.Background(), domain.ByCategory(domain.CategoryManufacturing))
	if stats.Total != 5 {
		t.Fatalf("expected 5 manufacturing operations, got %d", stats.Total)
	}
	if stats.AvgDefectRate <= 0 {
		t.Fatalf("expected non-zero average defect rate")
	}
	empty := svc.Stats(context.Background(), domain.ByType("none"))
	if empty.Total != 0 || empty.AvgCycleTime != 0 || empty.AvgDefectRate != 0 || empty.AvgUtilization != 0 {
		t.Fatalf("expected zeroed stats for empty selection, got %+v", empty)
	}
}

func TestFilterFactoriesMatchAll(t *testing.T) {
	svc := seededService(t)
	var all []domain.Operation
	for op := range svc.All() {
		all = append(all, op)
	}
	for _, risk := range domain.RiskLevels {
		got := codesOf(svc.ByRiskLevel(risk))
		var want []string
		for _, op := range all {
			if op.RiskLevel == risk {
				want = append(want, op.OperationCode)
			}
		}
		if !slices.Equal(got, want) && !(len(got) == 0 && len(want) == 0) {
			t.Fatalf("risk %s: expected %v, got %v", risk, want, got)
		}
	}
	if len(svc.ByType(domain.TypeWelding)) != 1 || len(svc.ByCategory(domain.CategoryQuality)) != 1 {
		t.Fatalf("unexpected type/category filter results")
	}
}

func TestAllIsRestartableAndOrdered(t *testing.T) {
	svc := seededService(t)
	first := make([]string, 0, 8)
	for op := range svc.All() {
		first = append(first, op.OperationCode)
	}
	second := make([]string, 0, 8)
	for op := range svc.All() {
		second = append(second, op.OperationCode)
		if len(second) == 2 {
			break
		}
	}
	if len(first) != 8 || first[0] != fixtures.Cutting {
		t.Fatalf("expected fixtures in insertion order, got %v", first)
	}
	if !slices.Equal(second, first[:2]) {
		t.Fatalf("expected restartable iteration, got %v", second)
	}
}

func TestPutRejectsMissingInspectionFields(t *testing.T) {
	svc := NewInMemoryService(nil)
	op := operation("OP-QC")
	op.RequiresInspection = true
	_, _, err := svc.Put(context.Background(), op)
	if !errors.Is(err, domain.ErrMissingInspectionFields) {
		t.Fatalf("expected missing inspection fields, got %v", err)
	}
	if _, ok := svc.Get("OP-QC"); ok {
		t.Fatalf("expected registry unchanged")
	}
}

func TestPutRejectsDanglingEdge(t *testing.T) {
	svc := NewInMemoryService(nil)
	_, res, err := svc.Put(context.Background(), operation("OP-A", "OP-MISSING"))
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Kind != domain.KindDanglingEdge || verr.Ref != "OP-MISSING" {
		t.Fatalf("expected dangling edge naming OP-MISSING, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result alongside the error")
	}
	if len(svc.List()) != 0 {
		t.Fatalf("expected registry unchanged")
	}
}

func TestPutAllResolvesEdgesWithinBatch(t *testing.T) {
	svc := NewInMemoryService(nil)
	ops := linked(operation("OP-A", "OP-B"), operation("OP-B"))
	stored, res, err := svc.PutAll(context.Background(), ops)
	if err != nil {
		t.Fatalf("put all: %v", err)
	}
	if len(stored) != 2 || len(res.Warnings()) != 0 {
		t.Fatalf("expected clean batch, got %d stored and %v", len(stored), res.Warnings())
	}
}

func TestPutAllIsAtomic(t *testing.T) {
	svc := NewInMemoryService(nil)
	bad := operation("OP-B")
	bad.UtilizationRate = 120
	if _, _, err := svc.PutAll(context.Background(), []domain.Operation{operation("OP-A"), bad}); !errors.Is(err, domain.ErrOutOfRangePercentage) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	if len(svc.List()) != 0 {
		t.Fatalf("expected nothing written")
	}
}

func TestPutReportsAsymmetricEdge(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	if _, _, err := svc.Put(ctx, operation("OP-B")); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, res, err := svc.Put(ctx, operation("OP-A", "OP-B"))
	if err != nil {
		t.Fatalf("asymmetric edges must not block writes: %v", err)
	}
	warnings := res.Warnings()
	if len(warnings) != 1 || warnings[0].Kind != domain.WarningAsymmetricEdge || warnings[0].From != "OP-A" || warnings[0].To != "OP-B" {
		t.Fatalf("expected one asymmetric warning, got %v", warnings)
	}
}

func TestPutReportsCycle(t *testing.T) {
	svc := NewInMemoryService(nil)
	ops := linked(operation("OP-A", "OP-B"), operation("OP-B", "OP-C"), operation("OP-C", "OP-A"))
	_, res, err := svc.PutAll(context.Background(), ops)
	if err != nil {
		t.Fatalf("cycles must not block writes: %v", err)
	}
	if !hasWarning(res.Warnings(), domain.WarningCycleDetected) {
		t.Fatalf("expected cycle warning, got %v", res.Warnings())
	}
	seq := svc.SequenceFrom(context.Background(), "OP-A")
	if !slices.Equal(seq.Codes(), []string{"OP-A", "OP-B", "OP-C"}) {
		t.Fatalf("expected cycle-safe prefix, got %v", seq.Codes())
	}
	if !hasWarning(seq.Warnings, domain.WarningCycleDetected) {
		t.Fatalf("expected sequence cycle warning")
	}
}

func TestPutUpdateAndIdempotence(t *testing.T) {
	first := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	now := first
	svc := NewInMemoryService(nil, WithClock(ClockFunc(func() time.Time { return now })))
	ctx := context.Background()
	created, _, err := svc.Put(ctx, operation("OP-A"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !created.CreatedAt.Equal(first) || !created.UpdatedAt.Equal(first) {
		t.Fatalf("expected timestamps from clock, got %v/%v", created.CreatedAt, created.UpdatedAt)
	}
	now = first.Add(time.Hour)
	again, _, err := svc.Put(ctx, operation("OP-A"))
	if err != nil {
		t.Fatalf("re-put: %v", err)
	}
	if !again.UpdatedAt.Equal(first) || again.ID != created.ID {
		t.Fatalf("expected identical re-put to be a no-op, got %+v", again)
	}
	changed := operation("OP-A")
	changed.CycleTime = 7
	updated, _, err := svc.Put(ctx, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.Equal(now) || !updated.CreatedAt.Equal(first) {
		t.Fatalf("expected update to bump updatedAt only, got %+v", updated)
	}
	if len(svc.List()) != 1 {
		t.Fatalf("expected a single record per code")
	}
	foreign := operation("OP-A")
	foreign.ID = "another-id"
	if _, _, err := svc.Put(ctx, foreign); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected duplicate code for foreign id, got %v", err)
	}
}

func TestRemoveRespectsActiveReferrers(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	if _, _, err := svc.PutAll(ctx, linked(operation("OP-A", "OP-B"), operation("OP-B"))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := svc.Remove(ctx, "OP-B", false); !errors.Is(err, domain.ErrReferencedByActive) {
		t.Fatalf("expected referenced-by-active error, got %v", err)
	}
	removed, res, err := svc.Remove(ctx, "OP-B", true)
	if err != nil {
		t.Fatalf("forced remove: %v", err)
	}
	if removed.IsActive {
		t.Fatalf("expected deactivated record")
	}
	if !hasWarning(res.Warnings(), domain.WarningDanglingEdge) {
		t.Fatalf("expected dangling warning for the surviving edge, got %v", res.Warnings())
	}
	seq := svc.SequenceFrom(ctx, "OP-A")
	if !slices.Equal(seq.Codes(), []string{"OP-A"}) || !hasWarning(seq.Warnings, domain.WarningDanglingEdge) {
		t.Fatalf("expected inactive successor skipped with warning, got %v %v", seq.Codes(), seq.Warnings)
	}
	if _, _, err := svc.Remove(ctx, "OP-NONE", false); !errors.As(err, new(domain.ErrNotFound)) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPutDeactivationRespectsActiveReferrers(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	if _, _, err := svc.PutAll(ctx, linked(operation("OP-A", "OP-B"), operation("OP-B"))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := svc.Remove(ctx, "OP-B", false); !errors.Is(err, domain.ErrReferencedByActive) {
		t.Fatalf("expected unforced remove refused, got %v", err)
	}
	inactive, _ := svc.Get("OP-B")
	inactive.IsActive = false
	_, _, err := svc.Put(ctx, inactive)
	var verr domain.ValidationError
	if !errors.Is(err, domain.ErrReferencedByActive) || !errors.As(err, &verr) || verr.Ref != "OP-A" {
		t.Fatalf("expected put clearing isActive refused like remove, got %v", err)
	}
	if current, _ := svc.Get("OP-B"); !current.IsActive {
		t.Fatalf("expected OP-B to stay active after refused put")
	}

	// OP-D names OP-C as predecessor but OP-C does not list OP-D back.
	oneSided := operation("OP-D")
	oneSided.PrecedingOperations = []string{"OP-C"}
	if _, _, err := svc.PutAll(ctx, []domain.Operation{operation("OP-C"), oneSided}); err != nil {
		t.Fatalf("seed one-sided: %v", err)
	}
	oneSided.IsActive = false
	updated, res, err := svc.Put(ctx, oneSided)
	if err != nil {
		t.Fatalf("expected unreferenced deactivation allowed, got %v", err)
	}
	if updated.IsActive || !hasWarning(res.Warnings(), domain.WarningDanglingEdge) {
		t.Fatalf("expected inactive record with dangling warning, got %+v %v", updated, res.Warnings())
	}

	loose := operation("OP-E")
	if _, _, err := svc.Put(ctx, loose); err != nil {
		t.Fatalf("put: %v", err)
	}
	loose.IsActive = false
	if got, res, err := svc.Put(ctx, loose); err != nil || got.IsActive || len(res.Warnings()) != 0 {
		t.Fatalf("expected quiet deactivation of unreferenced op, got %+v %v %v", got, res.Warnings(), err)
	}
}

func TestSequenceFromUnknownStartIsEmpty(t *testing.T) {
	svc := seededService(t)
	seq := svc.SequenceFrom(context.Background(), "OP-NOPE")
	if seq.Operations == nil || len(seq.Operations) != 0 {
		t.Fatalf("expected empty non-nil sequence, got %#v", seq.Operations)
	}
}

func TestEstimateOverFixtures(t *testing.T) {
	svc := seededService(t)
	est, err := svc.Estimate(context.Background(), fixtures.Cutting, 10)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(est.Lines) != 6 || est.TotalCost <= 0 {
		t.Fatalf("unexpected estimate %+v", est)
	}
	if est.CriticalPathMinutes > est.TotalMinutes {
		t.Fatalf("critical path cannot exceed total minutes")
	}
	if _, err := svc.Estimate(context.Background(), fixtures.Cutting, -1); !errors.Is(err, domain.ErrNegativeValue) {
		t.Fatalf("expected negative quantity error, got %v", err)
	}
}

func TestGraphHelpersOverFixtures(t *testing.T) {
	svc := seededService(t)
	g := svc.Graph()
	if !slices.Equal(g.Roots(), []string{fixtures.Cutting, fixtures.CNCSetup}) {
		t.Fatalf("unexpected roots %v", g.Roots())
	}
	groups := g.ParallelGroups(fixtures.Cutting)
	if len(groups) != 1 || !slices.Equal(groups[0], []string{fixtures.Bending, fixtures.Welding}) {
		t.Fatalf("expected bending and welding grouped, got %v", groups)
	}
}

func TestClockFunc(t *testing.T) {
	if got := ClockFunc(nil).Now(); got.IsZero() || got.Location() != time.UTC {
		t.Fatalf("expected current UTC time, got %v", got)
	}
	local := time.Date(2024, 7, 4, 12, 0, 0, 0, time.FixedZone("offset", -5*3600))
	if got := ClockFunc(func() time.Time { return local }).Now(); !got.Equal(local) || got.Location() != time.UTC {
		t.Fatalf("expected UTC conversion, got %v", got)
	}
}

func TestRulesEngineExposed(t *testing.T) {
	engine := NewDefaultRulesEngine()
	svc := NewInMemoryService(engine)
	if svc.RulesEngine() != engine {
		t.Fatalf("expected engine passthrough")
	}
	if len(engine.Rules()) != 4 {
		t.Fatalf("expected four default rules, got %d", len(engine.Rules()))
	}
}
