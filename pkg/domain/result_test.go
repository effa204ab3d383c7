package domain

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "edge to nowhere"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "edge to nowhere") {
		t.Fatalf("expected first blocking message in %q", err.Error())
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestResultWarningsSkipBlockingAndLog(t *testing.T) {
	w := StructuralWarning{Kind: WarningAsymmetricEdge, From: "A", To: "B"}
	res := Result{Violations: []Violation{
		{Severity: SeverityWarn, Warning: &w},
		{Severity: SeverityLog},
		{Severity: SeverityBlock, Warning: &w},
	}}
	got := res.Warnings()
	if len(got) != 1 || !reflect.DeepEqual(got[0], w) {
		t.Fatalf("expected a single warning, got %+v", got)
	}
}

func TestRuleViolationErrorUnwrapsValidation(t *testing.T) {
	verr := ValidationError{Kind: KindDanglingEdge, Code: "OP-A", Ref: "OP-X"}
	err := fmt.Errorf("put: %w", RuleViolationError{Result: Result{Violations: []Violation{
		{Severity: SeverityBlock, Message: verr.Error(), Validation: &verr},
	}}})
	if !errors.Is(err, ErrDanglingEdge) {
		t.Fatalf("expected dangling edge to match through wrapping")
	}
	var got ValidationError
	if !errors.As(err, &got) || got.Ref != "OP-X" {
		t.Fatalf("expected validation error with ref, got %+v", got)
	}
	if errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("kinds must not cross-match")
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if len(engine.Rules()) != 1 {
		t.Fatalf("expected registered rule")
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(failingRule{})
	engine.Register(staticRule{"never"})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected rule error")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "fail" }

func (failingRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}

type emptyView struct{}

func (emptyView) ListOperations() []Operation            { return nil }
func (emptyView) FindOperation(string) (Operation, bool) { return Operation{}, false }
