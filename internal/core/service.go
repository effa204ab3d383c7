package core

import (
	"context"
	"iter"
	"strings"
	"time"

	"routingcore/internal/infra/persistence/memory"
	"routingcore/internal/routing"
	"routingcore/pkg/domain"
)

// Clock supplies the time used for record timestamps and audit entries.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reports the system
// time. Times are always returned in UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock. Stores that accept a time source
// are switched to it as well, so record timestamps follow the same clock.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder installs an audit recorder for registry writes.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// Service is the query façade over the operation registry. Writes go through
// the store's transactional rules; reads build a fresh routing graph from the
// registry as of the call.
type Service struct {
	store   domain.PersistentStore
	clock   Clock
	now     func() time.Time
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

type rulesEngineProvider interface {
	RulesEngine() *domain.RulesEngine
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type nowFuncSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.clock != nil {
		if setter, ok := store.(nowFuncSetter); ok {
			setter.SetNowFunc(s.clock.Now)
		}
	}
	s.now = selectNowFunc(store, s.clock)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory registry. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

func extractRulesEngine(store domain.PersistentStore) *domain.RulesEngine {
	if provider, ok := store.(rulesEngineProvider); ok {
		return provider.RulesEngine()
	}
	return nil
}

func selectNowFunc(store domain.PersistentStore, clock Clock) func() time.Time {
	if clock != nil {
		return func() time.Time { return clock.Now().UTC() }
	}
	if provider, ok := store.(nowFuncProvider); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	return func() time.Time { return time.Now().UTC() }
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// RulesEngine returns the store's rules engine, or nil when the store does
// not expose one.
func (s *Service) RulesEngine() *domain.RulesEngine { return extractRulesEngine(s.store) }

func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, elapsed)
	if err != nil {
		s.logger.Error("service call failed", "operation", operation, "error", err)
	} else {
		s.logger.Debug("service call", "operation", operation, "duration", elapsed)
	}
	return err
}

func (s *Service) report(ctx context.Context, operation string, warnings []domain.StructuralWarning) {
	if len(warnings) == 0 {
		return
	}
	for _, w := range warnings {
		s.logger.Warn("structural warning", "operation", operation, "kind", w.Kind, "from", w.From, "to", w.To, "detail", w.Detail)
	}
	if recorder, ok := s.metrics.(WarningRecorder); ok {
		recorder.ObserveWarnings(ctx, warnings)
	}
}

func (s *Service) recordAudit(ctx context.Context, operation string, action domain.Action, code string, duration time.Duration, err error) {
	entry := AuditEntry{
		Operation: operation,
		Entity:    domain.EntityOperation,
		Action:    action,
		EntityID:  code,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func writeAction(tx domain.Transaction, code string) domain.Action {
	if _, exists := tx.FindOperation(strings.TrimSpace(code)); exists {
		return domain.ActionUpdate
	}
	return domain.ActionCreate
}

// Put inserts or replaces an operation by code. On error the registry is
// unchanged; a blocking rule outcome is returned alongside its
// RuleViolationError.
func (s *Service) Put(ctx context.Context, op domain.Operation) (domain.Operation, domain.Result, error) {
	var (
		stored domain.Operation
		res    domain.Result
		action = domain.ActionCreate
	)
	started := time.Now()
	err := s.run(ctx, "put_operation", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			action = writeAction(tx, op.OperationCode)
			var err error
			stored, err = tx.PutOperation(op)
			return err
		})
		return err
	})
	s.recordAudit(ctx, "put_operation", action, strings.TrimSpace(op.OperationCode), time.Since(started), err)
	if err != nil {
		return domain.Operation{}, res, err
	}
	s.logger.Info("operation stored", "code", stored.OperationCode, "action", action)
	s.report(ctx, "put_operation", res.Warnings())
	return stored, res, nil
}

// PutAll writes a batch in one transaction. Edges are resolved against the
// registry plus the batch, so records that reference each other can be
// loaded together. Nothing is written if any record fails.
func (s *Service) PutAll(ctx context.Context, ops []domain.Operation) ([]domain.Operation, domain.Result, error) {
	var (
		stored  []domain.Operation
		actions []domain.Action
		res     domain.Result
	)
	started := time.Now()
	err := s.run(ctx, "put_operations", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			stored = make([]domain.Operation, 0, len(ops))
			actions = make([]domain.Action, 0, len(ops))
			for _, op := range ops {
				action := writeAction(tx, op.OperationCode)
				out, err := tx.PutOperation(op)
				if err != nil {
					return err
				}
				stored = append(stored, out)
				actions = append(actions, action)
			}
			return nil
		})
		return err
	})
	elapsed := time.Since(started)
	if err != nil {
		s.recordAudit(ctx, "put_operations", domain.ActionUpdate, "", elapsed, err)
		return nil, res, err
	}
	for i, op := range stored {
		s.recordAudit(ctx, "put_operations", actions[i], op.OperationCode, elapsed, nil)
	}
	s.logger.Info("operations stored", "count", len(stored))
	s.report(ctx, "put_operations", res.Warnings())
	return stored, res, nil
}

// Remove soft-deactivates an operation. Without force it fails with a
// ReferencedByActive ValidationError while any active operation still lists
// code in its edges; with force those edges come back as dangling warnings.
func (s *Service) Remove(ctx context.Context, code string, force bool) (domain.Operation, domain.Result, error) {
	var (
		removed domain.Operation
		res     domain.Result
	)
	started := time.Now()
	err := s.run(ctx, "remove_operation", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			removed, err = tx.DeactivateOperation(code, force)
			return err
		})
		return err
	})
	s.recordAudit(ctx, "remove_operation", domain.ActionDeactivate, code, time.Since(started), err)
	if err != nil {
		return domain.Operation{}, res, err
	}
	s.logger.Info("operation deactivated", "code", code, "force", force)
	s.report(ctx, "remove_operation", res.Warnings())
	return removed, res, nil
}

// Get returns the operation registered under code.
func (s *Service) Get(code string) (domain.Operation, bool) {
	return s.store.GetOperation(code)
}

// All iterates the registry in insertion order. Each iteration reads the
// registry afresh, so the sequence can be ranged over repeatedly.
func (s *Service) All() iter.Seq[domain.Operation] {
	return func(yield func(domain.Operation) bool) {
		for _, op := range s.store.ListOperations() {
			if !yield(op) {
				return
			}
		}
	}
}

// List returns every registered operation in insertion order.
func (s *Service) List() []domain.Operation { return s.store.ListOperations() }

// Filter returns the operations matching predicate; nil matches all.
func (s *Service) Filter(predicate domain.Predicate) []domain.Operation {
	return domain.Filter(s.store.ListOperations(), predicate)
}

// ByType returns operations of the given type.
func (s *Service) ByType(t domain.OperationType) []domain.Operation {
	return s.Filter(domain.ByType(t))
}

// ByCategory returns operations in the given category.
func (s *Service) ByCategory(c domain.Category) []domain.Operation {
	return s.Filter(domain.ByCategory(c))
}

// ByRiskLevel returns operations with exactly the given risk level.
func (s *Service) ByRiskLevel(r domain.RiskLevel) []domain.Operation {
	return s.Filter(domain.ByRiskLevel(r))
}

// Graph builds a routing graph over the current registry.
func (s *Service) Graph() *routing.Graph {
	return routing.NewGraph(s.store.ListOperations())
}

// SequenceFrom returns the routing reachable from start. An unknown start
// yields an empty sequence; cycles and dangling edges are skipped and
// reported in the sequence warnings.
func (s *Service) SequenceFrom(ctx context.Context, start string) routing.Sequence {
	var seq routing.Sequence
	_ = s.run(ctx, "sequence_from", func(context.Context) error {
		seq = s.Graph().SequenceFrom(start)
		return nil
	})
	s.report(ctx, "sequence_from", seq.Warnings)
	return seq
}

// Stats aggregates the operations matching predicate; nil matches all.
func (s *Service) Stats(ctx context.Context, predicate domain.Predicate) routing.Stats {
	var stats routing.Stats
	_ = s.run(ctx, "stats", func(context.Context) error {
		stats = routing.StatsFor(s.store.ListOperations(), predicate)
		return nil
	})
	return stats
}

// Estimate prices a batch of quantity units along the routing from start.
func (s *Service) Estimate(ctx context.Context, start string, quantity float64) (routing.Estimate, error) {
	var est routing.Estimate
	err := s.run(ctx, "estimate", func(context.Context) error {
		var err error
		est, err = s.Graph().EstimateFrom(start, quantity)
		return err
	})
	if err != nil {
		return routing.Estimate{}, err
	}
	s.report(ctx, "estimate", est.Warnings)
	return est, nil
}

// Validate returns every structural warning in the registry: asymmetric
// edges, dangling edges, then cycles.
func (s *Service) Validate(ctx context.Context) []domain.StructuralWarning {
	var warnings []domain.StructuralWarning
	_ = s.run(ctx, "validate", func(context.Context) error {
		g := s.Graph()
		warnings = append(warnings, g.FindAsymmetricEdges()...)
		warnings = append(warnings, g.DanglingEdges()...)
		warnings = append(warnings, g.DetectCycles()...)
		return nil
	})
	s.report(ctx, "validate", warnings)
	return warnings
}
