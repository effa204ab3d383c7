// Package memory provides the in-memory operation registry used by the
// service layer, tests, and as the working set of the durable backends.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"routingcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Operation aliases domain.Operation for in-memory persistence operations.
	Operation = domain.Operation
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

// memoryState keys operations by code and remembers insertion order
// separately so listings are stable across clones.
type memoryState struct {
	operations map[string]Operation
	order      []string
}

// Snapshot captures a point-in-time clone of the store state. Operations are
// listed in registry insertion order.
type Snapshot struct {
	Operations []Operation `json:"operations"`
}

func newMemoryState() memoryState {
	return memoryState{operations: make(map[string]Operation)}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{Operations: make([]Operation, 0, len(state.order))}
	for _, code := range state.order {
		s.Operations = append(s.Operations, state.operations[code].Clone())
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, op := range s.Operations {
		if _, exists := state.operations[op.OperationCode]; !exists {
			state.order = append(state.order, op.OperationCode)
		}
		state.operations[op.OperationCode] = op.Clone()
	}
	return state
}

// migrateSnapshot normalizes imported records: blank codes are dropped and
// edge lists are deduplicated. Edges that do not resolve are kept so the
// routing graph can report them.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	out := Snapshot{Operations: make([]Operation, 0, len(snapshot.Operations))}
	for _, op := range snapshot.Operations {
		op = domain.NormalizeOperation(op)
		if op.OperationCode == "" {
			continue
		}
		out.Operations = append(out.Operations, op)
	}
	return out
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		operations: make(map[string]Operation, len(s.operations)),
		order:      slices.Clone(s.order),
	}
	for k, v := range s.operations {
		cloned.operations[k] = v.Clone()
	}
	return cloned
}

func (s memoryState) list() []Operation {
	out := make([]Operation, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.operations[code].Clone())
	}
	return out
}

// Store provides an in-memory transactional store for the operation registry.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. Imported
// records bypass write validation.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider used to stamp createdAt/updatedAt.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.nowFn = fn
	s.mu.Unlock()
}

// GetOperation returns the operation registered under code.
func (s *Store) GetOperation(code string) (Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.state.operations[code]
	if !ok {
		return Operation{}, false
	}
	return op.Clone(), true
}

// ListOperations returns every operation in insertion order.
func (s *Store) ListOperations() []Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.list()
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListOperations returns all operations within the snapshot in insertion order.
func (v transactionView) ListOperations() []Operation {
	return v.state.list()
}

// FindOperation retrieves an operation by code from the snapshot.
func (v transactionView) FindOperation(code string) (Operation, bool) {
	op, ok := v.state.operations[code]
	if !ok {
		return Operation{}, false
	}
	return op.Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Nothing is committed when fn fails or a rule blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindOperation exposes operation lookup within the transaction scope.
func (tx *transaction) FindOperation(code string) (Operation, bool) {
	op, ok := tx.state.operations[code]
	if !ok {
		return Operation{}, false
	}
	return op.Clone(), true
}

// PutOperation inserts or replaces an operation keyed by its code. A record
// carrying a different non-empty id than the stored one is a code collision.
// Re-putting identical content is a no-op and leaves updatedAt untouched.
// Clearing isActive through a put is held to the same referrer check as an
// unforced DeactivateOperation.
func (tx *transaction) PutOperation(op Operation) (Operation, error) {
	op = domain.NormalizeOperation(op)
	if err := domain.ValidateOperation(op); err != nil {
		return Operation{}, err
	}
	code := op.OperationCode
	for _, ref := range slices.Concat(op.PrecedingOperations, op.SucceedingOperations) {
		if ref == code {
			return Operation{}, domain.ValidationError{
				Kind: domain.KindDanglingEdge, Code: code, Ref: ref, Detail: "self",
			}
		}
	}

	current, exists := tx.state.operations[code]
	if !exists {
		if op.ID == "" {
			op.ID = tx.store.newID()
		}
		for _, other := range tx.state.operations {
			if other.ID == op.ID {
				return Operation{}, domain.ValidationError{
					Kind: domain.KindDuplicateCode, Code: code, Field: "id",
					Detail: "id already used by " + other.OperationCode,
				}
			}
		}
		op.CreatedAt = tx.now
		op.UpdatedAt = tx.now
		tx.state.operations[code] = op.Clone()
		tx.state.order = append(tx.state.order, code)
		tx.recordChange(Change{Entity: domain.EntityOperation, Action: domain.ActionCreate, After: op.Clone()})
		return op, nil
	}

	if op.ID != "" && op.ID != current.ID {
		return Operation{}, domain.ValidationError{
			Kind: domain.KindDuplicateCode, Code: code, Field: "operationCode",
			Detail: "code already registered to id " + current.ID,
		}
	}
	if current.IsActive && !op.IsActive {
		if referrer, found := tx.activeReferrer(code); found {
			return Operation{}, domain.ValidationError{
				Kind: domain.KindReferencedByActive, Code: code, Field: "isActive", Ref: referrer,
				Detail: "still referenced by active operation " + referrer + "; deactivate with a forced remove",
			}
		}
	}
	op.ID = current.ID
	op.CreatedAt = current.CreatedAt
	op.UpdatedAt = current.UpdatedAt
	if sameContent(current, op) {
		return current.Clone(), nil
	}
	op.UpdatedAt = tx.now
	tx.state.operations[code] = op.Clone()
	tx.recordChange(Change{Entity: domain.EntityOperation, Action: domain.ActionUpdate, Before: current.Clone(), After: op.Clone()})
	return op, nil
}

// DeactivateOperation soft-deletes an operation. Active operations that still
// reference code block the call unless force is set.
func (tx *transaction) DeactivateOperation(code string, force bool) (Operation, error) {
	current, ok := tx.state.operations[code]
	if !ok {
		return Operation{}, domain.ErrNotFound{Entity: domain.EntityOperation, Code: code}
	}
	if !force {
		if referrer, found := tx.activeReferrer(code); found {
			return Operation{}, domain.ValidationError{
				Kind: domain.KindReferencedByActive, Code: code, Ref: referrer,
				Detail: "still referenced by active operation " + referrer,
			}
		}
	}
	if !current.IsActive {
		return current.Clone(), nil
	}
	before := current.Clone()
	current.IsActive = false
	current.UpdatedAt = tx.now
	tx.state.operations[code] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityOperation, Action: domain.ActionDeactivate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// activeReferrer returns the first active operation, in insertion order,
// whose edges name code.
func (tx *transaction) activeReferrer(code string) (string, bool) {
	for _, other := range tx.state.order {
		if other == code {
			continue
		}
		op := tx.state.operations[other]
		if op.IsActive && op.References(code) {
			return other, true
		}
	}
	return "", false
}

// sameContent compares the JSON encoding of two records so nil and empty
// collections are treated alike.
func sameContent(a, b Operation) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
