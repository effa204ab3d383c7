package domain

import "context"

// Transaction exposes the registry mutations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	PutOperation(Operation) (Operation, error)
	DeactivateOperation(code string, force bool) (Operation, error)
	FindOperation(code string) (Operation, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListOperations() []Operation
	FindOperation(code string) (Operation, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of registry capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetOperation(code string) (Operation, bool)
	ListOperations() []Operation
}
