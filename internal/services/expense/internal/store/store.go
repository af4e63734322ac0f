package store

import (
	"context"
	"errors"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Store persists expenses and the user mirror. Every expense request carries
// the owner, and implementations filter by it in the same statement as the id.
type Store interface {
	CreateExpense(ctx context.Context, r CreateExpenseRequest) (model.Expense, error)
	ListExpenses(ctx context.Context, r ListExpensesRequest) ([]model.Expense, error)
	GetExpense(ctx context.Context, r GetExpenseRequest) (model.Expense, error)
	DeleteExpense(ctx context.Context, r DeleteExpenseRequest) error
	GetTotals(ctx context.Context, r GetTotalsRequest) (model.Totals, error)
	UpsertUser(ctx context.Context, r UpsertUserRequest) error
	Ping(ctx context.Context) error
	Close() error
}
