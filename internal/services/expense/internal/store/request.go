package store

import (
	"time"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"github.com/google/uuid"
)

type CreateExpenseRequest struct {
	ID      uuid.UUID
	OwnerID string
	Amount  money.Amount
	Title   string
	Date    *time.Time
}

type ListExpensesRequest struct {
	OwnerID string
}

type GetExpenseRequest struct {
	OwnerID string
	ID      uuid.UUID
}

type DeleteExpenseRequest struct {
	OwnerID string
	ID      uuid.UUID
}

type GetTotalsRequest struct {
	OwnerID string
}

type UpsertUserRequest struct {
	ID      string
	Name    string
	Email   string
	Picture string
}
