package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gamma-omg/expense-go/internal/pkg/serr"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/store"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/validate"
	"github.com/google/uuid"
)

const createAttempts = 3

type expenseStore interface {
	CreateExpense(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error)
	ListExpenses(ctx context.Context, r store.ListExpensesRequest) ([]model.Expense, error)
	GetExpense(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error)
	DeleteExpense(ctx context.Context, r store.DeleteExpenseRequest) error
	GetTotals(ctx context.Context, r store.GetTotalsRequest) (model.Totals, error)
}

type expenseValidator interface {
	Expense(body []byte) (validate.Expense, error)
}

// publisher announces expense changes to other systems
type publisher interface {
	ExpenseCreated(ctx context.Context, e model.Expense) error
	ExpenseDeleted(ctx context.Context, ownerID string, id uuid.UUID) error
}

// Expenses implements the owner-scoped expense operations
type Expenses struct {
	store     expenseStore
	validator expenseValidator
	events    publisher
	newID     func() (uuid.UUID, error)
}

type ExpensesOption func(*Expenses) *Expenses

func WithStore(st expenseStore) ExpensesOption {
	return func(s *Expenses) *Expenses {
		s.store = st
		return s
	}
}

func WithValidator(v expenseValidator) ExpensesOption {
	return func(s *Expenses) *Expenses {
		s.validator = v
		return s
	}
}

func WithPublisher(p publisher) ExpensesOption {
	return func(s *Expenses) *Expenses {
		s.events = p
		return s
	}
}

func WithIDGenerator(fn func() (uuid.UUID, error)) ExpensesOption {
	return func(s *Expenses) *Expenses {
		s.newID = fn
		return s
	}
}

func NewExpenses(opts ...ExpensesOption) *Expenses {
	s := &Expenses{newID: uuid.NewRandom}
	for _, opt := range opts {
		s = opt(s)
	}

	if s.store == nil {
		panic("expense store is required")
	}

	if s.validator == nil {
		panic("validator is required")
	}

	if s.events == nil {
		panic("event publisher is required")
	}

	return s
}

type CreateExpenseRequest struct {
	OwnerID string
	Payload []byte
}

// Create validates the payload and stores it as a new expense of the owner.
// Validation failures are 400 with per-field messages, store failures are 500.
func (s *Expenses) Create(ctx context.Context, r CreateExpenseRequest) (model.Expense, error) {
	in, err := s.validator.Expense(r.Payload)
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			return model.Expense{}, serr.NewServiceError(err, http.StatusBadRequest, "Validation failed").WithFields(verr.Fields...)
		}

		if errors.Is(err, validate.ErrMalformed) {
			return model.Expense{}, serr.NewServiceError(err, http.StatusBadRequest, "Malformed JSON in request body")
		}

		return model.Expense{}, fmt.Errorf("validate expense: %w", err)
	}

	var e model.Expense
	for attempt := range createAttempts {
		id, idErr := s.newID()
		if idErr != nil {
			err = fmt.Errorf("generate id: %w", idErr)
			break
		}

		e, err = s.store.CreateExpense(ctx, store.CreateExpenseRequest{
			ID:      id,
			OwnerID: r.OwnerID,
			Amount:  in.Amount,
			Title:   in.Title,
			Date:    in.Date,
		})
		if !errors.Is(err, store.ErrExists) {
			break
		}

		slog.Warn("expense id collision", "id", id.String(), "attempt", attempt+1)
	}
	if err != nil {
		se := serr.NewServiceError(err, http.StatusInternalServerError, "Failed to create expense")
		se.Env["owner_id"] = r.OwnerID
		return model.Expense{}, se
	}

	if err := s.events.ExpenseCreated(ctx, e); err != nil {
		slog.Error("failed to publish expense created", "error", err, "expense_id", e.ID.String())
	}

	return e, nil
}

// List returns the owner's expenses in creation order
func (s *Expenses) List(ctx context.Context, ownerID string) ([]model.Expense, error) {
	items, err := s.store.ListExpenses(ctx, store.ListExpensesRequest{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return items, nil
}

// Get returns one of the owner's expenses. Unknown, foreign and malformed ids
// are all reported as the same 404.
func (s *Expenses) Get(ctx context.Context, ownerID, id string) (model.Expense, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.Expense{}, notFound(err, id)
	}

	e, err := s.store.GetExpense(ctx, store.GetExpenseRequest{OwnerID: ownerID, ID: uid})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Expense{}, notFound(err, id)
		}

		return model.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	return e, nil
}

// Delete removes one of the owner's expenses with the same 404 rule as Get
func (s *Expenses) Delete(ctx context.Context, ownerID, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return notFound(err, id)
	}

	if err := s.store.DeleteExpense(ctx, store.DeleteExpenseRequest{OwnerID: ownerID, ID: uid}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(err, id)
		}

		return fmt.Errorf("delete expense: %w", err)
	}

	if err := s.events.ExpenseDeleted(ctx, ownerID, uid); err != nil {
		slog.Error("failed to publish expense deleted", "error", err, "expense_id", id)
	}

	return nil
}

// Totals returns how many expenses the owner has and their exact sum
func (s *Expenses) Totals(ctx context.Context, ownerID string) (model.Totals, error) {
	t, err := s.store.GetTotals(ctx, store.GetTotalsRequest{OwnerID: ownerID})
	if err != nil {
		return model.Totals{}, fmt.Errorf("get totals: %w", err)
	}

	return t, nil
}

func notFound(err error, id string) error {
	se := serr.NewServiceError(err, http.StatusNotFound, "Expense not found")
	se.Env["expense_id"] = id
	return se
}
