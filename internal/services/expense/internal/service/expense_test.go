package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gamma-omg/expense-go/internal/pkg/serr"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/store"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/validate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExpenseStore struct {
	createFunc func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error)
	listFunc   func(ctx context.Context, r store.ListExpensesRequest) ([]model.Expense, error)
	getFunc    func(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error)
	deleteFunc func(ctx context.Context, r store.DeleteExpenseRequest) error
	totalsFunc func(ctx context.Context, r store.GetTotalsRequest) (model.Totals, error)
}

func (m *mockExpenseStore) CreateExpense(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
	return m.createFunc(ctx, r)
}

func (m *mockExpenseStore) ListExpenses(ctx context.Context, r store.ListExpensesRequest) ([]model.Expense, error) {
	return m.listFunc(ctx, r)
}

func (m *mockExpenseStore) GetExpense(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error) {
	return m.getFunc(ctx, r)
}

func (m *mockExpenseStore) DeleteExpense(ctx context.Context, r store.DeleteExpenseRequest) error {
	return m.deleteFunc(ctx, r)
}

func (m *mockExpenseStore) GetTotals(ctx context.Context, r store.GetTotalsRequest) (model.Totals, error) {
	return m.totalsFunc(ctx, r)
}

type mockPublisher struct {
	created []model.Expense
	deleted []uuid.UUID
	err     error
}

func (m *mockPublisher) ExpenseCreated(_ context.Context, e model.Expense) error {
	m.created = append(m.created, e)
	return m.err
}

func (m *mockPublisher) ExpenseDeleted(_ context.Context, _ string, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

type mockValidator struct {
	expenseFunc func(body []byte) (validate.Expense, error)
}

func (m *mockValidator) Expense(body []byte) (validate.Expense, error) {
	return m.expenseFunc(body)
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newExpenses(st *mockExpenseStore, pub *mockPublisher, opts ...ExpensesOption) *Expenses {
	base := []ExpensesOption{
		WithStore(st),
		WithValidator(validate.New(validate.WithClock(func() time.Time { return fixedNow }))),
		WithPublisher(pub),
	}
	return NewExpenses(append(base, opts...)...)
}

func echoCreate(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
	return model.Expense{
		ID:        r.ID,
		Amount:    r.Amount,
		Title:     r.Title,
		Date:      r.Date,
		CreatedBy: r.OwnerID,
		CreatedAt: fixedNow,
	}, nil
}

func requireServiceError(t *testing.T, err error, status int, msg string) *serr.ServiceError {
	t.Helper()

	var se *serr.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, status, se.StatusCode)
	assert.Equal(t, msg, se.Msg)
	return se
}

func TestNewExpenses_RequiresDeps(t *testing.T) {
	assert.Panics(t, func() { NewExpenses() })
	assert.Panics(t, func() { NewExpenses(WithStore(&mockExpenseStore{})) })
	assert.Panics(t, func() {
		NewExpenses(WithStore(&mockExpenseStore{}), WithValidator(validate.New()))
	})
}

func TestExpenses_Create(t *testing.T) {
	var got store.CreateExpenseRequest
	pub := &mockPublisher{}
	svc := newExpenses(&mockExpenseStore{
		createFunc: func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
			got = r
			return echoCreate(ctx, r)
		},
	}, pub)

	e, err := svc.Create(context.Background(), CreateExpenseRequest{
		OwnerID: "user-a",
		Payload: []byte(`{"amount":"12.5","title":"Groceries","date":"2025-06-01","createdBy":"user-b"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "user-a", got.OwnerID)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "12.50", got.Amount.String())
	assert.Equal(t, "Groceries", got.Title)
	require.NotNil(t, got.Date)
	assert.Equal(t, "2025-06-01", got.Date.Format(model.DateLayout))

	assert.Equal(t, "user-a", e.CreatedBy)
	assert.Equal(t, got.ID, e.ID)
	require.Len(t, pub.created, 1)
	assert.Equal(t, e.ID, pub.created[0].ID)
}

func TestExpenses_Create_FreshIDs(t *testing.T) {
	ids := map[uuid.UUID]bool{}
	svc := newExpenses(&mockExpenseStore{
		createFunc: func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
			ids[r.ID] = true
			return echoCreate(ctx, r)
		},
	}, &mockPublisher{})

	for range 5 {
		_, err := svc.Create(context.Background(), CreateExpenseRequest{
			OwnerID: "user-a",
			Payload: []byte(`{"amount":"1","title":"Coffee","date":null}`),
		})
		require.NoError(t, err)
	}
	assert.Len(t, ids, 5)
}

func TestExpenses_Create_ValidationFailed(t *testing.T) {
	called := false
	svc := newExpenses(&mockExpenseStore{
		createFunc: func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
			called = true
			return echoCreate(ctx, r)
		},
	}, &mockPublisher{})

	_, err := svc.Create(context.Background(), CreateExpenseRequest{
		OwnerID: "user-a",
		Payload: []byte(`{"amount":"abc","title":"ab","date":"2025-06-16"}`),
	})

	se := requireServiceError(t, err, http.StatusBadRequest, "Validation failed")
	assert.Equal(t, []serr.FieldError{
		{Field: "amount", Message: "Amount must be a valid currency"},
		{Field: "title", Message: "Title must be at least 3 characters"},
		{Field: "date", Message: "Date cannot be in the future"},
	}, se.Fields)
	assert.False(t, called)
}

func TestExpenses_Create_Malformed(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{}, &mockPublisher{})

	_, err := svc.Create(context.Background(), CreateExpenseRequest{OwnerID: "user-a", Payload: []byte(`[1,2]`)})
	requireServiceError(t, err, http.StatusBadRequest, "Malformed JSON in request body")
}

func TestExpenses_Create_UnexpectedValidatorError(t *testing.T) {
	boom := errors.New("boom")
	svc := newExpenses(&mockExpenseStore{}, &mockPublisher{}, WithValidator(&mockValidator{
		expenseFunc: func([]byte) (validate.Expense, error) { return validate.Expense{}, boom },
	}))

	_, err := svc.Create(context.Background(), CreateExpenseRequest{OwnerID: "user-a"})
	require.ErrorIs(t, err, boom)

	var se *serr.ServiceError
	assert.False(t, errors.As(err, &se))
}

func TestExpenses_Create_StoreFailure(t *testing.T) {
	pub := &mockPublisher{}
	svc := newExpenses(&mockExpenseStore{
		createFunc: func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
			return model.Expense{}, errors.New("connection refused")
		},
	}, pub)

	_, err := svc.Create(context.Background(), CreateExpenseRequest{
		OwnerID: "user-a",
		Payload: []byte(`{"amount":"1.00","title":"Coffee","date":null}`),
	})
	requireServiceError(t, err, http.StatusInternalServerError, "Failed to create expense")
	assert.Empty(t, pub.created)
}

func TestExpenses_Create_RetriesOnIDCollision(t *testing.T) {
	attempts := 0
	svc := newExpenses(&mockExpenseStore{
		createFunc: func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
			attempts++
			if attempts < 2 {
				return model.Expense{}, store.ErrExists
			}
			return echoCreate(ctx, r)
		},
	}, &mockPublisher{})

	_, err := svc.Create(context.Background(), CreateExpenseRequest{
		OwnerID: "user-a",
		Payload: []byte(`{"amount":"1.00","title":"Coffee","date":null}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestExpenses_Create_GivesUpAfterCollisions(t *testing.T) {
	attempts := 0
	svc := newExpenses(&mockExpenseStore{
		createFunc: func(ctx context.Context, r store.CreateExpenseRequest) (model.Expense, error) {
			attempts++
			return model.Expense{}, store.ErrExists
		},
	}, &mockPublisher{})

	_, err := svc.Create(context.Background(), CreateExpenseRequest{
		OwnerID: "user-a",
		Payload: []byte(`{"amount":"1.00","title":"Coffee","date":null}`),
	})
	requireServiceError(t, err, http.StatusInternalServerError, "Failed to create expense")
	assert.Equal(t, createAttempts, attempts)
}

func TestExpenses_Create_PublishFailureIgnored(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{createFunc: echoCreate}, &mockPublisher{err: errors.New("broker down")})

	_, err := svc.Create(context.Background(), CreateExpenseRequest{
		OwnerID: "user-a",
		Payload: []byte(`{"amount":"1.00","title":"Coffee","date":null}`),
	})
	require.NoError(t, err)
}

func TestExpenses_List(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{
		listFunc: func(ctx context.Context, r store.ListExpensesRequest) ([]model.Expense, error) {
			assert.Equal(t, "user-a", r.OwnerID)
			return []model.Expense{{Title: "one"}, {Title: "two"}}, nil
		},
	}, &mockPublisher{})

	items, err := svc.List(context.Background(), "user-a")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "one", items[0].Title)
}

func TestExpenses_Get(t *testing.T) {
	id := uuid.New()
	svc := newExpenses(&mockExpenseStore{
		getFunc: func(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error) {
			assert.Equal(t, "user-a", r.OwnerID)
			assert.Equal(t, id, r.ID)
			return model.Expense{ID: id, Title: "Coffee", Amount: money.MustParse("3.20")}, nil
		},
	}, &mockPublisher{})

	e, err := svc.Get(context.Background(), "user-a", id.String())
	require.NoError(t, err)
	assert.Equal(t, "Coffee", e.Title)
}

func TestExpenses_Get_NotFound(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{
		getFunc: func(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error) {
			return model.Expense{}, store.ErrNotFound
		},
	}, &mockPublisher{})

	_, err := svc.Get(context.Background(), "user-a", uuid.NewString())
	requireServiceError(t, err, http.StatusNotFound, "Expense not found")
}

func TestExpenses_Get_MalformedID(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{
		getFunc: func(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error) {
			t.Fatal("store must not be called")
			return model.Expense{}, nil
		},
	}, &mockPublisher{})

	_, err := svc.Get(context.Background(), "user-a", "not-a-uuid")
	requireServiceError(t, err, http.StatusNotFound, "Expense not found")
}

func TestExpenses_Get_StoreFailure(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{
		getFunc: func(ctx context.Context, r store.GetExpenseRequest) (model.Expense, error) {
			return model.Expense{}, errors.New("db down")
		},
	}, &mockPublisher{})

	_, err := svc.Get(context.Background(), "user-a", uuid.NewString())
	require.Error(t, err)

	var se *serr.ServiceError
	assert.False(t, errors.As(err, &se))
}

func TestExpenses_Delete(t *testing.T) {
	id := uuid.New()
	pub := &mockPublisher{}
	svc := newExpenses(&mockExpenseStore{
		deleteFunc: func(ctx context.Context, r store.DeleteExpenseRequest) error {
			assert.Equal(t, "user-a", r.OwnerID)
			assert.Equal(t, id, r.ID)
			return nil
		},
	}, pub)

	require.NoError(t, svc.Delete(context.Background(), "user-a", id.String()))
	assert.Equal(t, []uuid.UUID{id}, pub.deleted)
}

func TestExpenses_Delete_NotFound(t *testing.T) {
	pub := &mockPublisher{}
	svc := newExpenses(&mockExpenseStore{
		deleteFunc: func(ctx context.Context, r store.DeleteExpenseRequest) error {
			return store.ErrNotFound
		},
	}, pub)

	err := svc.Delete(context.Background(), "user-a", uuid.NewString())
	requireServiceError(t, err, http.StatusNotFound, "Expense not found")
	assert.Empty(t, pub.deleted)

	err = svc.Delete(context.Background(), "user-a", "42")
	requireServiceError(t, err, http.StatusNotFound, "Expense not found")
}

func TestExpenses_Totals(t *testing.T) {
	svc := newExpenses(&mockExpenseStore{
		totalsFunc: func(ctx context.Context, r store.GetTotalsRequest) (model.Totals, error) {
			assert.Equal(t, "user-a", r.OwnerID)
			return model.Totals{Expenses: 2, Expenditure: money.MustParse("10.50")}, nil
		},
	}, &mockPublisher{})

	tot, err := svc.Totals(context.Background(), "user-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tot.Expenses)
	assert.Equal(t, "10.50", tot.Expenditure.String())
}
