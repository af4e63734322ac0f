package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// storeSuite runs the same behaviour checks against every backend
type storeSuite struct {
	suite.Suite
	open func(t *testing.T) (Store, *sql.DB)

	st Store
	db *sql.DB
}

func (s *storeSuite) SetupTest() {
	s.st, s.db = s.open(s.T())
}

func (s *storeSuite) create(owner, amount, title string, date *time.Time) uuid.UUID {
	id := uuid.New()
	_, err := s.st.CreateExpense(s.T().Context(), CreateExpenseRequest{
		ID:      id,
		OwnerID: owner,
		Amount:  money.MustParse(amount),
		Title:   title,
		Date:    date,
	})
	s.Require().NoError(err)
	return id
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func (s *storeSuite) TestCreateAndGet() {
	id := s.create("alice", "12.3", "Groceries", day(2025, 1, 31))

	e, err := s.st.GetExpense(s.T().Context(), GetExpenseRequest{OwnerID: "alice", ID: id})
	s.Require().NoError(err)

	s.Equal(id, e.ID)
	s.Equal("12.30", e.Amount.String())
	s.Equal("Groceries", e.Title)
	s.Require().NotNil(e.Date)
	s.Equal("2025-01-31", e.Date.Format("2006-01-02"))
	s.Equal("alice", e.CreatedBy)
	s.WithinDuration(time.Now(), e.CreatedAt, time.Minute)
}

func (s *storeSuite) TestCreate_NullDate() {
	id := s.create("alice", "1", "Coffee", nil)

	e, err := s.st.GetExpense(s.T().Context(), GetExpenseRequest{OwnerID: "alice", ID: id})
	s.Require().NoError(err)
	s.Nil(e.Date)
}

func (s *storeSuite) TestCreate_DuplicateID() {
	req := CreateExpenseRequest{
		ID:      uuid.New(),
		OwnerID: "alice",
		Amount:  money.MustParse("1"),
		Title:   "Coffee",
	}

	_, err := s.st.CreateExpense(s.T().Context(), req)
	s.Require().NoError(err)

	_, err = s.st.CreateExpense(s.T().Context(), req)
	s.ErrorIs(err, ErrExists)
}

func (s *storeSuite) TestGet_NotFound() {
	id := s.create("alice", "5", "Lunch", nil)

	_, err := s.st.GetExpense(s.T().Context(), GetExpenseRequest{OwnerID: "bob", ID: id})
	s.ErrorIs(err, ErrNotFound)

	_, err = s.st.GetExpense(s.T().Context(), GetExpenseRequest{OwnerID: "alice", ID: uuid.New()})
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeSuite) TestList_OwnerScopedInCreationOrder() {
	first := s.create("alice", "1", "First", nil)
	s.create("bob", "100", "Bob's", nil)
	second := s.create("alice", "2", "Second", day(2024, 6, 1))
	third := s.create("alice", "3", "Third", nil)

	list, err := s.st.ListExpenses(s.T().Context(), ListExpensesRequest{OwnerID: "alice"})
	s.Require().NoError(err)
	s.Require().Len(list, 3)

	s.Equal([]uuid.UUID{first, second, third}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
	for _, e := range list {
		s.Equal("alice", e.CreatedBy)
	}
}

func (s *storeSuite) TestList_Empty() {
	list, err := s.st.ListExpenses(s.T().Context(), ListExpensesRequest{OwnerID: "nobody"})
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}

func (s *storeSuite) TestDelete() {
	id := s.create("alice", "9.99", "Cinema", nil)
	ctx := s.T().Context()

	err := s.st.DeleteExpense(ctx, DeleteExpenseRequest{OwnerID: "bob", ID: id})
	s.ErrorIs(err, ErrNotFound)

	_, err = s.st.GetExpense(ctx, GetExpenseRequest{OwnerID: "alice", ID: id})
	s.Require().NoError(err)

	s.Require().NoError(s.st.DeleteExpense(ctx, DeleteExpenseRequest{OwnerID: "alice", ID: id}))

	err = s.st.DeleteExpense(ctx, DeleteExpenseRequest{OwnerID: "alice", ID: id})
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeSuite) TestTotals() {
	ctx := s.T().Context()

	t, err := s.st.GetTotals(ctx, GetTotalsRequest{OwnerID: "alice"})
	s.Require().NoError(err)
	s.Equal(int64(0), t.Expenses)
	s.Equal("0.00", t.Expenditure.String())

	s.create("alice", "10.00", "Books", nil)
	s.create("alice", "0.50", "Candy", nil)
	s.create("bob", "99", "Other", nil)

	t, err = s.st.GetTotals(ctx, GetTotalsRequest{OwnerID: "alice"})
	s.Require().NoError(err)
	s.Equal(int64(2), t.Expenses)
	s.Equal("10.50", t.Expenditure.String())
}

func (s *storeSuite) TestTotals_Exact() {
	for range 10 {
		s.create("alice", "0.10", "Dime", nil)
	}
	s.create("alice", "9999999999", "Big", nil)

	t, err := s.st.GetTotals(s.T().Context(), GetTotalsRequest{OwnerID: "alice"})
	s.Require().NoError(err)
	s.Equal(int64(11), t.Expenses)
	s.Equal("10000000000.00", t.Expenditure.String())
}

func (s *storeSuite) TestUpsertUser() {
	ctx := s.T().Context()

	s.Require().NoError(s.st.UpsertUser(ctx, UpsertUserRequest{ID: "user-1", Name: "Old", Email: "a@example.com"}))
	s.Require().NoError(s.st.UpsertUser(ctx, UpsertUserRequest{ID: "user-1", Name: "New", Email: "b@example.com", Picture: "pic"}))

	var (
		count int
		name  string
		email string
	)
	s.Require().NoError(s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	s.Require().NoError(s.db.QueryRow("SELECT name, email FROM users WHERE id='user-1'").Scan(&name, &email))

	s.Equal(1, count)
	s.Equal("New", name)
	s.Equal("b@example.com", email)
}

func (s *storeSuite) TestPing() {
	s.NoError(s.st.Ping(s.T().Context()))
}
