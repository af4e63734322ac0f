package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/lib/pq"
)

const (
	errUniqueViolation pq.ErrorCode = "23505"
)

// PostgresConfig holds the configuration for connecting to a Postgres database
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

// PostgresStore implements the Store interface using a Postgres database
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresDB creates a new Postgres database connection
func NewPostgresDB(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateExpense(ctx context.Context, r CreateExpenseRequest) (model.Expense, error) {
	e := model.Expense{
		ID:        r.ID,
		Amount:    r.Amount,
		Title:     r.Title,
		Date:      r.Date,
		CreatedBy: r.OwnerID,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO expenses (id, amount, title, date, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		r.ID,
		r.Amount,
		r.Title,
		dateValue(r.Date),
		r.OwnerID).Scan(&e.CreatedAt)
	if err != nil {
		if isPqErr(err, errUniqueViolation) {
			return model.Expense{}, ErrExists
		}

		return model.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	return e, nil
}

func (s *PostgresStore) ListExpenses(ctx context.Context, r ListExpensesRequest) ([]model.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, title, date, created_by, created_at
		 FROM expenses
		 WHERE created_by=$1
		 ORDER BY seq`, r.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]model.Expense, 0)
	for rows.Next() {
		e, err := scanPostgresExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, nil
}

func (s *PostgresStore) GetExpense(ctx context.Context, r GetExpenseRequest) (model.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount, title, date, created_by, created_at
		 FROM expenses
		 WHERE created_by=$1 AND id=$2`, r.OwnerID, r.ID)

	e, err := scanPostgresExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Expense{}, ErrNotFound
		}

		return model.Expense{}, err
	}

	return e, nil
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, r DeleteExpenseRequest) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE created_by=$1 AND id=$2", r.OwnerID, r.ID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	return expectAffected(res)
}

func (s *PostgresStore) GetTotals(ctx context.Context, r GetTotalsRequest) (model.Totals, error) {
	var t model.Totals
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0)::text
		 FROM expenses
		 WHERE created_by=$1`, r.OwnerID).Scan(&t.Expenses, &t.Expenditure)
	if err != nil {
		return model.Totals{}, fmt.Errorf("sum expenses: %w", err)
	}

	return t, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, r UpsertUserRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, picture)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET name=EXCLUDED.name, email=EXCLUDED.email, picture=EXCLUDED.picture, updated_at=now()`,
		r.ID,
		r.Name,
		r.Email,
		r.Picture)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgresExpense(row scanner) (model.Expense, error) {
	var (
		e    model.Expense
		date sql.NullTime
	)

	err := row.Scan(&e.ID, &e.Amount, &e.Title, &date, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan expense: %w", err)
	}

	if date.Valid {
		d := time.Date(date.Time.Year(), date.Time.Month(), date.Time.Day(), 0, 0, 0, 0, time.UTC)
		e.Date = &d
	}

	return e, nil
}

// dateValue formats a calendar date for a DATE or TEXT column
func dateValue(d *time.Time) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Format(model.DateLayout), Valid: true}
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func isPqErr(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == code
}
