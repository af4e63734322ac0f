package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements the Store interface on a local SQLite file. Amounts
// are kept as integer cents so sums stay exact.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens (creating if needed) the database file at path
func NewSQLiteDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) CreateExpense(ctx context.Context, r CreateExpenseRequest) (model.Expense, error) {
	e := model.Expense{
		ID:        r.ID,
		Amount:    r.Amount,
		Title:     r.Title,
		Date:      r.Date,
		CreatedBy: r.OwnerID,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, amount_cents, title, date, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID.String(),
		r.Amount.Cents(),
		r.Title,
		dateValue(r.Date),
		r.OwnerID,
		e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isSQLiteErr(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
			return model.Expense{}, ErrExists
		}

		return model.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	return e, nil
}

func (s *SQLiteStore) ListExpenses(ctx context.Context, r ListExpensesRequest) ([]model.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount_cents, title, date, created_by, created_at
		 FROM expenses
		 WHERE created_by=?
		 ORDER BY seq`, r.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]model.Expense, 0)
	for rows.Next() {
		e, err := scanSQLiteExpense(rows)
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

func (s *SQLiteStore) GetExpense(ctx context.Context, r GetExpenseRequest) (model.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, title, date, created_by, created_at
		 FROM expenses
		 WHERE created_by=? AND id=?`, r.OwnerID, r.ID.String())

	e, err := scanSQLiteExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Expense{}, ErrNotFound
		}

		return model.Expense{}, err
	}

	return e, nil
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, r DeleteExpenseRequest) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE created_by=? AND id=?", r.OwnerID, r.ID.String())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	return expectAffected(res)
}

func (s *SQLiteStore) GetTotals(ctx context.Context, r GetTotalsRequest) (model.Totals, error) {
	var (
		count int64
		cents int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount_cents), 0)
		 FROM expenses
		 WHERE created_by=?`, r.OwnerID).Scan(&count, &cents)
	if err != nil {
		return model.Totals{}, fmt.Errorf("sum expenses: %w", err)
	}

	return model.Totals{
		Expenses:    count,
		Expenditure: money.FromCents(cents),
	}, nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, r UpsertUserRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, picture)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET name=excluded.name, email=excluded.email, picture=excluded.picture,
		     updated_at=strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		r.ID,
		r.Name,
		r.Email,
		r.Picture)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteExpense(row scanner) (model.Expense, error) {
	var (
		e         model.Expense
		id        string
		cents     int64
		date      sql.NullString
		createdAt string
	)

	err := row.Scan(&id, &cents, &e.Title, &date, &e.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan expense: %w", err)
	}

	if err := e.ID.UnmarshalText([]byte(id)); err != nil {
		return e, fmt.Errorf("parse expense id: %w", err)
	}

	e.Amount = money.FromCents(cents)

	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return e, fmt.Errorf("parse created_at: %w", err)
	}

	if date.Valid {
		d, err := time.Parse(model.DateLayout, date.String)
		if err != nil {
			return e, fmt.Errorf("parse date: %w", err)
		}
		e.Date = &d
	}

	return e, nil
}

func isSQLiteErr(err error, codes ...int) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}

	for _, c := range codes {
		if sqErr.Code() == c {
			return true
		}
	}
	return false
}
