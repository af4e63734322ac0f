package model

import (
	"time"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of expense dates
const DateLayout = "2006-01-02"

type User struct {
	ID      string
	Name    string
	Email   string
	Picture string
}

type Expense struct {
	ID        uuid.UUID
	Amount    money.Amount
	Title     string
	Date      *time.Time
	CreatedBy string
	CreatedAt time.Time
}

// FormatDate renders the expense date or nil when it is not set
func (e Expense) FormatDate() *string {
	if e.Date == nil {
		return nil
	}

	s := e.Date.Format(DateLayout)
	return &s
}

type Totals struct {
	Expenses    int64
	Expenditure money.Amount
}
