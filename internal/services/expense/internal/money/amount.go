// Package money holds exact two-decimal currency amounts.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

const scale = 2

var (
	ErrInvalid = errors.New("invalid amount")

	pattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// Amount is a non-negative currency value with two decimal places
type Amount struct {
	d decimal.Decimal
}

var Zero = Amount{d: decimal.Zero}

// Valid reports whether s is a plain currency string like "10", "10.5" or "10.50"
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Parse accepts only strings that pass Valid
func Parse(s string) (Amount, error) {
	if !Valid(s) {
		return Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return Amount{d: d}, nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -scale)}
}

func (a Amount) Cents() int64 {
	return a.d.Shift(scale).Round(0).IntPart()
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

func (a Amount) String() string {
	return a.d.StringFixed(scale)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*a = parsed
	return nil
}

// Value stores the amount as its fixed-point text
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan reads numeric columns. Aggregates may exceed the input pattern, so
// any decimal text is accepted here.
func (a *Amount) Scan(src any) error {
	var (
		d   decimal.Decimal
		err error
	)

	switch v := src.(type) {
	case []byte:
		d, err = decimal.NewFromString(string(v))
	case string:
		d, err = decimal.NewFromString(v)
	case int64:
		d = decimal.NewFromInt(v)
	case nil:
		d = decimal.Zero
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalid, src)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	*a = Amount{d: d}
	return nil
}
