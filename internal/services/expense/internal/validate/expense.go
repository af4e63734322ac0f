// Package validate checks inbound expense payloads and reports every failing field.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/gamma-omg/expense-go/internal/pkg/serr"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"github.com/go-playground/validator/v10"
)

var ErrMalformed = errors.New("request body must be a JSON object")

// Error lists every rejected field of a payload
type Error struct {
	Fields []serr.FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Expense is a validated, normalized create payload
type Expense struct {
	Amount money.Amount
	Title  string
	Date   *time.Time
}

type expenseFields struct {
	Amount string  `json:"amount" validate:"minunits=1,maxunits=10,currency"`
	Title  string  `json:"title" validate:"minunits=3,maxunits=50"`
	Date   *string `json:"date" validate:"omitnil,isodate,notfuture"`
}

var fieldOrder = []string{"amount", "title", "date"}

var messages = map[string]string{
	"amount.required": "Amount is required",
	"amount.type":     "Expected string, received %s",
	"amount.minunits": "Amount must be at least 1 character",
	"amount.maxunits": "Amount must be at most 10 characters",
	"amount.currency": "Amount must be a valid currency",
	"title.required":  "Title is required",
	"title.type":      "Expected string, received %s",
	"title.minunits":  "Title must be at least 3 characters",
	"title.maxunits":  "Title must be at most 50 characters",
	"date.required":   "Date is required",
	"date.type":       "Expected string, received %s",
	"date.isodate":    "Date must be in YYYY-MM-DD format",
	"date.notfuture":  "Date cannot be in the future",
}

type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

type Option func(*Validator)

// WithClock overrides the time source used for the future-date check
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})

	mustRegister(v.v, "minunits", func(fl validator.FieldLevel) bool {
		return textLen(fl.Field().String()) >= paramInt(fl)
	})
	mustRegister(v.v, "maxunits", func(fl validator.FieldLevel) bool {
		return textLen(fl.Field().String()) <= paramInt(fl)
	})
	mustRegister(v.v, "currency", func(fl validator.FieldLevel) bool {
		return money.Valid(fl.Field().String())
	})
	mustRegister(v.v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v.v, "notfuture", func(fl validator.FieldLevel) bool {
		t, err := ParseDate(fl.Field().String())
		return err == nil && !t.After(v.now())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

// textLen counts UTF-16 code units, so characters outside the BMP count twice
func textLen(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func paramInt(fl validator.FieldLevel) int {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("bad %s param %q", fl.GetTag(), fl.Param()))
	}
	return n
}

// Expense validates a raw create payload. Unknown keys (including any
// client supplied owner) are ignored.
func (v *Validator) Expense(body []byte) (Expense, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return Expense{}, ErrMalformed
	}

	failed := make(map[string]string)
	var in expenseFields

	in.Amount = stringField(raw, "amount", failed)
	in.Title = stringField(raw, "title", failed)
	in.Date = nullableStringField(raw, "date", failed)

	if err := v.v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Expense{}, fmt.Errorf("validate expense: %w", err)
		}

		for _, fe := range verrs {
			if _, seen := failed[fe.Field()]; seen {
				continue
			}
			failed[fe.Field()] = message(fe.Field(), fe.Tag())
		}
	}

	if len(failed) > 0 {
		verr := &Error{}
		for _, f := range fieldOrder {
			if msg, ok := failed[f]; ok {
				verr.Fields = append(verr.Fields, serr.FieldError{Field: f, Message: msg})
			}
		}
		return Expense{}, verr
	}

	out := Expense{
		Amount: money.MustParse(in.Amount),
		Title:  in.Title,
	}
	if in.Date != nil {
		d, _ := ParseDate(*in.Date)
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		out.Date = &day
	}

	return out, nil
}

// stringField reads a required string key. Failures are recorded in failed
// and leave a value that passes the struct rules so they are not reported twice.
func stringField(raw map[string]json.RawMessage, key string, failed map[string]string) string {
	msg, ok := raw[key]
	if !ok {
		failed[key] = message(key, "required")
		return ""
	}

	var s string
	if err := json.Unmarshal(msg, &s); err != nil || isNull(msg) {
		failed[key] = fmt.Sprintf(message(key, "type"), jsonKind(msg))
		return ""
	}

	return s
}

func nullableStringField(raw map[string]json.RawMessage, key string, failed map[string]string) *string {
	msg, ok := raw[key]
	if !ok {
		failed[key] = message(key, "required")
		return nil
	}

	if isNull(msg) {
		return nil
	}

	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		failed[key] = fmt.Sprintf(message(key, "type"), jsonKind(msg))
		return nil
	}

	return &s
}

func message(field, tag string) string {
	if msg, ok := messages[field+"."+tag]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", field)
}

func isNull(msg json.RawMessage) bool {
	return strings.TrimSpace(string(msg)) == "null"
}

func jsonKind(msg json.RawMessage) string {
	s := strings.TrimSpace(string(msg))
	if s == "" {
		return "undefined"
	}

	switch s[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// ParseDate accepts an RFC 3339 timestamp or a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}

	return t, nil
}
