package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gamma-omg/expense-go/internal/pkg/httpx"
	"github.com/gamma-omg/expense-go/internal/pkg/middleware"
	"github.com/gamma-omg/expense-go/internal/pkg/serr"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/money"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/service"
)

const maxBodyBytes = 1 << 20

type expenseService interface {
	Create(ctx context.Context, r service.CreateExpenseRequest) (model.Expense, error)
	List(ctx context.Context, ownerID string) ([]model.Expense, error)
	Get(ctx context.Context, ownerID, id string) (model.Expense, error)
	Delete(ctx context.Context, ownerID, id string) error
	Totals(ctx context.Context, ownerID string) (model.Totals, error)
}

// ExpenseAPI serves the expense routes. It expects middleware.Auth in front
// of it and takes the owner from the request context.
type ExpenseAPI struct {
	srv expenseService
	mux *http.ServeMux
}

func NewExpenseAPI(srv expenseService) *ExpenseAPI {
	api := &ExpenseAPI{
		srv: srv,
		mux: http.NewServeMux(),
	}
	api.mount()
	return api
}

func (api *ExpenseAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mux.ServeHTTP(w, r)
}

func (api *ExpenseAPI) mount() {
	api.mux.HandleFunc("GET /totals", api.handleTotals)
	api.mux.HandleFunc("GET /{$}", api.handleList)
	api.mux.HandleFunc("POST /{$}", api.handleCreate)
	api.mux.HandleFunc("GET /{id}", api.handleGet)
	api.mux.HandleFunc("DELETE /{id}", api.handleDelete)
}

type expenseResponse struct {
	ID        string       `json:"id"`
	Amount    money.Amount `json:"amount"`
	Title     string       `json:"title"`
	Date      *string      `json:"date"`
	CreatedAt time.Time    `json:"createdAt"`
}

type expenseListItem struct {
	ID     string       `json:"id"`
	Amount money.Amount `json:"amount"`
	Title  string       `json:"title"`
	Date   *string      `json:"date"`
}

type totalsResponse struct {
	Expenses    int64        `json:"expenses"`
	Expenditure money.Amount `json:"expenditure"`
}

func toExpenseResponse(e model.Expense) expenseResponse {
	return expenseResponse{
		ID:        e.ID.String(),
		Amount:    e.Amount,
		Title:     e.Title,
		Date:      e.FormatDate(),
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (api *ExpenseAPI) handleTotals(w http.ResponseWriter, r *http.Request) {
	t, err := api.srv.Totals(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, totalsResponse{
		Expenses:    t.Expenses,
		Expenditure: t.Expenditure,
	})
	if err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
		return
	}
}

func (api *ExpenseAPI) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := api.srv.List(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	resp := make([]expenseListItem, 0, len(items))
	for _, e := range items {
		resp = append(resp, expenseListItem{
			ID:     e.ID.String(),
			Amount: e.Amount,
			Title:  e.Title,
			Date:   e.FormatDate(),
		})
	}

	if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
		return
	}
}

func (api *ExpenseAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusRequestEntityTooLarge, "Request body too large"))
			return
		}

		httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusBadRequest, "Invalid request body"))
		return
	}

	e, err := api.srv.Create(r.Context(), service.CreateExpenseRequest{
		OwnerID: middleware.UserIDFromContext(r.Context()),
		Payload: body,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusCreated, toExpenseResponse(e)); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
		return
	}
}

func (api *ExpenseAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := api.srv.Get(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, toExpenseResponse(e)); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
		return
	}
}

func (api *ExpenseAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := api.srv.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
