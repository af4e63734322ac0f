package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gamma-omg/expense-go/internal/pkg/httpx"
	"github.com/gamma-omg/expense-go/internal/pkg/middleware"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/oauth"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/service"
)

type authService interface {
	LoginURL(env oauth.Env, r service.LoginRequest) (string, error)
	Callback(ctx context.Context, env oauth.Env, w http.ResponseWriter, r service.CallbackRequest) (string, error)
	Logout(ctx context.Context, env oauth.Env, w http.ResponseWriter, r *http.Request) (string, error)
	Resolve(r *http.Request) (middleware.Caller, error)
}

type AuthAPI struct {
	srv    authService
	envCfg oauth.HTTPEnvConfig
	mux    *http.ServeMux
}

func NewAuthAPI(srv authService, envCfg oauth.HTTPEnvConfig) *AuthAPI {
	api := &AuthAPI{
		srv:    srv,
		envCfg: envCfg,
		mux:    http.NewServeMux(),
	}
	api.mount()
	return api
}

func (api *AuthAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mux.ServeHTTP(w, r)
}

func (api *AuthAPI) mount() {
	api.mux.HandleFunc("GET /login", api.handleLogin(false))
	api.mux.HandleFunc("GET /register", api.handleLogin(true))
	api.mux.HandleFunc("GET /callback", api.handleCallback)
	api.mux.HandleFunc("GET /logout", api.handleLogout)
	api.mux.Handle("GET /me", middleware.Auth(api.srv)(http.HandlerFunc(api.handleMe)))
}

func (api *AuthAPI) env(w http.ResponseWriter, r *http.Request) oauth.Env {
	return oauth.NewHTTPEnv(api.envCfg, w, r)
}

func (api *AuthAPI) handleLogin(register bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := api.srv.LoginURL(api.env(w, r), service.LoginRequest{
			Provider: r.URL.Query().Get("provider"),
			Register: register,
		})
		if err != nil {
			httpx.HandleErr(w, r, err)
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}

func (api *AuthAPI) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	url, err := api.srv.Callback(r.Context(), api.env(w, r), w, service.CallbackRequest{
		Code:  q.Get("code"),
		State: q.Get("state"),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (api *AuthAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	url, err := api.srv.Logout(r.Context(), api.env(w, r), w, r)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

type meResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func (api *AuthAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.CallerFromContext(r.Context())

	err := httpx.WriteJSON(w, http.StatusOK, meResponse{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		Picture: c.Picture,
	})
	if err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
		return
	}
}
