package oauth

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPEnvConfig controls the cookies used to carry handshake values
type HTTPEnvConfig struct {
	Scope  string
	Secure bool
	TTL    time.Duration
}

// HTTPEnv implements the Env interface using HTTP cookies
type HTTPEnv struct {
	cfg HTTPEnvConfig
	w   http.ResponseWriter
	r   *http.Request
}

// NewHTTPEnv creates a new HTTPEnv instance
func NewHTTPEnv(cfg HTTPEnvConfig, w http.ResponseWriter, r *http.Request) *HTTPEnv {
	if cfg.Scope == "" {
		cfg.Scope = "oauth"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &HTTPEnv{cfg: cfg, w: w, r: r}
}

func (e *HTTPEnv) Save(key, val string) error {
	http.SetCookie(e.w, e.cookie(key, val, int(e.cfg.TTL.Seconds())))
	return nil
}

func (e *HTTPEnv) Load(key string) (string, error) {
	c, err := e.r.Cookie(e.name(key))
	if err != nil {
		return "", err
	}

	return c.Value, nil
}

func (e *HTTPEnv) Delete(key string) error {
	http.SetCookie(e.w, e.cookie(key, "", -1))
	return nil
}

func (e *HTTPEnv) name(key string) string {
	return fmt.Sprintf("%s-%s", e.cfg.Scope, key)
}

func (e *HTTPEnv) cookie(key, val string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     e.name(key),
		Value:    val,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   e.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
