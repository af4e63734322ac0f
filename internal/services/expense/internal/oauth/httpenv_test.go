package oauth

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEnv(t *testing.T) {
	cfg := HTTPEnvConfig{Scope: "test"}

	mux := http.NewServeMux()
	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		env := NewHTTPEnv(cfg, w, r)
		_ = env.Save("test_key", "test_val")
	})

	var loaded string
	var loadErr error
	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		env := NewHTTPEnv(cfg, w, r)
		loaded, loadErr = env.Load("test_key")
	})

	mux.HandleFunc("/delete", func(w http.ResponseWriter, r *http.Request) {
		env := NewHTTPEnv(cfg, w, r)
		_ = env.Delete("test_key")
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{Jar: jar}

	_, err = client.Get(fmt.Sprintf("%s/save", srv.URL))
	require.NoError(t, err)

	_, err = client.Get(fmt.Sprintf("%s/load", srv.URL))
	require.NoError(t, err)
	require.NoError(t, loadErr)
	assert.Equal(t, "test_val", loaded)

	_, err = client.Get(fmt.Sprintf("%s/delete", srv.URL))
	require.NoError(t, err)

	_, err = client.Get(fmt.Sprintf("%s/load", srv.URL))
	require.NoError(t, err)
	assert.Error(t, loadErr)
}

func TestHTTPEnv_CookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	env := NewHTTPEnv(HTTPEnvConfig{Secure: true}, rec, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, env.Save("state", "abc"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, "oauth-state", c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestHTTPEnv_Load_NotFound(t *testing.T) {
	env := NewHTTPEnv(HTTPEnvConfig{}, httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	_, err := env.Load("non_existent_key")
	require.Error(t, err)
}
