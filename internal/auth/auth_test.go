package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtaosu/meme-memos/internal/config"
	"github.com/0xtaosu/meme-memos/internal/paas"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssuer_SignVerify(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	tok, exp, err := iss.Sign("ops")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)

	_, err = NewIssuer("another-secret-of-some-length", time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestIssuer_Expired(t *testing.T) {
	iss := NewIssuer(testSecret, time.Minute)
	past := time.Now().Add(-2 * time.Hour)
	iss.now = func() time.Time { return past }
	tok, _, err := iss.Sign("ops")
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Verify(tok)
	assert.Error(t, err)
}

func TestIssuer_EmptySecret(t *testing.T) {
	_, _, err := NewIssuer("", time.Hour).Sign("ops")
	assert.Error(t, err)
}

func TestOperator_Check(t *testing.T) {
	plain := NewOperator(config.AuthConfig{Username: "ops", Password: "hunter2"})
	assert.NoError(t, plain.Check("ops", "hunter2"))
	assert.ErrorIs(t, plain.Check("ops", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, plain.Check("other", "hunter2"), ErrInvalidCredentials)

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	hashed := NewOperator(config.AuthConfig{Username: "ops", Password: "ignored", PasswordHash: hash})
	assert.NoError(t, hashed.Check("ops", "s3cret"))
	assert.ErrorIs(t, hashed.Check("ops", "ignored"), ErrInvalidCredentials)

	empty := NewOperator(config.AuthConfig{Username: "ops"})
	assert.ErrorIs(t, empty.Check("ops", ""), ErrInvalidCredentials)
}

func newRouter(disabled bool) (*gin.Engine, *Issuer) {
	gin.SetMode(gin.TestMode)
	iss := NewIssuer(testSecret, time.Hour)
	r := gin.New()
	requireAuth := Middleware(iss, disabled)
	h := &Handler{
		Issuer:   iss,
		Operator: NewOperator(config.AuthConfig{Username: "ops", Password: "hunter2"}),
		Disabled: disabled,
	}
	h.Register(r, requireAuth)
	r.POST("/api/protected", requireAuth, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(paas.OperatorKey))
	})
	return r, iss
}

func TestMiddleware(t *testing.T) {
	r, iss := newRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, _, err := iss.Sign("ops")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())
}

func TestMiddleware_Disabled(t *testing.T) {
	r, _ := newRouter(true)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/protected", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, anonymousOperator, w.Body.String())
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func TestLoginAndStatus(t *testing.T) {
	r, _ := newRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"ops","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"ops","password":"hunter2"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.Token)
	require.NotEmpty(t, tok.ExpiresAt)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var st statusResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Authenticated)
	assert.Equal(t, "ops", st.Username)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	st = statusResponse{}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.Authenticated)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
