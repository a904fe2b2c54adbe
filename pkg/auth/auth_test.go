package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("test-key")
	token, err := s.Issue(Principal{UserID: "u1", UID: "100001", Username: "dana", Email: "dana@example.com"})
	require.NoError(t, err)

	p, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "dana", p.Username)
}

func TestSessionRejectsTamperedToken(t *testing.T) {
	s := NewSessions("test-key")
	token, err := s.Issue(Principal{UserID: "u1"})
	require.NoError(t, err)

	_, err = s.Verify(token + "x")
	assert.Error(t, err)

	_, err = s.Verify("not-a-token")
	assert.Error(t, err)
}

func TestSessionRejectsWrongKey(t *testing.T) {
	token, err := NewSessions("key-a").Issue(Principal{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewSessions("key-b").Verify(token)
	assert.Error(t, err)
}

func TestSessionExpires(t *testing.T) {
	s := NewSessions("test-key")
	s.ttl = time.Millisecond
	token, err := s.Issue(Principal{UserID: "u1"})
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond) // IssuedAt has second precision
	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}

func TestMiddlewareAttachesPrincipal(t *testing.T) {
	s := NewSessions("test-key")
	token, err := s.Issue(Principal{UserID: "u1", Username: "dana"})
	require.NoError(t, err)

	var got Principal
	var ok bool
	handler := s.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, "dana", got.Username)
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	called := false
	h := RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/v1/post", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRateLimits(t *testing.T) {
	s := NewSessions("test-key")
	handler := s.Middleware(MiddlewareConfig{RPS: 1, Burst: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/post", nil)
	req.RemoteAddr = "10.0.0.9:1234"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
