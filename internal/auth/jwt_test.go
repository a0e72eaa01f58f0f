package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager() *JWTManager {
	return NewJWTManager("test-secret-key", 24*time.Hour, 8*time.Hour)
}

func TestGenerateAndValidateAccountToken(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmAccount, "alice", "a@x.com", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := mgr.ValidateTokenForRealm(token, RealmAccount)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, RealmAccount, claims.Realm)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateAndValidateOperatorToken(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmOperator, "ops", "", RoleAdmin)
	require.NoError(t, err)

	claims, err := mgr.ValidateTokenForRealm(token, RealmOperator)
	require.NoError(t, err)
	assert.Equal(t, RealmOperator, claims.Realm)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestUnknownRealmRejected(t *testing.T) {
	_, err := newTestJWTManager().GenerateToken(Realm("player"), "alice", "", "")
	assert.Error(t, err)
}

func TestRealmMismatchRejected(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmAccount, "alice", "", "")
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmOperator)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected realm operator")
}

func TestInvalidSecretRejected(t *testing.T) {
	mgr1 := NewJWTManager("secret-1", time.Hour, time.Hour)
	mgr2 := NewJWTManager("secret-2", time.Hour, time.Hour)

	token, err := mgr1.GenerateToken(RealmAccount, "alice", "", "")
	require.NoError(t, err)

	_, err = mgr2.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewJWTManager("secret", time.Millisecond, time.Millisecond)

	token, err := mgr.GenerateToken(RealmAccount, "alice", "", "")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleViewer))
	assert.True(t, ValidRole(RoleAdmin))
	assert.False(t, ValidRole("superadmin"))
}

// --- Middleware Tests ---

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(SubjectFromContext(r.Context())))
}

func TestAuthenticateAccount(t *testing.T) {
	mgr := newTestJWTManager()
	accountToken, err := mgr.GenerateToken(RealmAccount, "alice", "", "")
	require.NoError(t, err)
	operatorToken, err := mgr.GenerateToken(RealmOperator, "ops", "", RoleViewer)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + accountToken, http.StatusOK, "alice"},
		{"missing header", "", http.StatusUnauthorized, "missing Authorization header"},
		{"wrong scheme", "Basic " + accountToken, http.StatusUnauthorized, "invalid Authorization format"},
		{"wrong realm", "Bearer " + operatorToken, http.StatusUnauthorized, "expected realm account"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "parse token"},
	}

	h := AuthenticateAccount(mgr)(http.HandlerFunc(okHandler))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRequireRole(t *testing.T) {
	mgr := newTestJWTManager()
	h := AuthenticateOperator(mgr)(RequireRole(WriteRoles()...)(http.HandlerFunc(okHandler)))

	for role, want := range map[string]int{RoleAdmin: http.StatusOK, RoleViewer: http.StatusForbidden} {
		token, err := mgr.GenerateToken(RealmOperator, "ops", "", role)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	w := httptest.NewRecorder()
	RequireRole(RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
