package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type memoryUserStore struct {
	users  map[string]*User
	tokens map[string]time.Time
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		users:  make(map[string]*User),
		tokens: make(map[string]time.Time),
	}
}

func (m *memoryUserStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memoryUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return m.users[email], nil
}

func (m *memoryUserStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	m.users[user.Email] = user
	return nil
}

func (m *memoryUserStore) CountUsers(ctx context.Context) (int, error) {
	return len(m.users), nil
}

func (m *memoryUserStore) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.tokens[userID+":"+token] = expiresAt
	return nil
}

func (m *memoryUserStore) ValidateRefreshToken(ctx context.Context, userID, token string) (bool, error) {
	expiry, ok := m.tokens[userID+":"+token]
	return ok && expiry.After(time.Now()), nil
}

func (m *memoryUserStore) RevokeRefreshToken(ctx context.Context, userID, token string) error {
	delete(m.tokens, userID+":"+token)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryUserStore) {
	t.Helper()
	store := newMemoryUserStore()
	svc := NewService(Config{JWTSecret: "test-secret"}, store)

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	store.CreateUser(context.Background(), &User{
		Email:    "analyst@example.com",
		Password: hash,
		Role:     RoleAnalyst,
	})
	return svc, store
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "analyst@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("expected both tokens to be issued")
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %q", pair.TokenType)
	}

	claims, err := svc.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Email != "analyst@example.com" || claims.Role != RoleAnalyst {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "analyst@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRefreshTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "analyst@example.com", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	refreshed, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("expected new access token")
	}

	// The used refresh token is revoked.
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected revoked refresh token to fail, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(Config{
		JWTSecret:         "test-secret",
		AccessTokenExpiry: -time.Minute,
	}, store)

	hash, _ := HashPassword("pw")
	store.CreateUser(context.Background(), &User{Email: "a@b.c", Password: hash, Role: RoleViewer})

	pair, err := svc.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := newTestService(t)

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		if !ok {
			t.Error("expected claims in context")
		}
		if claims.Role != RoleAnalyst {
			t.Errorf("unexpected role %q", claims.Role)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		header   string
		expected int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}

	pair, err := svc.Login(context.Background(), "analyst@example.com", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	svc, _ := newTestService(t)

	protected := svc.Middleware(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	pair, err := svc.Login(context.Background(), "analyst@example.com", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for analyst on admin route, got %d", rec.Code)
	}
}

func TestEnsureAdmin(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(Config{JWTSecret: "s"}, store)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "admin@example.com", "pw"); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	if n, _ := store.CountUsers(ctx); n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}

	// Idempotent once users exist.
	if err := svc.EnsureAdmin(ctx, "other@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountUsers(ctx); n != 1 {
		t.Errorf("expected EnsureAdmin to be a no-op, got %d users", n)
	}
}
