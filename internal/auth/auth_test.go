package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/listing-api/internal/auth"
)

func generateBcryptHash(t *testing.T, password string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}

	return string(hash)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mode       string
		apiKeys    string
		basicUsers string
		wantNil    bool
		wantMethod auth.Method
		wantErr    bool
	}{
		{name: "none", mode: "none", wantNil: true},
		{name: "empty mode", mode: "", wantNil: true},
		{name: "apikey", mode: "apikey", apiKeys: "k1:seller", wantMethod: auth.MethodAPIKey},
		{name: "basic", mode: "basic", basicUsers: "alice:$2a$10$hash", wantMethod: auth.MethodBasic},
		{name: "apikey without keys", mode: "apikey", wantErr: true},
		{name: "unknown mode", mode: "oidc", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Act
			a, err := auth.New(tt.mode, tt.apiKeys, tt.basicUsers)

			// Assert
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if tt.wantNil {
				if a != nil {
					t.Errorf("New() = %v, want nil", a)
				}
				return
			}
			if a.Method() != tt.wantMethod {
				t.Errorf("Method() = %s, want %s", a.Method(), tt.wantMethod)
			}
		})
	}
}

func TestNew_UnknownModeError(t *testing.T) {
	_, err := auth.New("mtls", "", "")

	if !errors.Is(err, auth.ErrUnknownMode) {
		t.Errorf("New() error = %v, want %v", err, auth.ErrUnknownMode)
	}
}

func TestSellerContext(t *testing.T) {
	t.Parallel()

	// Arrange
	seller := &auth.Seller{Method: auth.MethodAPIKey, Name: "shop-1"}

	// Act
	ctx := auth.WithSeller(context.Background(), seller)
	got, ok := auth.FromContext(ctx)

	// Assert
	if !ok || got != seller {
		t.Errorf("FromContext() = %v, %v; want %v, true", got, ok, seller)
	}

	if _, ok := auth.FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context should report false")
	}
}

func TestAPIKeyAuthenticator(t *testing.T) {
	t.Parallel()

	a, err := auth.NewAPIKeyAuthenticator(" key-1:shop-1 , key-2:shop-2 ,")
	if err != nil {
		t.Fatalf("NewAPIKeyAuthenticator() error = %v", err)
	}

	tests := []struct {
		name     string
		key      string
		wantName string
		wantErr  error
	}{
		{name: "first key", key: "key-1", wantName: "shop-1"},
		{name: "second key", key: "key-2", wantName: "shop-2"},
		{name: "missing header", key: "", wantErr: auth.ErrUnauthenticated},
		{name: "wrong key", key: "key-3", wantErr: auth.ErrInvalidAPIKey},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			req := httptest.NewRequest(http.MethodPost, "/items", nil)
			if tt.key != "" {
				req.Header.Set(auth.APIKeyHeader, tt.key)
			}

			// Act
			seller, err := a.Authenticate(req)

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if seller.Name != tt.wantName || seller.Method != auth.MethodAPIKey {
				t.Errorf("Authenticate() = %+v, want name %s", seller, tt.wantName)
			}
		})
	}
}

func TestNewAPIKeyAuthenticator_InvalidConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []string{"", "   ", "nocolon", ":name", "key:", ","} {
		if _, err := auth.NewAPIKeyAuthenticator(cfg); err == nil {
			t.Errorf("NewAPIKeyAuthenticator(%q) expected error", cfg)
		}
	}
}

func TestBasicAuthenticator(t *testing.T) {
	t.Parallel()

	hash := generateBcryptHash(t, "s3cret")
	a, err := auth.NewBasicAuthenticator("alice:" + hash)
	if err != nil {
		t.Fatalf("NewBasicAuthenticator() error = %v", err)
	}

	tests := []struct {
		name     string
		user     string
		password string
		noAuth   bool
		wantErr  error
	}{
		{name: "valid credentials", user: "alice", password: "s3cret"},
		{name: "wrong password", user: "alice", password: "nope", wantErr: auth.ErrInvalidCredentials},
		{name: "unknown user", user: "bob", password: "s3cret", wantErr: auth.ErrInvalidCredentials},
		{name: "no credentials", noAuth: true, wantErr: auth.ErrUnauthenticated},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			req := httptest.NewRequest(http.MethodPost, "/items", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.user, tt.password)
			}

			// Act
			seller, err := a.Authenticate(req)

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if seller.Name != "alice" || seller.Method != auth.MethodBasic {
				t.Errorf("Authenticate() = %+v", seller)
			}
		})
	}
}
