// Package auth authenticates sellers submitting listings.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Method identifies how a seller was authenticated.
type Method string

// Supported authentication methods.
const (
	MethodNone   Method = "none"
	MethodAPIKey Method = "apikey"
	MethodBasic  Method = "basic"
)

// Seller is the authenticated identity behind a mutating request.
type Seller struct {
	Method Method
	Name   string
}

// Authenticator validates a request and returns the seller behind it.
type Authenticator interface {
	Authenticate(r *http.Request) (*Seller, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownMode        = errors.New("unknown auth mode")
)

// New builds the authenticator for mode. It returns nil for "none" and "".
func New(mode, apiKeys, basicUsers string) (Authenticator, error) {
	switch Method(mode) {
	case MethodNone, "":
		return nil, nil
	case MethodAPIKey:
		return NewAPIKeyAuthenticator(apiKeys)
	case MethodBasic:
		return NewBasicAuthenticator(basicUsers)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

type contextKey string

const sellerKey contextKey = "seller"

// FromContext retrieves the authenticated seller from the context.
func FromContext(ctx context.Context) (*Seller, bool) {
	seller, ok := ctx.Value(sellerKey).(*Seller)
	return seller, ok
}

// WithSeller stores the seller in the context.
func WithSeller(ctx context.Context, seller *Seller) context.Context {
	return context.WithValue(ctx, sellerKey, seller)
}
