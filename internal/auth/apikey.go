package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the HTTP header carrying a seller API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator matches the X-API-Key header against configured keys.
type APIKeyAuthenticator struct {
	keys map[string]string // key -> seller name
}

// NewAPIKeyAuthenticator parses "key1:seller1,key2:seller2".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	keys, err := parsePairs("apikey", keysConfig)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate compares the presented key to every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Seller, error) {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	var seller *Seller
	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			seller = &Seller{Method: MethodAPIKey, Name: name}
		}
	}

	if seller == nil {
		return nil, ErrInvalidAPIKey
	}
	return seller, nil
}

// Method returns MethodAPIKey.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
