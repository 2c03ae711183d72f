package microservice

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UnauthorizedMessage is returned for requests without a valid key
const UnauthorizedMessage = "Invalid or missing API Key"

// ErrNoCredentials is returned when the API would start without any key
var ErrNoCredentials = errors.New("no API keys or JWT secret configured")

// Authenticator accepts a request when the api-key query parameter or the
// Authorization header holds a configured key, or when the header carries a
// bearer token signed with the configured secret.
type Authenticator struct {
	keys     map[string]bool
	secret   []byte
	insecure bool
}

// NewAuthenticator creates an authenticator. With neither keys nor secret
// every request is rejected.
func NewAuthenticator(keys []string, jwtSecret string) *Authenticator {
	a := &Authenticator{keys: make(map[string]bool)}
	for _, k := range keys {
		if k != "" {
			a.keys[k] = true
		}
	}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

// NewInsecureAuthenticator accepts every request. Local development only.
func NewInsecureAuthenticator() *Authenticator {
	return &Authenticator{keys: make(map[string]bool), insecure: true}
}

// ConfiguredAuthenticator is the authenticator for the served API. It refuses
// to build an open API unless insecure is set explicitly.
func ConfiguredAuthenticator(keys []string, jwtSecret string, insecure bool) (*Authenticator, error) {
	a := NewAuthenticator(keys, jwtSecret)
	if a.Enabled() {
		return a, nil
	}
	if insecure {
		return NewInsecureAuthenticator(), nil
	}
	return nil, ErrNoCredentials
}

// Enabled reports whether any credential is configured
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0 || a.secret != nil
}

// Allow checks the request credentials
func (a *Authenticator) Allow(r *http.Request) bool {
	if a.insecure {
		return true
	}
	if !a.Enabled() {
		return false
	}
	if key := r.URL.Query().Get("api-key"); key != "" && a.keys[key] {
		return true
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return false
	}
	if a.keys[header] {
		return true
	}
	if a.secret == nil {
		return false
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && token.Valid
}

// Middleware rejects unauthenticated requests with a 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allow(r) {
			http.Error(w, UnauthorizedMessage, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
