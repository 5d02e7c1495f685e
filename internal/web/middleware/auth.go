package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/duckgeunpark/IWT/internal/config"
)

type contextKey string

const principalContextKey contextKey = "principal"

const (
	principalCacheTTL = 5 * time.Minute
	verifyTimeout     = 10 * time.Second
)

// Verifier resolves a bearer token to the stable subject identifier of
// the user it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// RemoteVerifier validates tokens against an OIDC userinfo endpoint.
// Verified tokens are cached for a few minutes so request bursts do not
// hammer the identity provider.
type RemoteVerifier struct {
	userinfoURL string
	client      *http.Client
	cache       *gocache.Cache
}

// NewRemoteVerifier creates a verifier backed by the given userinfo endpoint.
func NewRemoteVerifier(userinfoURL string) *RemoteVerifier {
	return &RemoteVerifier{
		userinfoURL: userinfoURL,
		client:      &http.Client{Timeout: verifyTimeout},
		cache:       gocache.New(principalCacheTTL, 10*time.Minute),
	}
}

// Verify calls the userinfo endpoint with the token and returns the sub claim.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	if sub, found := v.cache.Get(token); found {
		return sub.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return "", fmt.Errorf("decode userinfo response: %w", err)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("userinfo response has no sub claim")
	}

	v.cache.Set(token, claims.Sub, gocache.DefaultExpiration)
	return claims.Sub, nil
}

// StaticVerifier accepts exactly one pre-shared token. It serves
// development and single-user deployments without an identity provider.
type StaticVerifier struct {
	token     string
	principal string
}

// NewStaticVerifier creates a verifier for a single pre-shared token.
func NewStaticVerifier(token, principal string) *StaticVerifier {
	if principal == "" {
		principal = "dev"
	}
	return &StaticVerifier{token: token, principal: principal}
}

// Verify compares the token against the configured one.
func (v *StaticVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" || token != v.token {
		return "", fmt.Errorf("invalid token")
	}
	return v.principal, nil
}

// NewVerifier picks the verifier matching the configuration: remote
// when a userinfo URL is set, static otherwise.
func NewVerifier(cfg *config.AuthConfig) (Verifier, error) {
	if cfg.UserinfoURL != "" {
		return NewRemoteVerifier(cfg.UserinfoURL), nil
	}
	if cfg.StaticToken != "" {
		return NewStaticVerifier(cfg.StaticToken, cfg.StaticPrincipal), nil
	}
	return nil, fmt.Errorf("no auth verifier configured: set AUTH_USERINFO_URL or AUTH_STATIC_TOKEN")
}

// RequireAuth is middleware that requires a valid bearer token
func RequireAuth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			// Add principal to context
			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// PrincipalFromContext retrieves the authenticated principal from the request context
func PrincipalFromContext(ctx context.Context) string {
	principal, ok := ctx.Value(principalContextKey).(string)
	if !ok {
		return ""
	}
	return principal
}

// SetPrincipalInContext adds a principal to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetPrincipalInContext(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
