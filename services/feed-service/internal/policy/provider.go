package policy

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/batfeed/libs/auth"
	"github.com/md-rashed-zaman/batfeed/libs/httpx"
)

// Provider resolves the permissions of the caller behind a request.
type Provider interface {
	Permissions(ctx context.Context) Permissions
}

type staticProvider struct {
	perms Permissions
}

// NewStaticProvider grants the same permissions to every caller.
func NewStaticProvider(perms Permissions) Provider {
	return &staticProvider{perms: perms}
}

func (p *staticProvider) Permissions(_ context.Context) Permissions {
	return p.perms
}

// TokenProvider reads permissions from the verified token claims that
// Middleware stores on the request context. Requests without claims get
// the anonymous permissions.
type TokenProvider struct {
	verifier  *auth.Verifier
	anonymous Permissions
}

func NewTokenProvider(verifier *auth.Verifier, anonymous Permissions) *TokenProvider {
	return &TokenProvider{verifier: verifier, anonymous: anonymous}
}

func (p *TokenProvider) Permissions(ctx context.Context) Permissions {
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		return NewPermissions(claims.Permissions...)
	}
	return p.anonymous
}

// Middleware verifies bearer tokens. A request without an Authorization
// header continues anonymously; a request with a bad token is rejected.
func (p *TokenProvider) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" || !p.verifier.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "invalid Authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := p.verifier.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}
