package controllers

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/engine"
)

// AuthController validates API keys. Keys are presented as
// "X-API-Key: <keyId>.<secret>"; the key id selects the user row and the
// secret is compared against its bcrypt hash.
type AuthController struct {
	Users engine.UserStore
}

func NewAuthController(users engine.UserStore) *AuthController {
	return &AuthController{Users: users}
}

func (ac *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		keyID, secret, found := strings.Cut(apiKey, ".")
		if !found || keyID == "" || secret == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		u, err := ac.Users.FindByKeyID(keyID)
		if err != nil || u == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.APIKeyHash), []byte(secret)) != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)
		next(w, r.WithContext(ctx))
	}
}

// actorFromContext returns the authenticated username, or "system" when the
// request was injected without auth (internal callers, tests).
func actorFromContext(ctx context.Context) string {
	if v := ctx.Value(core.CtxKeyUsername); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "system"
}
