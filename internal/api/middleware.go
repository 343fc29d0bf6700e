package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rma-advocacia/client-portal/internal/access"
	"github.com/rma-advocacia/client-portal/internal/models"
)

// AccessCodeHeader carries the client's access code
const AccessCodeHeader = "X-Access-Code"

// ClientResolver resolves an access code to a verified client
type ClientResolver interface {
	Lookup(code string) (*models.Client, error)
}

// AuthMiddleware handles access code authentication
type AuthMiddleware struct {
	clients ClientResolver
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(clients ClientResolver) *AuthMiddleware {
	return &AuthMiddleware{clients: clients}
}

// Authenticate resolves the access code to a client.
// Supports "X-Access-Code: <code>", "Authorization: Bearer <code>" and,
// for websocket clients that cannot set headers, the "code" query parameter.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := extractAccessCode(r)
		if code == "" {
			respondError(w, http.StatusUnauthorized, "missing_access_code",
				"provide the "+AccessCodeHeader+" header or a Bearer token")
			return
		}

		client, err := m.clients.Lookup(code)
		if err != nil {
			if errors.Is(err, access.ErrUnknownClient) {
				slog.Warn("invalid access code attempt", "code", models.MaskCode(code), "remote_addr", r.RemoteAddr)
				respondError(w, http.StatusUnauthorized, "invalid_access_code", "the provided access code is not valid")
				return
			}
			slog.Error("failed to resolve access code", "error", err, "code", models.MaskCode(code))
			respondError(w, http.StatusInternalServerError, "internal_error", "authentication error")
			return
		}

		slog.Debug("authenticated request", "client", client.MaskedCode(), "company", client.Company)

		ctx := ContextWithClient(r.Context(), client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAccessCode extracts the access code from request headers
func extractAccessCode(r *http.Request) string {
	if code := strings.TrimSpace(r.Header.Get(AccessCodeHeader)); code != "" {
		return code
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}
		return strings.TrimSpace(authHeader)
	}

	return strings.TrimSpace(r.URL.Query().Get("code"))
}
