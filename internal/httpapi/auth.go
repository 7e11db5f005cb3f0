package httpapi

import (
	"context"
	"net/http"
	"strings"

	"portal/internal/models"
	"portal/internal/session"
)

type authContextKey struct{}

type authInfo struct {
	Session *session.Session
	User    models.User
}

// requireSession resolves the bearer token into a live, authenticated session
// and hands it to next through the request context.
func (h *Handler) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionTokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing session token")
			return
		}
		sess, ok := h.lookupSession(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
			return
		}
		user, err := sess.Current(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, authInfo{Session: sess, User: *user})
		next(w, r.WithContext(ctx))
	})
}

func (h *Handler) lookupSession(token string) (*session.Session, bool) {
	claims, err := h.tokens.Parse(token)
	if err != nil {
		return nil, false
	}
	return h.sessions.Get(claims.SessionID)
}

func authFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	if !ok {
		return authInfo{}, false
	}
	return info, true
}

// requireCapability answers 403 unless the caller passes check.
func requireCapability(w http.ResponseWriter, r *http.Request, check func(*models.User) bool) (models.User, bool) {
	info, ok := authFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return models.User{}, false
	}
	if !check(&info.User) {
		writeError(w, http.StatusForbidden, "access_denied", "insufficient role")
		return models.User{}, false
	}
	return info.User, true
}

func sessionTokenFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-Token"))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
