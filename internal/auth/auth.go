// Package auth provides client authentication for the object store.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// ContextKey is used for storing auth info in context.
type ContextKey string

// ClientContextKey is the context key for the authenticated client id.
const ClientContextKey ContextKey = "auth_client_id"

// Recorder observes authentication attempts. A nil Recorder disables
// instrumentation.
type Recorder interface {
	RecordAuthAttempt(source string, success bool, reason string)
}

// Authenticator validates (client_id, token) pairs against a flat map
// loaded once at startup. The map is never mutated after construction.
type Authenticator struct {
	clients map[string]string
	rec     Recorder
}

// NewAuthenticator creates an authenticator over a client_id to token map.
func NewAuthenticator(clients map[string]string, rec Recorder) *Authenticator {
	copied := make(map[string]string, len(clients))
	for id, token := range clients {
		copied[id] = token
	}
	return &Authenticator{clients: copied, rec: rec}
}

// Middleware returns HTTP middleware that authenticates every request.
// Credentials arrive as x-client-id and x-client-token headers, or as
// client_id and client_token query parameters. Authenticated requests carry
// the client id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, token, source := credentials(r)
		if clientID == "" || token == "" {
			a.record(source, false, "missing_credentials")
			unauthorized(w, "Missing client credentials")
			return
		}

		expected, ok := a.clients[clientID]
		if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
			a.record(source, false, "invalid_credentials")
			unauthorized(w, "Authentication failed")
			return
		}

		a.record(source, true, "")
		ctx := context.WithValue(r.Context(), ClientContextKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credentials extracts the client id and token from a request. Headers win
// over query parameters.
func credentials(r *http.Request) (clientID, token, source string) {
	clientID = r.Header.Get("x-client-id")
	token = r.Header.Get("x-client-token")
	if clientID != "" || token != "" {
		return clientID, token, "header"
	}

	q := r.URL.Query()
	return q.Get("client_id"), q.Get("client_token"), "query"
}

// record reports an attempt to the Recorder, if any.
func (a *Authenticator) record(source string, success bool, reason string) {
	if a.rec != nil {
		a.rec.RecordAuthAttempt(source, success, reason)
	}
}

// unauthorized writes the 401 error envelope.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ERROR",
		"message": message,
	})
}

// ClientID retrieves the authenticated client id from context. Empty when
// the request did not pass through the middleware.
func ClientID(ctx context.Context) string {
	if id, ok := ctx.Value(ClientContextKey).(string); ok {
		return id
	}
	return ""
}
