package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"undertow/internal/auth"
	"undertow/internal/core"
	"undertow/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps storage and validation errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case core.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// requireUser pulls the authenticated user ID out of the request context.
// The auth middleware guarantees it for protected routes; the fallback 401
// covers misrouted handlers.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return userID, true
}

// yearMonthParams parses the ?year= and ?month= query parameters.
func yearMonthParams(r *http.Request) (year, month int, err error) {
	year, err = strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year parameter")
	}
	month, err = strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month parameter")
	}
	return year, month, nil
}

// balanceOverrideParam parses the optional ?startingBalance= what-if override.
// Returns nil when the parameter is absent.
func balanceOverrideParam(r *http.Request) (*core.Money, error) {
	raw := r.URL.Query().Get("startingBalance")
	if raw == "" {
		return nil, nil
	}
	cents, err := core.ParseSignedCents(raw)
	if err != nil {
		return nil, err
	}
	return &core.Money{Cents: cents}, nil
}

func monthCacheKey(userID int64, year, month int) string {
	return fmt.Sprintf("u%d:%04d-%02d", userID, year, month)
}

func yearCacheKey(userID int64, year int) string {
	return fmt.Sprintf("u%d:%04d", userID, year)
}

func userCachePrefix(userID int64) string {
	return fmt.Sprintf("u%d:", userID)
}

// invalidateProjections drops every cached projection for the user. Called
// after any record write so the next read recomputes.
func (s *Server) invalidateProjections(userID int64) {
	prefix := userCachePrefix(userID)
	s.monthCache.DeletePrefix(prefix)
	s.yearCache.DeletePrefix(prefix)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
