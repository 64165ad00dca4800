package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/core/cascade"
	"github.com/evercare/careshift/pkg/db"
)

// maxRequestBodyBytes limits request body size to prevent OOM on hostile input.
const maxRequestBodyBytes = 1 << 20

// TokenVerifier maps a bearer token to a caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// StaticVerifier is a fixed token-to-caregiver map for dev and tests.
type StaticVerifier map[string]string

// Verify resolves the token against the static map.
func (v StaticVerifier) Verify(ctx context.Context, token string) (string, error) {
	callerID, ok := v[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return callerID, nil
}

// OfferEngine is the transition surface the API exposes.
type OfferEngine interface {
	Accept(ctx context.Context, shiftID, callerID string) error
	Decline(ctx context.Context, shiftID, callerID string) error
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr     string
	Engine   OfferEngine
	Verifier TokenVerifier
	Logger   *zap.Logger
}

// NewServer builds the HTTP server with all routes registered.
func NewServer(opts ServerOptions) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the route handler; split out so tests can drive it
// through httptest without binding a port.
func NewHandler(opts ServerOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("/shift-offer/accept", offerHandler(opts, opts.Engine.Accept))
	mux.HandleFunc("/shift-offer/decline", offerHandler(opts, opts.Engine.Decline))

	return bodyLimitMiddleware(maxRequestBodyBytes, mux)
}

// offerRequest is the body of both offer endpoints.
type offerRequest struct {
	ShiftID string `json:"shiftId"`
}

// offerHandler wraps one offer transition: method check, bearer auth, body
// decode, transition call, error mapping.
func offerHandler(opts ServerOptions, transition func(ctx context.Context, shiftID, callerID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		callerID, ok := authenticate(w, r, opts.Verifier)
		if !ok {
			return
		}

		var req offerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ShiftID == "" {
			writeError(w, http.StatusBadRequest, "shiftId is required")
			return
		}

		if err := transition(r.Context(), req.ShiftID, callerID); err != nil {
			respondTransitionError(w, opts.Logger, r.URL.Path, req.ShiftID, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// authenticate resolves the caller from the Authorization header, writing a
// 401 response itself when verification fails.
func authenticate(w http.ResponseWriter, r *http.Request, verifier TokenVerifier) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return "", false
	}

	callerID, err := verifier.Verify(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return "", false
	}
	return callerID, true
}

// respondTransitionError maps the offer error taxonomy onto HTTP statuses.
// Precondition violations surface their message verbatim; anything unexpected
// is logged in full and answered with a generic 500.
func respondTransitionError(w http.ResponseWriter, logger *zap.Logger, path, shiftID string, err error) {
	switch {
	case errors.Is(err, db.ErrShiftNotFound):
		writeError(w, http.StatusNotFound, "shift not found")
	case errors.Is(err, cascade.ErrStaleOffer),
		errors.Is(err, cascade.ErrNotCurrentOfferee),
		errors.Is(err, cascade.ErrExpiredOffer),
		errors.Is(err, cascade.ErrInvalidState):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrRevisionConflict):
		writeError(w, http.StatusConflict, "conflicting updates, please retry")
	default:
		logger.Error("Offer transition failed",
			zap.String("path", path),
			zap.String("shift_id", shiftID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// bodyLimitMiddleware caps request body size for methods that carry one.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
