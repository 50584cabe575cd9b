package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// genericFailure is shown for every callback failure except a rejected
// grant exchange, whose provider text is shown instead.
const genericFailure = "Something went wrong."

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready only when the credential store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Callback endpoint

// handleCallback completes an authorization from the provider's redirect.
// Failures answer 200 with plain text; the browser is only redirected on success.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	err := s.callbackService.Complete(r.Context(), req)
	if err == nil {
		if s.postAuthRedirect == "" {
			writeText(w, http.StatusOK, "Authorization complete. You can return to the chat.")
			return
		}
		http.Redirect(w, r, s.postAuthRedirect, http.StatusFound)
		return
	}

	var grantErr *domain.GrantExchangeError
	switch {
	case errors.As(err, &grantErr):
		s.logger.Warn("grant exchange rejected", "reason", grantErr.Reason)
		writeText(w, http.StatusOK, grantErr.Reason)
	case errors.Is(err, domain.ErrMissingParameters), errors.Is(err, domain.ErrUnknownSecret):
		writeText(w, http.StatusOK, genericFailure)
	default:
		s.logger.Error("callback failed", "error", err)
		writeText(w, http.StatusOK, genericFailure)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
