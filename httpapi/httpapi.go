// Package httpapi exposes the session controller over HTTP: a chat endpoint
// for the message transport and a confirmation endpoint that closes the
// payment loop by flipping a user's entitlement.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ineyio/chatgate"
)

// confirmHeader carries the shared secret guarding payment confirmation.
const confirmHeader = "X-Confirm-Secret"

// Server wires the controller into an http.Handler.
type Server struct {
	controller    *chatgate.Controller
	confirmSecret string
	logger        *slog.Logger
}

// New creates the HTTP API. confirmSecret guards POST /payments/confirm;
// when empty, the endpoint is disabled.
func New(controller *chatgate.Controller, confirmSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		controller:    controller,
		confirmSecret: confirmSecret,
		logger:        logger,
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/payments/confirm", s.handleConfirm)

	return r
}

type chatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type confirmRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	out := s.controller.Handle(r.Context(), chatgate.Inbound{UserID: req.UserID, Text: req.Text})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{Reply: out.Text}); err != nil {
		s.logger.Error("write chat response failed", "error", err)
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if s.confirmSecret == "" {
		http.Error(w, "payment confirmation is not configured", http.StatusNotFound)
		return
	}
	if r.Header.Get(confirmHeader) != s.confirmSecret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := s.controller.ConfirmPayment(r.Context(), req.UserID); err != nil {
		s.logger.Error("payment confirmation failed", "user", req.UserID, "error", err)
		http.Error(w, "confirmation failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
