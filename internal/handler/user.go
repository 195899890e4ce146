package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/vibelist/internal/auth"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/service"
)

// UserHandler exposes account-level reads.
type UserHandler struct {
	credits *service.CreditService
	logger  *slog.Logger
}

func NewUserHandler(credits *service.CreditService, logger *slog.Logger) *UserHandler {
	return &UserHandler{credits: credits, logger: logger}
}

// HandleCredits returns the user's remaining credit balance.
//
// HTTP: GET /api/user/credits
func (h *UserHandler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"credits_remaining": balance,
		"max_credits":       model.MaxCredits,
	})
}
