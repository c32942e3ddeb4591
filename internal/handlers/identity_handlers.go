package handlers

import (
	"encoding/json"
	"net/http"

	"lanchat/internal/auth"
	"lanchat/pkg/logger"
)

type IdentityHandlers struct {
	authService *auth.Service
}

func NewIdentityHandlers(authService *auth.Service) *IdentityHandlers {
	return &IdentityHandlers{
		authService: authService,
	}
}

// Issue mints a new user id and a token the client can present with "set nickname".
func (h *IdentityHandlers) Issue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, err := h.authService.NewIdentity()
	if err != nil {
		logger.Error("Identity issue error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(identity)
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
