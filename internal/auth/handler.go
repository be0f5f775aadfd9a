package auth

import (
	"encoding/json"
	"net/http"
	"net/mail"
)

// Handler serves auth HTTP endpoints.
type Handler struct {
	tokenSvc *TokenService
}

func NewHandler(tokenSvc *TokenService) *Handler {
	return &Handler{tokenSvc: tokenSvc}
}

// RegisterDevRoutes registers endpoints that must only exist in dev mode.
func (h *Handler) RegisterDevRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/dev/token", h.HandleDevToken)
}

// HandleDevToken mints an access token for any email and organization. In
// production tokens come from the identity provider.
// POST /auth/dev/token {"email": "...", "org_id": "..."}
func (h *Handler) HandleDevToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)

	var req struct {
		Email       string `json:"email"`
		OrgID       string `json:"org_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	identity := &Identity{
		Subject:     "dev|" + req.Email,
		Email:       req.Email,
		OrgID:       req.OrgID,
		DisplayName: req.DisplayName,
	}
	token, err := h.tokenSvc.CreateAccessToken(identity)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "token creation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"token_type":   "Bearer",
	})
}
