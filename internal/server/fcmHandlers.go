package server

import (
	"net/http"
	"strings"

	"estatehub/internal/apperror"
)

// fcmSaveToken registers the caller's push token. userId is optional but must
// name the caller when present.
func (s Server) fcmSaveToken() http.HandlerFunc {
	type request struct {
		UserID string `json:"userId"`
		Token  string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "fcmSaveToken", err)
			return
		}
		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "fcmSaveToken", err)
			return
		}
		if req.UserID != "" && req.UserID != uc.user.ID.Hex() {
			s.writeError(w, r, "fcmSaveToken", apperror.Authorization("Cannot register a token for another user"))
			return
		}
		token := strings.TrimSpace(req.Token)
		if token == "" {
			s.writeError(w, r, "fcmSaveToken", apperror.Validation("Invalid token"))
			return
		}
		if err = s.DB.UserFCMTokenUpdate(r.Context(), uc.user.ID, token); err != nil {
			s.writeError(w, r, "fcmSaveToken", storeError(err, "User"))
			return
		}
		s.writeData(w, "Token saved", nil, http.StatusOK)
	}
}
