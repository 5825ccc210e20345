package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"

	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

// PostToken exchanges the configured service credentials for a bearer token.
func (h *Handler) PostToken(w http.ResponseWriter, r *http.Request) {
	var creds schemas.AuthTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(h.cfg.Auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(h.cfg.Auth.Password)) == 1
	if !userOK || !passOK {
		h.HandleErrors(w, utils.Unauthorized("invalid credentials"))
		return
	}

	claims := map[string]interface{}{"sub": creds.Username}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, time.Duration(h.cfg.Auth.TokenExpireMinutes)*time.Minute)

	_, tokenString, err := h.TokenAuth.Encode(claims)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, &schemas.AuthTokenResponse{
		AccessToken: tokenString,
		TokenType:   "bearer",
	}, http.StatusOK)
}
