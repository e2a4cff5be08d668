package accountapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// tokenRequest accepts both camelCase and snake_case field names, matching
// what different frontend builds send.
type tokenRequest struct {
	Code          string `json:"code"`
	CodeVerifier  string `json:"codeVerifier"`
	CodeVerifier2 string `json:"code_verifier"`
	RedirectURI   string `json:"redirect_uri"`
	RedirectURI2  string `json:"redirectUri"`
}

func (a *App) postToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	verifier := req.CodeVerifier
	if verifier == "" {
		verifier = req.CodeVerifier2
	}
	redirect := req.RedirectURI
	if redirect == "" {
		redirect = req.RedirectURI2
	}
	if req.Code == "" || verifier == "" || redirect == "" {
		writeError(w, "code, codeVerifier and redirect_uri required", http.StatusBadRequest)
		return
	}
	a.log.Infow("token exchange request")
	pair, err := a.shop.ExchangeCode(r.Context(), req.Code, redirect, verifier)
	if err != nil {
		a.log.Warnw("token exchange failed", "err", err)
		// Exchange failures are caller-attributable at this route (bad code,
		// verifier mismatch, stale redirect).
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.log.Infow("token exchange success")
	writeJSON(w, pair, http.StatusOK)
}

type refreshRequest struct {
	RefreshToken  string `json:"refreshToken"`
	RefreshToken2 string `json:"refresh_token"`
}

func (a *App) postRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	token := req.RefreshToken
	if token == "" {
		token = req.RefreshToken2
	}
	if strings.TrimSpace(token) == "" {
		writeError(w, "refreshToken required", http.StatusBadRequest)
		return
	}
	pair, err := a.shop.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, pair, http.StatusOK)
}

type verifyRequest struct {
	AccessToken string `json:"accessToken"`
}

func (a *App) postVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		authz := r.Header.Get("Authorization")
		if strings.HasPrefix(authz, "Bearer ") {
			token = strings.TrimSpace(authz[len("Bearer "):])
		}
	}
	if token == "" {
		writeError(w, "accessToken required", http.StatusBadRequest)
		return
	}
	id, err := a.shop.Verify(r.Context(), token)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":    true,
		"customerId": id.CustomerID,
		"email":      id.Email,
	}, http.StatusOK)
}

func (a *App) getPing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"pong": true}, http.StatusOK)
}

// getCallbackDebug logs what the OAuth redirect delivered without touching
// any secret material. Useful when wiring a new storefront domain.
func (a *App) getCallbackDebug(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a.log.Infow("callback hit",
		"hasCode", q.Get("hasCode"),
		"hasState", q.Get("hasState"),
		"error", q.Get("error"),
	)
	writeJSON(w, map[string]bool{"ok": true}, http.StatusOK)
}
