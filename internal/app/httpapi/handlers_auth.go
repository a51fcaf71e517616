package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	svcerrors "github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

type googleCallbackRequest struct {
	IDToken string `json:"id_token"`
}

type tokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         user.User `json:"user"`
}

// authGoogleCallback verifies a Google id token, finds-or-creates the
// local user, and issues the first access/refresh token pair.
func (h *handlers) authGoogleCallback(w http.ResponseWriter, r *http.Request) {
	var req googleCallbackRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	identity, err := h.app.Identity.Verify(r.Context(), req.IDToken)
	if err != nil {
		writeErr(w, r, svcerrors.Unauthorized("invalid identity token"))
		return
	}

	u, err := h.app.Storage.Users.GetUserByExternalSubject(r.Context(), identity.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		u, err = h.app.Storage.Users.CreateUser(r.Context(), user.User{
			ExternalSubject: identity.Subject,
			Email:           identity.Email,
			DisplayName:     identity.Name,
			AvatarURL:       identity.Picture,
			Timezone:        "UTC",
			Tier:            user.TierFree,
		})
		if err == nil {
			_, err = h.app.Credits.GrantKickstart(r.Context(), u.ID)
		}
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	h.issueTokenPair(w, r, u)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handlers) authRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	userID, _, err := h.app.RefreshTokens.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := h.app.Storage.Users.GetUser(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.issueTokenPair(w, r, u)
}

func (h *handlers) authLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.RefreshTokens.RevokeAll(r.Context(), userID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) issueTokenPair(w http.ResponseWriter, r *http.Request, u user.User) {
	access, expiresAt, err := h.app.Tokens.Issue(u)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	refresh, err := h.app.RefreshTokens.Issue(r.Context(), u.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, tokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         u,
	})
}

func (h *handlers) jwks(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, h.app.Tokens.JWKS())
}

func (h *handlers) getMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	u, err := h.app.Storage.Users.GetUser(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, u)
}
