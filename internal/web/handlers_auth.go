// internal/web/handlers_auth.go
package web

import (
	"errors"
	"net/http"
	"net/url"

	"shopsync/internal/oauth"
	"shopsync/internal/shopify"
)

func (a *App) handleAuth(w http.ResponseWriter, r *http.Request) {
	shop := shopParam(r.URL.Query())
	if shop == "" {
		writeError(w, http.StatusBadRequest, "invalid_shop", "Shop parameter is required")
		return
	}
	authURL, err := a.oauth.Initiate(r.Context(), shop)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidShop) {
			writeError(w, http.StatusBadRequest, "invalid_shop", "Invalid shop domain")
			return
		}
		a.log.Errorw("oauth initiate", "shop", shop, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not start install")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (a *App) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := a.oauth.Callback(r.Context(), oauth.CallbackParams{
		Shop:  shopParam(q),
		Code:  q.Get("code"),
		State: q.Get("state"),
		Query: q,
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrInvalidShop):
			writeError(w, http.StatusBadRequest, "invalid_shop", "Invalid shop domain")
		case errors.Is(err, oauth.ErrInvalidState):
			writeError(w, http.StatusBadRequest, "invalid_state", "Invalid state parameter")
		case errors.Is(err, oauth.ErrTokenExchangeFailed):
			status := http.StatusBadGateway
			if errors.Is(err, shopify.ErrCodeRejected) {
				status = http.StatusBadRequest
			}
			writeError(w, status, "token_exchange_failed", "Failed to exchange code for token")
		default:
			a.log.Errorw("oauth callback", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "install failed")
		}
		return
	}
	http.Redirect(w, r, a.cfg.AppURL+"/?shop="+url.QueryEscape(res.Domain)+"&installed=1", http.StatusFound)
}
