// internal/web/server.go
package web

import (
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "shopsync/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID())
	r.Use(mw.Recover(a.log))
	r.Use(mw.Tracing("shopsync-web"))
	r.Use(mw.DebugRequests())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/", a.index)
	r.Get("/auth", a.handleAuth)
	r.Get("/auth/callback", a.handleAuthCallback)

	// Every webhook delivery lands on one verified entry point; the topic is
	// the {resource}/{event} tail of the path.
	r.Post("/webhooks/{resource}/{event}", a.handleWebhook)

	r.Route("/api", func(ar chi.Router) {
		ar.Use(mw.SessionAuth(a.cfg))
		ar.Post("/sync/{resource}", a.handleSyncTrigger)
		ar.Group(func(gr chi.Router) {
			gr.Use(mw.WithShop(a.shops))
			gr.Get("/products", a.handleAPIProducts)
			gr.Get("/orders", a.handleAPIOrders)
			gr.Get("/inventory", a.handleAPIInventory)
		})
	})

	return r
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.URL.Query().Get("installed") == "1" {
		fmt.Fprintf(w, "<html><body><h1>Connected</h1><p>%s is installed and syncing.</p></body></html>",
			html.EscapeString(r.URL.Query().Get("shop")))
		return
	}
	fmt.Fprint(w, `<html><body><h1>shopsync</h1><p>Start an install at /auth?shop=your-shop-domain</p></body></html>`)
}
