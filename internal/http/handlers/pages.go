package handlers

import (
	"fmt"
	"net/http"

	"studiofront/internal/middleware"
)

// The page handlers are deliberately thin shells: layout and marketing
// content belong to the front-end bundle served elsewhere. They exist so the
// route gate has real page-shaped destinations to allow or redirect.

func (a *App) page(w http.ResponseWriter, r *http.Request, title string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html lang=%q><head><title>%s</title></head><body><h1>%s</h1></body></html>",
		middleware.LocaleFromContext(r.Context()), title, title)
}

func (a *App) PageHome(w http.ResponseWriter, r *http.Request) {
	a.page(w, r, "Studio")
}

func (a *App) PageLogin(w http.ResponseWriter, r *http.Request) {
	a.page(w, r, "Sign in")
}

func (a *App) PagePricing(w http.ResponseWriter, r *http.Request) {
	a.page(w, r, "Pricing")
}

func (a *App) PageAbout(w http.ResponseWriter, r *http.Request) {
	a.page(w, r, "About")
}

func (a *App) PagePlayground(w http.ResponseWriter, r *http.Request) {
	a.page(w, r, "Playground")
}
