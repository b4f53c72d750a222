package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"studiofront/internal/infra"
	"studiofront/internal/jobclient"
	"studiofront/internal/session"
)

// App bundles the dependencies every handler needs.
type App struct {
	Config    *infra.Config
	Logger    zerolog.Logger
	Sessions  *session.Store
	Jobs      *jobclient.Manager
	Transport *jobclient.Transport
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{
			"code":    errCode,
			"message": message,
		},
	})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
