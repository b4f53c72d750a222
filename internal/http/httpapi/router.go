package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studiofront/internal/gateway"
	"studiofront/internal/http/handlers"
	"studiofront/internal/middleware"
	"studiofront/internal/routegate"
)

// NewRouter wires the full request path: ambient middlewares, then the route
// gate, then handlers and the forwarding gateway.
func NewRouter(app *handlers.App, gate *routegate.Gate, proxy *gateway.Proxy) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
		middleware.Locale([]string{"en", "id"}, "en"),
		gate.Middleware,
	)

	r.Get("/healthz", app.Health)

	// pages
	r.Get("/", app.PageHome)
	r.Get("/login", app.PageLogin)
	r.Get("/pricing", app.PagePricing)
	r.Get("/about", app.PageAbout)
	r.Get("/playground", app.PagePlayground)
	r.Get("/playground/*", app.PagePlayground)

	if app.Config.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Config.StaticDir)))
		r.Handle("/static/*", fs)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
			Post("/login", app.Login)
		r.Post("/logout", app.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/{kind}/generate", app.Generate)
		r.Post("/{kind}/upload", app.Upload)
		r.Post("/{kind}/reset", app.JobReset)
		r.Get("/{kind}/events", app.JobEvents)
		r.Get("/jobs", app.JobsList)
		r.Get("/jobs/{job_id}", app.JobStatus)
		r.Delete("/jobs/{job_id}", app.JobForget)
	})

	r.Handle(app.Config.GatewayPrefix+"/*", proxy)

	return r
}
