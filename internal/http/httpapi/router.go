package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	appmw "genstudio/internal/middleware"
)

// Options configures the API router.
type Options struct {
	App                *handlers.App
	Logger             infra.Logger
	JWTSecret          string
	CORSAllowedOrigins []string
	// RateLimitPerMin caps job submissions per client IP. Zero disables it.
	RateLimitPerMin int
	// CountryLookup enriches access logs; nil skips GeoIP resolution.
	CountryLookup appmw.CountryLookup
	// StaticDir is served under /static when set, backing the filesystem object store.
	StaticDir string
}

func NewRouter(opts Options) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		appmw.Country(opts.CountryLookup),
		appmw.Logger(opts.Logger),
		appmw.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Handle("/static/*", fs)
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Use(appmw.AuthJWT(opts.JWTSecret))
		r.With(appmw.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.SubmitJob)
		r.Get("/stream", app.StreamJobs)
		r.Get("/{id}/status", app.JobStatus)
		r.Post("/{id}/cancel", app.CancelJob)
	})

	return r
}
