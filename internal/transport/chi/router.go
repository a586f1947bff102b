package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Operational routes, served outside the API prefixes and never behind auth.
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// APIPrefixes are the mount points of the DICOMweb routes. The viewer-
// compatible prefixes match what bundled viewers are configured with.
var APIPrefixes = []string{"", "/rs", "/viewer/rs"}

// HandlerOptions configures Handler.
type HandlerOptions struct {
	// BaseRouter receives the routes; a new router is created when nil.
	BaseRouter chi.Router
	// StaticDir, when set, is served at / for a bundled viewer.
	StaticDir string
}

// Handler registers every route of s and returns the router.
func Handler(s *Server, opts HandlerOptions) http.Handler {
	r := opts.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}

	r.Get(HealthPath, s.HealthCheck)
	r.Get(MetricsPath, s.Metrics)

	for _, prefix := range APIPrefixes {
		r.Get(prefix+"/studies", s.SearchStudies)
		r.Get(prefix+"/studies/{study}/series", s.SearchSeries)
		r.Get(prefix+"/studies/{study}/series/{series}/metadata", s.SeriesMetadata)
		r.Get(prefix+"/studies/{study}/series/{series}/instances/{instance}/frames/{frame}", s.RetrieveFrame)
	}
	r.Get("/wado", s.RetrieveInstance)
	r.Get("/viewer/wadouri", s.RetrieveInstance)

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}
