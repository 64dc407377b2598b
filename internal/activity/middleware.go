package activity

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Recorder records HTTP requests after they have been handled.
type Recorder struct {
	Service *Service
	OnError func(error)
}

// RouteConfig customises how the activity entry is produced for a route.
type RouteConfig struct {
	Action          string
	Resource        string
	ResourceIDParam string
}

// Middleware returns a chi-compatible middleware that records an activity
// entry once the wrapped handler has written its response.
func (r Recorder) Middleware(cfg RouteConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, req)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			err := r.Service.Record(req.Context(), req, cfg.Action, cfg.Resource, resourceID, recorder.Status(), nil)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
