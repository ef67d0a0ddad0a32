package controlplane

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/technosupport/cvpipeline/internal/middleware"
)

// NewRouter builds the chi router for the control plane's HTTP surface,
// wiring the teacher's CORS and request-logging middleware ahead of every
// route. Auth/rate-limiting are tenant-RBAC concerns from the teacher's
// multi-tenant NVR deployment that this single-operator pipeline drops;
// see DESIGN.md.
func NewRouter(mgr *CameraManager) chi.Router {
	h := NewHandler(mgr)

	r := chi.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/cameras", func(r chi.Router) {
		r.Get("/", h.ListCameras)
		r.Post("/", h.CreateCamera)

		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.UpdateCamera)
			r.Delete("/", h.DeleteCamera)

			r.Post("/source", h.AttachSource)
			r.Post("/processors", h.AttachProcessor)
			r.Post("/sinks", h.AttachSink)

			r.Get("/frame", h.GetFrame)
			r.Get("/frame/raw", h.GetRawFrame)
			r.Get("/analytics", h.Analytics)
			r.Get("/time_series", h.TimeSeries)
			r.Get("/dwell_times", h.DwellTime)
		})
	})

	return r
}
