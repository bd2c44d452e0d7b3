package supplierapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/", h.Root)
	r.Post("/order", h.ProcessOrder)
	r.Get("/orders", h.RecentOrders)
	r.Get("/orders/{id}", h.GetOrder)
	r.Get("/catalog", h.GetCatalog)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
