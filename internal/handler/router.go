package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/avrile/rental-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса аренды недвижимости.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/quotes", h.Quote)

		r.Post("/bookings", h.CreateBooking)
		r.Get("/bookings", h.ListBookings)
		r.Put("/bookings/{id}/stay", h.UpdateBookingStay)

		r.Get("/reports/occupancy", h.Occupancy)

		r.Post("/invoices", h.CreateInvoice)
		r.Get("/invoices", h.ListInvoices)
		r.Delete("/invoices/{id}", h.DeleteInvoice)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
