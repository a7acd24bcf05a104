/**
 * @description
 * This file sets up the HTTP router for the reminder service using the
 * go-chi/chi router. It defines the webhook and admin routes, applies
 * middleware for logging, CORS and authentication, and maps routes to their
 * handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the reminder-service routes.
// When jwksURL is empty the admin routes are left unauthenticated (local
// development and demos).
func NewRouter(h *Handler, jwksURL string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Reminder service is healthy"))
	})

	// Inbound reply webhook
	r.Post("/webhook/whatsapp/reply", h.handleWhatsAppReply)

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		if jwksURL != "" {
			r.Use(JWKSAuthMiddleware(jwksURL))
		}

		r.Post("/subscriptions/{id}/invoice", h.handleCreateInvoice)
		r.Get("/invoices/{id}", h.handleGetInvoice)
		r.Post("/reminders/run", h.handleRunScan)
	})

	return r
}
