/**
 * @description
 * This file contains the HTTP handler functions for the reminder service.
 * Handlers parse incoming requests, call the service layer, and write the
 * response. Guard-rejected replies are 200s: the webhook caller did nothing
 * wrong, the reply was simply not actionable.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/store"
)

// ReminderService defines the application operations the handlers need.
type ReminderService interface {
	RunScan(ctx context.Context) error
	HandleReply(ctx context.Context, invoiceID uuid.UUID, replyText string) error
	CreateInvoice(ctx context.Context, subscriptionID uuid.UUID) (*domain.InvoiceDetail, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceDetail, error)
}

// RateLimiter defines the webhook rate limiting operation.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error)
}

// Handler holds the application service that handlers interact with.
type Handler struct {
	service    ReminderService
	limiter    RateLimiter
	logger     *slog.Logger
	rateLimit  int
	rateWindow time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(service ReminderService, limiter RateLimiter, logger *slog.Logger, rateLimit int, rateWindow time.Duration) *Handler {
	return &Handler{
		service:    service,
		limiter:    limiter,
		logger:     logger,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
	}
}

// handleWhatsAppReply processes an inbound WhatsApp reply webhook.
func (h *Handler) handleWhatsAppReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceID string `json:"invoice_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InvoiceID == "" {
		http.Error(w, "Invoice id is required", http.StatusBadRequest)
		return
	}

	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		http.Error(w, "Invalid invoice id", http.StatusBadRequest)
		return
	}

	if h.limiter != nil {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "webhook_reply", invoiceID.String(), h.rateLimit, h.rateWindow)
		if err != nil {
			// Rate limiting is best-effort; never block the reply pipeline on it.
			h.logger.Warn("rate limiter unavailable", "error", err)
		} else if h.rateLimit > 0 && count > h.rateLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "Too many replies for this invoice", http.StatusTooManyRequests)
			return
		}
	}

	if err := h.service.HandleReply(r.Context(), invoiceID, req.Message); err != nil {
		if errors.Is(err, store.ErrInvoiceNotFound) {
			http.Error(w, "Invoice not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to process reply", "invoice_id", invoiceID, "error", err)
		http.Error(w, "Failed to process reply", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Reply processed"))
}

// handleCreateInvoice lazily creates the invoice for a subscription.
func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	subscriptionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid subscription id", http.StatusBadRequest)
		return
	}

	detail, err := h.service.CreateInvoice(r.Context(), subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			http.Error(w, "Subscription not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to create invoice", "subscription_id", subscriptionID, "error", err)
		http.Error(w, "Failed to create invoice", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// handleGetInvoice returns an invoice hydrated with subscription and user.
func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid invoice id", http.StatusBadRequest)
		return
	}

	detail, err := h.service.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, store.ErrInvoiceNotFound) {
			http.Error(w, "Invoice not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch invoice", "invoice_id", invoiceID, "error", err)
		http.Error(w, "Failed to fetch invoice", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// handleRunScan triggers an on-demand renewal scan.
func (h *Handler) handleRunScan(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RunScan(r.Context()); err != nil {
		h.logger.Error("on-demand scan failed", "error", err)
		http.Error(w, "Scan failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Scan triggered"))
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
