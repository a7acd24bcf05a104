package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/store"
)

type serviceStub struct {
	scanErr   error
	replyErr  error
	createErr error
	getErr    error

	detail *domain.InvoiceDetail

	scans   int
	replies []struct {
		invoiceID uuid.UUID
		message   string
	}
}

func (s *serviceStub) RunScan(ctx context.Context) error {
	s.scans++
	return s.scanErr
}

func (s *serviceStub) HandleReply(ctx context.Context, invoiceID uuid.UUID, replyText string) error {
	s.replies = append(s.replies, struct {
		invoiceID uuid.UUID
		message   string
	}{invoiceID, replyText})
	return s.replyErr
}

func (s *serviceStub) CreateInvoice(ctx context.Context, subscriptionID uuid.UUID) (*domain.InvoiceDetail, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.detail, nil
}

func (s *serviceStub) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceDetail, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.detail, nil
}

type limiterStub struct {
	count      int
	retryAfter int
	err        error
	calls      int
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	l.calls++
	return l.count, l.retryAfter, l.err
}

func newTestRouter(service *serviceStub, limiter RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(service, limiter, logger, 30, time.Minute)
	return NewRouter(h, "")
}

func replyBody(t *testing.T, invoiceID, message string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]string{"invoice_id": invoiceID, "message": message})
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	return bytes.NewReader(body)
}

func TestWhatsAppReplyWebhook(t *testing.T) {
	invoiceID := uuid.New()

	t.Run("accepts a valid reply", func(t *testing.T) {
		service := &serviceStub{}
		router := newTestRouter(service, &limiterStub{count: 1})

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", replyBody(t, invoiceID.String(), "pay now"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(service.replies) != 1 {
			t.Fatalf("expected one reply forwarded, got %d", len(service.replies))
		}
		if service.replies[0].invoiceID != invoiceID || service.replies[0].message != "pay now" {
			t.Fatalf("unexpected forwarded reply: %+v", service.replies[0])
		}
	})

	t.Run("rejects a missing invoice id", func(t *testing.T) {
		service := &serviceStub{}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", replyBody(t, "", "pay now"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if len(service.replies) != 0 {
			t.Fatal("expected no reply forwarded")
		}
	})

	t.Run("rejects a malformed invoice id", func(t *testing.T) {
		router := newTestRouter(&serviceStub{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", replyBody(t, "not-a-uuid", "pay now"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		router := newTestRouter(&serviceStub{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 for an unknown invoice", func(t *testing.T) {
		service := &serviceStub{replyErr: store.ErrInvoiceNotFound}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", replyBody(t, invoiceID.String(), "pay now"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("throttles when over the limit", func(t *testing.T) {
		service := &serviceStub{}
		limiter := &limiterStub{count: 31, retryAfter: 42}
		router := newTestRouter(service, limiter)

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", replyBody(t, invoiceID.String(), "pay now"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "42" {
			t.Fatalf("expected Retry-After 42, got %q", got)
		}
		if len(service.replies) != 0 {
			t.Fatal("expected throttled reply not to reach the service")
		}
	})

	t.Run("limiter failure does not block the reply", func(t *testing.T) {
		service := &serviceStub{}
		limiter := &limiterStub{err: errors.New("redis down")}
		router := newTestRouter(service, limiter)

		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/reply", replyBody(t, invoiceID.String(), "pay now"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 when limiter is degraded, got %d", rec.Code)
		}
		if len(service.replies) != 1 {
			t.Fatal("expected reply to be processed despite limiter failure")
		}
	})
}

func TestAdminEndpoints(t *testing.T) {
	subID := uuid.New()
	invID := uuid.New()
	detail := &domain.InvoiceDetail{
		Invoice: domain.Invoice{
			ID:             invID,
			SubscriptionID: subID,
			PaymentStatus:  domain.PaymentPending,
		},
		UserName:  "Asha",
		UserPhone: "+919900112233",
	}

	t.Run("create invoice returns the hydrated detail", func(t *testing.T) {
		service := &serviceStub{detail: detail}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/admin/subscriptions/"+subID.String()+"/invoice", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got domain.InvoiceDetail
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.Invoice.ID != invID {
			t.Fatalf("expected invoice %s, got %s", invID, got.Invoice.ID)
		}
	})

	t.Run("create invoice returns 404 for an unknown subscription", func(t *testing.T) {
		service := &serviceStub{createErr: store.ErrSubscriptionNotFound}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/admin/subscriptions/"+subID.String()+"/invoice", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("get invoice returns 404 when missing", func(t *testing.T) {
		service := &serviceStub{getErr: store.ErrInvoiceNotFound}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodGet, "/admin/invoices/"+invID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("get invoice rejects a malformed id", func(t *testing.T) {
		router := newTestRouter(&serviceStub{detail: detail}, nil)

		req := httptest.NewRequest(http.MethodGet, "/admin/invoices/nope", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("run scan triggers the service", func(t *testing.T) {
		service := &serviceStub{}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/admin/reminders/run", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if service.scans != 1 {
			t.Fatalf("expected one scan, got %d", service.scans)
		}
	})

	t.Run("run scan surfaces a failure", func(t *testing.T) {
		service := &serviceStub{scanErr: errors.New("db down")}
		router := newTestRouter(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/admin/reminders/run", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&serviceStub{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
