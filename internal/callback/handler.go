// Package callback serves the browser redirects that payment providers send
// after a checkout, plus health and metrics endpoints.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
	httpmiddleware "github.com/wolfman30/clinicdesk/internal/http/middleware"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Verifier confirms a provider payment with the backend.
type Verifier interface {
	VerifyProviderPayment(ctx context.Context, billingID int64, providerRef string) (*clinicapi.PaymentStatus, error)
}

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Verifier       Verifier
	MetricsHandler http.Handler
	Gatherer       prometheus.Gatherer
}

// PaymentResult is the JSON body of the success and cancel pages.
type PaymentResult struct {
	BillingID int64  `json:"billing_id,omitempty"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
	Message   string `json:"message"`
}

type handler struct {
	logger   *logging.Logger
	verifier Verifier
	gatherer prometheus.Gatherer
}

// NewRouter builds the callback listener routes.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	h := &handler{logger: logger, verifier: cfg.Verifier, gatherer: cfg.Gatherer}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httpmiddleware.RequestLogger(logger))

	r.Get("/health", h.health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.Gatherer != nil {
		r.Get("/stats", h.stats)
	}
	r.Route("/payments", func(r chi.Router) {
		r.Get("/success", h.success)
		r.Get("/cancel", h.cancel)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	snap, err := metrics.TakeSnapshot(h.gatherer)
	if err != nil {
		h.logger.Error("stats snapshot failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) success(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	billingID, err := strconv.ParseInt(strings.TrimSpace(q.Get("billing_id")), 10, 64)
	if err != nil || billingID <= 0 {
		writeJSON(w, http.StatusBadRequest, PaymentResult{Status: "invalid", Message: "No billing ID found."})
		return
	}
	if h.verifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, PaymentResult{BillingID: billingID, Status: "unavailable", Message: "Payment verification is not configured."})
		return
	}

	// Flutterwave redirects carry transaction_id; Stripe redirects carry none.
	ref := strings.TrimSpace(q.Get("transaction_id"))
	status, err := h.verifier.VerifyProviderPayment(r.Context(), billingID, ref)
	if err != nil {
		h.logger.Warn("payment verification failed", "billing_id", billingID, "error", err)
		code := http.StatusBadGateway
		if errors.Is(err, appointments.ErrValidation) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, PaymentResult{BillingID: billingID, Status: "error", Message: "Payment verification failed."})
		return
	}

	res := PaymentResult{BillingID: billingID, Status: status.Status, Paid: status.Paid()}
	if res.Paid {
		res.Message = "Payment successful. Your billing has been updated."
	} else {
		res.Message = fmt.Sprintf("Payment status: %s", status.Status)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	billingID, _ := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("billing_id")), 10, 64)
	writeJSON(w, http.StatusOK, PaymentResult{
		BillingID: billingID,
		Status:    "cancelled",
		Message:   "Payment was cancelled. You can retry from your billing page.",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
