package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/consite/procurement-sms/internal/order_response_service/app"
	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// InboundProcessor is the application surface the webhook handler drives.
// An interface so tests can substitute a mock.
type InboundProcessor interface {
	HandleIncomingSMS(ctx context.Context, msg app.InboundMessage) (*app.ProcessOutcome, error)
	HandleDeliveryReport(ctx context.Context, report domain.DeliveryReport) error
}

type WebhookHandler struct {
	processor InboundProcessor
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewWebhookHandler(processor InboundProcessor, logger *slog.Logger, validate *validator.Validate) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger.With("component", "webhook_handler"),
		validate:  validate,
	}
}

// HandleProviderCallback receives provider webhooks: inbound supplier SMS or
// delivery-status reports, as JSON or form-encoded bodies.
func (h *WebhookHandler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	providerName := chi.URLParam(r, "provider_name")
	if providerName == "" {
		logger.WarnContext(ctx, "Provider name missing in callback URL")
		http.Error(w, "Provider name is required", http.StatusBadRequest)
		return
	}
	logger = logger.With("provider_name", providerName)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		if err.Error() == "http: request body too large" {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
		}
		return
	}
	defer r.Body.Close()

	payload, err := h.decodeBody(r.Header.Get("Content-Type"), body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to decode webhook body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	kind := Classify(payload)
	app.CountWebhookPayload(string(kind))
	logger.InfoContext(ctx, "Received provider callback", "kind", kind, "payload_size", len(body))

	switch kind {
	case KindDeliveryReport:
		h.handleDeliveryReport(ctx, w, logger, payload)
	case KindIncomingSMS:
		h.handleIncomingSMS(ctx, w, logger, payload)
	default:
		logger.WarnContext(ctx, "Unrecognized webhook payload shape")
		http.Error(w, "Unrecognized payload shape", http.StatusBadRequest)
	}
}

func (h *WebhookHandler) decodeBody(contentType string, body []byte) (rawPayload, error) {
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return decodeFormPayload(body)
	}
	return decodeJSONPayload(body)
}

// handleDeliveryReport updates the matching communication record. This path
// never replies to the sender.
func (h *WebhookHandler) handleDeliveryReport(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, payload rawPayload) {
	req := DeliveryReportPayload{
		PhoneNumber:   payload.PhoneNumber,
		Status:        payload.Status,
		ID:            payload.ID,
		FailureReason: payload.FailureReason,
		RetryCount:    payload.RetryCount,
		NetworkCode:   payload.NetworkCode,
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.ErrorContext(ctx, "Failed to validate delivery report", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	report := domain.DeliveryReport{
		PhoneNumber:       req.PhoneNumber,
		Status:            req.Status,
		ProviderMessageID: req.ID,
		FailureReason:     req.FailureReason,
		RetryCount:        req.RetryCount,
		NetworkCode:       req.NetworkCode,
		ReportedAt:        time.Now().UTC(),
	}
	if err := h.processor.HandleDeliveryReport(ctx, report); err != nil {
		logger.ErrorContext(ctx, "Failed to process delivery report",
			"provider_message_id", req.ID, "error", err)
		http.Error(w, "Failed to process delivery report", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "delivery report processed"})
}

func (h *WebhookHandler) handleIncomingSMS(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, payload rawPayload) {
	req := IncomingSMSPayload{
		From: payload.From,
		To:   payload.To,
		Text: payload.Text,
		Date: payload.Date,
		ID:   payload.ID,
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.ErrorContext(ctx, "Failed to validate incoming SMS", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg := app.InboundMessage{
		Sender:            req.From,
		Recipient:         req.To,
		Text:              req.Text,
		ReceivedAt:        parseProviderDate(req.Date, time.Now().UTC()),
		ExternalMessageID: req.ID,
	}

	outcome, err := h.processor.HandleIncomingSMS(ctx, msg)
	if err != nil {
		// A guard failure means the message was well-formed and resolved but
		// business validation blocked the transition; it is reported
		// distinctly from not-found (resolution failure, outcome with
		// processed:false and HTTP 200) and from infrastructure errors.
		if errors.Is(err, domain.ErrMissingUnitCost) {
			logger.WarnContext(ctx, "Accept blocked by missing unit cost", "sender", req.From)
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"processed": false,
				"error":     "missing_unit_cost",
			})
			return
		}
		logger.ErrorContext(ctx, "Failed to process inbound SMS", "sender", req.From, "error", err)
		http.Error(w, "Internal server error processing inbound SMS", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// NewRouter builds the service router: the provider callback endpoint plus a
// health check.
func NewRouter(handler *WebhookHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)

	r.Post("/callbacks/sms/{provider_name}", handler.HandleProviderCallback)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
