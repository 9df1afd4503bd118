package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/consite/procurement-sms/internal/order_response_service/adapters/smsprovider"
	"github.com/consite/procurement-sms/internal/order_response_service/domain"
	"github.com/consite/procurement-sms/internal/order_response_service/parser"
	"github.com/consite/procurement-sms/internal/platform/messagebroker"
)

// InboundMessage is one received supplier SMS as handed over by the webhook
// layer. It is transient; persistence of the raw exchange is handled through
// the communication repository.
type InboundMessage struct {
	Sender            string
	Recipient         string
	Text              string
	ReceivedAt        time.Time
	ExternalMessageID string
}

// ProcessOutcome is the structured result the webhook layer reports back to
// the provider and to dashboards.
type ProcessOutcome struct {
	Processed bool                           `json:"processed"`
	Action    domain.Action                  `json:"action"`
	Reason    domain.ResolutionFailureReason `json:"reason,omitempty"`
	NewStatus domain.OrderStatus             `json:"new_status,omitempty"`
	OrderID   uuid.NullUUID                  `json:"order_id,omitempty"`
}

// Processor orchestrates the inbound pipeline: parse, resolve, apply, reply,
// then dispatch best-effort follow-ups.
type Processor struct {
	lookup          domain.OrderLookupRepository
	resolver        *Resolver
	applier         *Applier
	comms           domain.CommunicationRepository
	sms             smsprovider.Adapter
	events          messagebroker.NATSClient
	logger          *slog.Logger
	senderID        string
	defaultLanguage string
}

func NewProcessor(
	lookup domain.OrderLookupRepository,
	resolver *Resolver,
	applier *Applier,
	comms domain.CommunicationRepository,
	sms smsprovider.Adapter,
	events messagebroker.NATSClient,
	logger *slog.Logger,
	senderID string,
	defaultLanguage string,
) *Processor {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Processor{
		lookup:          lookup,
		resolver:        resolver,
		applier:         applier,
		comms:           comms,
		sms:             sms,
		events:          events,
		logger:          logger.With("component", "processor"),
		senderID:        senderID,
		defaultLanguage: defaultLanguage,
	}
}

// HandleIncomingSMS processes one supplier reply. Resolution failures are
// not errors: the outcome reports processed:false with a reason and the
// webhook returns success. A guard failure (domain.ErrMissingUnitCost) or a
// failed accept transaction is returned as an error for the handler to map.
// Every path sends exactly one reply to the sender.
func (p *Processor) HandleIncomingSMS(ctx context.Context, msg InboundMessage) (*ProcessOutcome, error) {
	start := time.Now()
	defer func() {
		processingDurationHist.WithLabelValues("incoming_sms").Observe(time.Since(start).Seconds())
	}()

	p.logger.InfoContext(ctx, "Processing inbound supplier SMS",
		"sender", msg.Sender, "external_message_id", msg.ExternalMessageID, "text_len", len(msg.Text))

	p.recordInbound(ctx, msg)

	cmd := parser.Parse(msg.Text)

	// Help and unknown never touch an order; they only reply.
	switch cmd.Action {
	case domain.ActionHelp, domain.ActionUnknown:
		key := replyHelp
		if cmd.Action == domain.ActionUnknown {
			key = replyUnknown
		}
		lang := p.languageForSender(ctx, msg.Sender)
		p.sendReply(ctx, msg.Sender, uuid.NullUUID{}, lang, key, nil)
		commandsProcessedCounter.WithLabelValues(string(cmd.Action), "noop").Inc()
		return &ProcessOutcome{Processed: false, Action: cmd.Action}, nil
	}

	res, err := p.resolver.Resolve(ctx, msg.Sender, cmd)
	if err != nil {
		if reason, ok := domain.FailureReasonFor(err); ok {
			resolutionFailuresCounter.WithLabelValues(string(reason)).Inc()
			commandsProcessedCounter.WithLabelValues(string(cmd.Action), "resolution_failed").Inc()
			lang := p.languageForSender(ctx, msg.Sender)
			key, args := replyForFailure(reason, cmd.OrderReference)
			p.sendReply(ctx, msg.Sender, uuid.NullUUID{}, lang, key, args)
			p.logger.InfoContext(ctx, "Command could not be resolved to an order",
				"sender", msg.Sender, "action", cmd.Action, "reason", reason)
			return &ProcessOutcome{Processed: false, Action: cmd.Action, Reason: reason}, nil
		}
		commandsProcessedCounter.WithLabelValues(string(cmd.Action), "error").Inc()
		return nil, err
	}

	if res.AmbiguousPending {
		ambiguousResolutionCounter.Inc()
	}

	lang := p.defaultLanguage
	if res.Supplier != nil && res.Supplier.PreferredLanguage != "" {
		lang = res.Supplier.PreferredLanguage
	}
	orderID := uuid.NullUUID{UUID: res.Order.ID, Valid: true}

	result, applyErr := p.applier.Apply(ctx, res, cmd)
	if applyErr != nil {
		if result != nil {
			// Guard failure: the supplier still gets a reply, the caller
			// gets a hard error distinct from not-found and no-op.
			p.sendReply(ctx, msg.Sender, orderID, lang, result.ReplyKey, result.ReplyArgs)
			commandsProcessedCounter.WithLabelValues(string(cmd.Action), "guard_failed").Inc()
			return &ProcessOutcome{
				Processed: false,
				Action:    cmd.Action,
				NewStatus: result.NewStatus,
				OrderID:   orderID,
			}, applyErr
		}
		// The transition itself failed; the caller must not report success.
		p.sendReply(ctx, msg.Sender, orderID, lang, replyProcessingError, nil)
		commandsProcessedCounter.WithLabelValues(string(cmd.Action), "error").Inc()
		return nil, applyErr
	}

	p.sendReply(ctx, msg.Sender, orderID, lang, result.ReplyKey, result.ReplyArgs)
	p.dispatchFollowUps(ctx, result.FollowUps)

	outcome := "applied"
	if !result.Processed {
		outcome = "noop"
	}
	commandsProcessedCounter.WithLabelValues(string(cmd.Action), outcome).Inc()

	p.logger.InfoContext(ctx, "Inbound supplier SMS processed",
		"sender", msg.Sender, "action", cmd.Action, "processed", result.Processed,
		"order_id", res.Order.ID, "new_status", result.NewStatus)

	return &ProcessOutcome{
		Processed: result.Processed,
		Action:    cmd.Action,
		NewStatus: result.NewStatus,
		OrderID:   orderID,
	}, nil
}

// HandleDeliveryReport applies a provider delivery-status callback to the
// communication that sent the message. It never replies and never touches
// order state.
func (p *Processor) HandleDeliveryReport(ctx context.Context, report domain.DeliveryReport) error {
	start := time.Now()
	defer func() {
		processingDurationHist.WithLabelValues("delivery_report").Observe(time.Since(start).Seconds())
	}()

	p.logger.InfoContext(ctx, "Processing delivery report",
		"provider_message_id", report.ProviderMessageID, "status", report.Status)

	err := p.comms.UpdateDeliveryStatus(ctx, report.ProviderMessageID, &report)
	if errors.Is(err, domain.ErrCommunicationNotFound) {
		p.logger.WarnContext(ctx, "Delivery report references unknown message",
			"provider_message_id", report.ProviderMessageID)
		return nil
	}
	return err
}

func replyForFailure(reason domain.ResolutionFailureReason, reference string) (replyKey, []any) {
	switch reason {
	case domain.FailureNoSupplierMatch:
		return replyNoSupplierMatch, nil
	case domain.FailureNoPendingOrder:
		return replyNoPendingOrder, nil
	case domain.FailureOrderNotFound:
		return replyOrderNotFound, []any{reference}
	case domain.FailureTokenExpired:
		if reference == "" {
			reference = "PO"
		}
		return replyTokenExpired, []any{reference}
	default:
		return replyUnknown, nil
	}
}

// languageForSender is a best-effort supplier language lookup for paths
// where no order was resolved.
func (p *Processor) languageForSender(ctx context.Context, sender string) string {
	supplier, err := p.lookup.FindActiveSupplierByPhone(ctx, PhoneVariants(sender))
	if err != nil || supplier.PreferredLanguage == "" {
		return p.defaultLanguage
	}
	return supplier.PreferredLanguage
}

func (p *Processor) recordInbound(ctx context.Context, msg InboundMessage) {
	c := &domain.Communication{
		ID:                uuid.New(),
		SupplierPhone:     msg.Sender,
		Direction:         domain.DirectionInbound,
		Content:           msg.Text,
		ProviderMessageID: msg.ExternalMessageID,
		SentAt:            msg.ReceivedAt,
	}
	if err := p.comms.Create(ctx, c); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record inbound communication",
			"sender", msg.Sender, "error", err)
	}
}

// sendReply sends one localized SMS and records it so later delivery reports
// can be correlated. Send failures are logged, never propagated.
func (p *Processor) sendReply(ctx context.Context, to string, orderID uuid.NullUUID, lang string, key replyKey, args []any) {
	body := renderReply(lang, key, args...)

	resp, err := p.sms.Send(ctx, smsprovider.SendRequest{
		SenderID:  p.senderID,
		Recipient: to,
		Content:   body,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to send reply SMS",
			"recipient", to, "reply_key", key, "error", err)
	}

	c := &domain.Communication{
		ID:              uuid.New(),
		PurchaseOrderID: orderID,
		SupplierPhone:   to,
		Direction:       domain.DirectionOutbound,
		Content:         body,
		SentAt:          time.Now().UTC(),
	}
	if resp != nil {
		c.ProviderMessageID = resp.ProviderMessageID
		if !resp.Success {
			c.DeliveryStatus = "failed"
			c.FailureReason = resp.ErrorMessage
		}
	}
	if err := p.comms.Create(ctx, c); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record outbound communication",
			"recipient", to, "error", err)
	}
}

// dispatchFollowUps runs the best-effort side effects returned with a
// transition. Each is independent: a failure is logged and the rest still run.
func (p *Processor) dispatchFollowUps(ctx context.Context, followUps []FollowUp) {
	for _, fu := range followUps {
		switch fu.Kind {
		case FollowUpPush:
			payload, err := json.Marshal(map[string]any{
				"user_id": fu.UserID.String(),
				"title":   fu.Title,
				"body":    fu.Body,
			})
			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to marshal push notification", "error", err)
				continue
			}
			if err := p.events.Publish(ctx, "notifications.push.user", payload); err != nil {
				p.logger.ErrorContext(ctx, "Failed to publish push notification",
					"user_id", fu.UserID, "error", err)
			}
		case FollowUpEvent:
			payload, err := json.Marshal(fu.Payload)
			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to marshal follow-up event",
					"subject", fu.Subject, "error", err)
				continue
			}
			if err := p.events.Publish(ctx, fu.Subject, payload); err != nil {
				p.logger.ErrorContext(ctx, "Failed to publish follow-up event",
					"subject", fu.Subject, "error", err)
			}
		}
	}
}
