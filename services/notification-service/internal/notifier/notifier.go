package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/buildlance/buildlance/services/notification-service/internal/email"
	"github.com/buildlance/buildlance/services/notification-service/internal/outbox"
	"github.com/buildlance/buildlance/services/notification-service/internal/sms"
	"github.com/buildlance/buildlance/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

// Contacts resolves builder delivery addresses.
type Contacts interface {
	Upsert(ctx context.Context, builderID, email string) error
	Get(ctx context.Context, builderID string) (storage.Contact, error)
}

// Deliveries persists rendered delivery attempts.
type Deliveries interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// Events enqueues notification.{sent,failed}.v1 outbox events.
type Events interface {
	Emit(ctx context.Context, evt outbox.Event) error
}

// Notifier turns inbound platform events into rendered emails and SMS.
// Unknown topics and malformed payloads are logged and dropped; delivery
// failures are recorded and emitted, never retried here (Kafka redelivery
// is the retry path for transient handler errors).
type Notifier struct {
	contacts    Contacts
	deliveries  Deliveries
	events      Events
	emailSender email.Sender
	smsSender   sms.Sender
	logger      *slog.Logger

	// failSuffix simulates provider failures in dev: any recipient ending
	// with it is recorded as failed without hitting a provider.
	failSuffix string
}

func New(contacts Contacts, deliveries Deliveries, events Events, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger, failSuffix string) *Notifier {
	return &Notifier{
		contacts:    contacts,
		deliveries:  deliveries,
		events:      events,
		emailSender: emailSender,
		smsSender:   smsSender,
		logger:      logger,
		failSuffix:  failSuffix,
	}
}

type builderRegisteredPayload struct {
	BuilderID string `json:"builder_id"`
	Email     string `json:"email"`
}

type subscriptionPayload struct {
	BuilderID string `json:"builder_id"`
	Tier      string `json:"tier"`
}

type exceptionPayload struct {
	BuilderID   string `json:"builder_id"`
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	SlotCount   int    `json:"slot_count"`
}

func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case "auth.builder.registered.v1":
		return n.handleBuilderRegistered(ctx, msg.Value)
	case "billing.subscription.activated.v1":
		return n.handleSubscription(ctx, msg.Value, true)
	case "billing.subscription.canceled.v1":
		return n.handleSubscription(ctx, msg.Value, false)
	case "availability.exception.created.v1":
		return n.handleExceptionCreated(ctx, msg.Value)
	default:
		n.logger.Warn("unexpected topic", "topic", msg.Topic)
		return nil
	}
}

func (n *Notifier) handleBuilderRegistered(ctx context.Context, raw []byte) error {
	var payload builderRegisteredPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.logger.Error("invalid builder registered payload", "err", err)
		return nil
	}
	payload.BuilderID = strings.TrimSpace(payload.BuilderID)
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.BuilderID == "" || payload.Email == "" {
		n.logger.Error("missing builder registered fields")
		return nil
	}

	if err := n.contacts.Upsert(ctx, payload.BuilderID, payload.Email); err != nil {
		return err
	}

	subject, body := welcomeMessage()
	return n.deliverEmail(ctx, delivery{
		BuilderID: payload.BuilderID,
		EventType: "auth.builder.registered.v1",
		Recipient: payload.Email,
		Subject:   subject,
		Body:      body,
	})
}

func (n *Notifier) handleSubscription(ctx context.Context, raw []byte, activated bool) error {
	var payload subscriptionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.logger.Error("invalid subscription payload", "err", err)
		return nil
	}
	payload.BuilderID = strings.TrimSpace(payload.BuilderID)
	if payload.BuilderID == "" {
		n.logger.Error("missing subscription fields")
		return nil
	}

	eventType := "billing.subscription.canceled.v1"
	if activated {
		eventType = "billing.subscription.activated.v1"
	}
	contact, err := n.contacts.Get(ctx, payload.BuilderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoContact) {
			n.logger.Warn("no contact for builder, skipping", "builder_id", payload.BuilderID, "event_type", eventType)
			return nil
		}
		return err
	}

	subject, body := planMessage(payload.Tier, activated)
	return n.deliverEmail(ctx, delivery{
		BuilderID: payload.BuilderID,
		EventType: eventType,
		Recipient: contact.Email,
		Subject:   subject,
		Body:      body,
	})
}

func (n *Notifier) handleExceptionCreated(ctx context.Context, raw []byte) error {
	var payload exceptionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.logger.Error("invalid exception payload", "err", err)
		return nil
	}
	payload.BuilderID = strings.TrimSpace(payload.BuilderID)
	payload.Date = strings.TrimSpace(payload.Date)
	if payload.BuilderID == "" || payload.Date == "" {
		n.logger.Error("missing exception fields")
		return nil
	}
	// Custom-slot days are a routine edit; only full days off get a confirmation.
	if payload.IsAvailable {
		return nil
	}

	contact, err := n.contacts.Get(ctx, payload.BuilderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoContact) {
			n.logger.Warn("no contact for builder, skipping", "builder_id", payload.BuilderID, "event_type", "availability.exception.created.v1")
			return nil
		}
		return err
	}

	subject, body := dayOffMessage(payload.Date)
	if contact.Phone != "" && n.smsSender != nil {
		return n.deliverSMS(ctx, delivery{
			BuilderID: payload.BuilderID,
			EventType: "availability.exception.created.v1",
			Recipient: contact.Phone,
			Body:      body,
		})
	}
	return n.deliverEmail(ctx, delivery{
		BuilderID: payload.BuilderID,
		EventType: "availability.exception.created.v1",
		Recipient: contact.Email,
		Subject:   subject,
		Body:      body,
	})
}

type delivery struct {
	BuilderID string
	EventType string
	Recipient string
	Subject   string
	Body      string
}

func (n *Notifier) deliverEmail(ctx context.Context, d delivery) error {
	status := "sent"
	reason := ""
	providerID := "smtp"

	if n.failSuffix != "" && strings.HasSuffix(d.Recipient, n.failSuffix) {
		status, reason = "failed", "simulated failure"
	} else if err := n.emailSender.Send(d.Recipient, d.Subject, d.Body); err != nil {
		status, reason = "failed", err.Error()
		n.logger.Error("email send failed", "err", err, "recipient", d.Recipient)
	}
	return n.record(ctx, d, "email", status, reason, providerID)
}

func (n *Notifier) deliverSMS(ctx context.Context, d delivery) error {
	status := "sent"
	reason := ""
	providerID := n.smsSender.ProviderID()

	if n.failSuffix != "" && strings.HasSuffix(d.Recipient, n.failSuffix) {
		status, reason = "failed", "simulated failure"
	} else if err := n.smsSender.Send(ctx, d.Recipient, d.Body); err != nil {
		status, reason = "failed", err.Error()
		n.logger.Error("sms send failed", "err", err, "recipient", d.Recipient)
	}
	return n.record(ctx, d, "sms", status, reason, providerID)
}

func (n *Notifier) record(ctx context.Context, d delivery, channel, status, reason, providerID string) error {
	if err := n.deliveries.Insert(ctx, storage.Notification{
		BuilderID: d.BuilderID,
		EventType: d.EventType,
		Channel:   channel,
		Recipient: d.Recipient,
		Subject:   d.Subject,
		Body:      d.Body,
		Status:    status,
		Reason:    reason,
	}); err != nil {
		return err
	}

	evtType := "notification.sent.v1"
	fields := map[string]any{
		"builder_id":   d.BuilderID,
		"source_event": d.EventType,
		"channel":      channel,
	}
	if status == "failed" {
		evtType = "notification.failed.v1"
		fields["error_reason"] = reason
		fields["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	} else {
		fields["provider_id"] = providerID
		fields["sent_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := n.events.Emit(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   d.BuilderID,
		EventType:     evtType,
		Payload:       payload,
	}); err != nil {
		return err
	}

	n.logger.Info("notification processed", "builder_id", d.BuilderID, "source_event", d.EventType, "channel", channel, "status", status)
	return nil
}

func welcomeMessage() (string, string) {
	subject := "Welcome to Buildlance"
	body := "Your builder account is ready. Set your weekly hours and booking profile to start receiving bookings."
	return subject, body
}

func planMessage(tier string, activated bool) (string, string) {
	tier = strings.TrimSpace(strings.ToLower(tier))
	if tier == "" {
		tier = "free"
	}
	if !activated {
		return "Your Buildlance plan was canceled",
			"Your subscription has been canceled and your account is back on the free plan."
	}
	return fmt.Sprintf("Your Buildlance %s plan is active", tier),
		fmt.Sprintf("Your %s plan is now active. Updated scheduling limits apply immediately.", tier)
}

func dayOffMessage(date string) (string, string) {
	subject := "Day off confirmed"
	body := fmt.Sprintf("You are marked unavailable on %s. Clients will not see booking windows for that day.", date)
	return subject, body
}
