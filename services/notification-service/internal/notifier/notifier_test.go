package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/buildlance/buildlance/services/notification-service/internal/outbox"
	"github.com/buildlance/buildlance/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type fakeContacts struct {
	byID     map[string]storage.Contact
	upserted map[string]string
}

func (f *fakeContacts) Upsert(_ context.Context, builderID, email string) error {
	if f.upserted == nil {
		f.upserted = map[string]string{}
	}
	f.upserted[builderID] = email
	return nil
}

func (f *fakeContacts) Get(_ context.Context, builderID string) (storage.Contact, error) {
	c, ok := f.byID[builderID]
	if !ok {
		return storage.Contact{}, storage.ErrNoContact
	}
	return c, nil
}

type fakeDeliveries struct {
	rows []storage.Notification
}

func (f *fakeDeliveries) Insert(_ context.Context, n storage.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

type fakeEvents struct {
	events []outbox.Event
}

func (f *fakeEvents) Emit(_ context.Context, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) Send(to, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeSMS struct {
	sent []string
}

func (f *fakeSMS) Send(_ context.Context, to, _ string) error {
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeSMS) ProviderID() string { return "sms-fake" }

func newTestNotifier(contacts *fakeContacts, deliveries *fakeDeliveries, events *fakeEvents, mail *fakeEmail, texter *fakeSMS, failSuffix string) *Notifier {
	return New(contacts, deliveries, events, mail, texter, slog.New(slog.DiscardHandler), failSuffix)
}

func message(topic string, payload map[string]any) kafka.Message {
	raw, _ := json.Marshal(payload)
	return kafka.Message{Topic: topic, Value: raw}
}

func TestBuilderRegisteredSendsWelcomeAndStoresContact(t *testing.T) {
	contacts := &fakeContacts{}
	deliveries := &fakeDeliveries{}
	events := &fakeEvents{}
	mail := &fakeEmail{}
	n := newTestNotifier(contacts, deliveries, events, mail, &fakeSMS{}, "")

	msg := message("auth.builder.registered.v1", map[string]any{
		"builder_id": "builder-1",
		"email":      "b1@example.com",
	})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if contacts.upserted["builder-1"] != "b1@example.com" {
		t.Fatalf("contact not stored: %+v", contacts.upserted)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "b1@example.com" {
		t.Fatalf("welcome email not sent: %v", mail.sent)
	}
	if len(deliveries.rows) != 1 || deliveries.rows[0].Status != "sent" || deliveries.rows[0].Channel != "email" {
		t.Fatalf("delivery row = %+v", deliveries.rows)
	}
	if len(events.events) != 1 || events.events[0].EventType != "notification.sent.v1" {
		t.Fatalf("outbox events = %+v", events.events)
	}
}

func TestPlanActivationEmailsKnownContact(t *testing.T) {
	contacts := &fakeContacts{byID: map[string]storage.Contact{
		"builder-1": {BuilderID: "builder-1", Email: "b1@example.com"},
	}}
	deliveries := &fakeDeliveries{}
	events := &fakeEvents{}
	mail := &fakeEmail{}
	n := newTestNotifier(contacts, deliveries, events, mail, &fakeSMS{}, "")

	msg := message("billing.subscription.activated.v1", map[string]any{
		"builder_id": "builder-1",
		"tier":       "pro",
	})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(deliveries.rows) != 1 || deliveries.rows[0].EventType != "billing.subscription.activated.v1" {
		t.Fatalf("delivery row = %+v", deliveries.rows)
	}
	if deliveries.rows[0].Subject != "Your Buildlance pro plan is active" {
		t.Fatalf("subject = %q", deliveries.rows[0].Subject)
	}
}

func TestPlanChangeWithoutContactIsSkipped(t *testing.T) {
	deliveries := &fakeDeliveries{}
	events := &fakeEvents{}
	n := newTestNotifier(&fakeContacts{}, deliveries, events, &fakeEmail{}, &fakeSMS{}, "")

	msg := message("billing.subscription.canceled.v1", map[string]any{"builder_id": "builder-1"})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(deliveries.rows) != 0 || len(events.events) != 0 {
		t.Fatalf("expected no deliveries, got %d rows %d events", len(deliveries.rows), len(events.events))
	}
}

func TestDayOffPrefersSMSWhenPhoneKnown(t *testing.T) {
	contacts := &fakeContacts{byID: map[string]storage.Contact{
		"builder-1": {BuilderID: "builder-1", Email: "b1@example.com", Phone: "+15550001111"},
	}}
	deliveries := &fakeDeliveries{}
	events := &fakeEvents{}
	texter := &fakeSMS{}
	n := newTestNotifier(contacts, deliveries, events, &fakeEmail{}, texter, "")

	msg := message("availability.exception.created.v1", map[string]any{
		"builder_id":   "builder-1",
		"date":         "2026-09-01",
		"is_available": false,
	})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(texter.sent) != 1 || texter.sent[0] != "+15550001111" {
		t.Fatalf("sms not sent: %v", texter.sent)
	}
	if len(deliveries.rows) != 1 || deliveries.rows[0].Channel != "sms" {
		t.Fatalf("delivery row = %+v", deliveries.rows)
	}
}

func TestAvailableExceptionIsIgnored(t *testing.T) {
	contacts := &fakeContacts{byID: map[string]storage.Contact{
		"builder-1": {BuilderID: "builder-1", Email: "b1@example.com"},
	}}
	deliveries := &fakeDeliveries{}
	n := newTestNotifier(contacts, deliveries, &fakeEvents{}, &fakeEmail{}, &fakeSMS{}, "")

	msg := message("availability.exception.created.v1", map[string]any{
		"builder_id":   "builder-1",
		"date":         "2026-09-01",
		"is_available": true,
		"slot_count":   3,
	})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(deliveries.rows) != 0 {
		t.Fatalf("expected no deliveries, got %+v", deliveries.rows)
	}
}

func TestSendFailureRecordsFailedEvent(t *testing.T) {
	contacts := &fakeContacts{}
	deliveries := &fakeDeliveries{}
	events := &fakeEvents{}
	mail := &fakeEmail{err: errors.New("smtp down")}
	n := newTestNotifier(contacts, deliveries, events, mail, &fakeSMS{}, "")

	msg := message("auth.builder.registered.v1", map[string]any{
		"builder_id": "builder-1",
		"email":      "b1@example.com",
	})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(deliveries.rows) != 1 || deliveries.rows[0].Status != "failed" || deliveries.rows[0].Reason != "smtp down" {
		t.Fatalf("delivery row = %+v", deliveries.rows)
	}
	if len(events.events) != 1 || events.events[0].EventType != "notification.failed.v1" {
		t.Fatalf("outbox events = %+v", events.events)
	}
}

func TestSimulatedFailureSuffix(t *testing.T) {
	contacts := &fakeContacts{}
	deliveries := &fakeDeliveries{}
	mail := &fakeEmail{}
	n := newTestNotifier(contacts, deliveries, &fakeEvents{}, mail, &fakeSMS{}, "@fail.test")

	msg := message("auth.builder.registered.v1", map[string]any{
		"builder_id": "builder-1",
		"email":      "b1@fail.test",
	})
	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatalf("provider should not be called: %v", mail.sent)
	}
	if len(deliveries.rows) != 1 || deliveries.rows[0].Reason != "simulated failure" {
		t.Fatalf("delivery row = %+v", deliveries.rows)
	}
}
