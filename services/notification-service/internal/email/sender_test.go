package email

import (
	"strings"
	"testing"
)

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("no-reply@buildlance.local", "b1@example.com", "Welcome to Buildlance", "Your builder account is ready.")

	for _, want := range []string{
		"From: no-reply@buildlance.local\r\n",
		"To: b1@example.com\r\n",
		"Subject: Welcome to Buildlance\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.HasSuffix(msg, "\r\nYour builder account is ready.\r\n") {
		t.Fatalf("body not terminated correctly:\n%s", msg)
	}
}

func TestNewSMTPSenderDefaultsFrom(t *testing.T) {
	s := NewSMTPSender("mailpit", "1025", "  ")
	if s.from != "no-reply@buildlance.local" {
		t.Fatalf("from = %q", s.from)
	}
	if s.addr != "mailpit:1025" {
		t.Fatalf("addr = %q", s.addr)
	}
}
