package notify

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	gomail "gopkg.in/mail.v2"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

var alertRecord = models.SignalRecord{
	Coin:      "UK100FT",
	Type:      models.OperationShort,
	Entry:     "8245.50",
	Strategy:  "RSI <70>",
	RSIValue:  "73.45",
	Timeframe: "30Min",
}

func enabledEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled:    true,
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		SMTPUser:   "bot@example.com",
		SMTPPass:   "secret",
		FromEmail:  "bot@example.com",
		ToEmail:    "ops@example.com",
	}
}

func TestAlertDispatchFailureSends(t *testing.T) {
	fake := &fakeSender{}
	a := newEmailAlerter(enabledEmailConfig(), fake, logger.Logger())

	if err := a.AlertDispatchFailure(alertRecord, errors.New("status 500")); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(fake.sent))
	}

	m := fake.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "ops@example.com" {
		t.Fatalf("unexpected To header: %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || !strings.Contains(got[0], "SHORT UK100FT") {
		t.Fatalf("unexpected subject: %v", got)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !strings.Contains(buf.String(), "8245.50") {
		t.Fatalf("body does not include the entry price")
	}
}

func TestAlertDisabled(t *testing.T) {
	fake := &fakeSender{}
	cfg := enabledEmailConfig()
	cfg.Enabled = false
	a := newEmailAlerter(cfg, fake, nil)

	if err := a.AlertDispatchFailure(alertRecord, errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.sent) != 0 {
		t.Fatal("disabled alerter must not send")
	}
}

func TestAlertSendError(t *testing.T) {
	fake := &fakeSender{err: errors.New("dial tcp: timeout")}
	a := newEmailAlerter(enabledEmailConfig(), fake, logger.Logger())

	err := a.AlertDispatchFailure(alertRecord, errors.New("boom"))
	if err == nil || !strings.Contains(err.Error(), "dial tcp") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestAlertRateLimited(t *testing.T) {
	fake := &fakeSender{}
	a := newEmailAlerter(enabledEmailConfig(), fake, logger.Logger())

	for i := 0; i < 5; i++ {
		if err := a.AlertDispatchFailure(alertRecord, errors.New("boom")); err != nil {
			t.Fatalf("alert %d: %v", i, err)
		}
	}
	if len(fake.sent) != 3 {
		t.Fatalf("expected burst of 3 emails, got %d", len(fake.sent))
	}
}

func TestRenderFailureEscapesHTML(t *testing.T) {
	text, body := renderFailure(alertRecord, nil)
	if !strings.Contains(text, "Strategy: RSI <70>") {
		t.Fatalf("plain text should keep raw value: %s", text)
	}
	if strings.Contains(body, "<70>") || !strings.Contains(body, "&lt;70&gt;") {
		t.Fatalf("html body not escaped: %s", body)
	}
	if !strings.Contains(text, "unknown error") {
		t.Fatalf("expected placeholder for nil error")
	}
}
