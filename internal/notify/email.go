// Package notify alerts operators when an accepted signal could not be
// delivered.
package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/time/rate"
	gomail "gopkg.in/mail.v2"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

// sender delivers a composed message. *gomail.Dialer satisfies it.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailAlerter mails dispatch failures to the configured operator address.
// Alerts are limited to a burst of three and one per minute afterwards.
type EmailAlerter struct {
	cfg     config.EmailConfig
	sender  sender
	limiter *rate.Limiter
	log     *logger.Entry
}

// NewEmailAlerter creates an alerter that sends through the SMTP server in
// cfg.
func NewEmailAlerter(cfg config.EmailConfig, log *logger.Log) *EmailAlerter {
	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second
	return newEmailAlerter(cfg, dialer, log)
}

func newEmailAlerter(cfg config.EmailConfig, s sender, log *logger.Log) *EmailAlerter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &EmailAlerter{
		cfg:     cfg,
		sender:  s,
		limiter: rate.NewLimiter(rate.Every(time.Minute), 3),
		log:     log.WithComponent("email_alerter"),
	}
}

// AlertDispatchFailure sends one email describing rec and the delivery
// error. It returns nil without sending when alerts are disabled or the
// limiter suppresses the alert.
func (a *EmailAlerter) AlertDispatchFailure(rec models.SignalRecord, cause error) error {
	if !a.cfg.Enabled {
		return nil
	}
	if !a.limiter.Allow() {
		a.log.WithFields(logger.Fields{"coin": rec.Coin}).Warn("alert suppressed by rate limit")
		return nil
	}

	subject := fmt.Sprintf("[signalbot] dispatch failed for %s %s", rec.Type, rec.Coin)
	text, htmlBody := renderFailure(rec, cause)

	m := gomail.NewMessage()
	m.SetHeader("From", a.cfg.FromEmail)
	m.SetHeader("To", a.cfg.ToEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", htmlBody)

	if err := a.sender.DialAndSend(m); err != nil {
		a.log.WithError(err).WithFields(logger.Fields{"to": a.cfg.ToEmail, "subject": subject}).Error("failed to send alert email")
		return fmt.Errorf("send alert email: %w", err)
	}

	a.log.WithFields(logger.Fields{"subject": subject}).Info("alert email sent")
	return nil
}

func renderFailure(rec models.SignalRecord, cause error) (string, string) {
	rows := [][2]string{
		{"Coin", rec.Coin},
		{"Type", string(rec.Type)},
		{"Entry", rec.Entry},
		{"Strategy", rec.Strategy},
		{"RSI", rec.RSIValue},
		{"Timeframe", rec.Timeframe},
	}
	errText := "unknown error"
	if cause != nil {
		errText = cause.Error()
	}

	var text, body strings.Builder
	text.WriteString("A parsed signal could not be delivered to the ingestion endpoint.\n\n")
	body.WriteString("<p>A parsed signal could not be delivered to the ingestion endpoint.</p><table>")
	for _, row := range rows {
		fmt.Fprintf(&text, "%s: %s\n", row[0], row[1])
		fmt.Fprintf(&body, "<tr><th align=\"left\">%s</th><td>%s</td></tr>", row[0], html.EscapeString(row[1]))
	}
	fmt.Fprintf(&text, "\nError: %s\n", errText)
	fmt.Fprintf(&body, "</table><p><b>Error:</b> %s</p>", html.EscapeString(errText))
	return text.String(), body.String()
}
