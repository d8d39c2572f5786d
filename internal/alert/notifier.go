// Package alert emails users about their new job matches.
package alert

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/observability"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by the notifier used when no email
// credentials are configured.
var ErrNotConfigured = errors.New("email sending not configured")

//go:embed templates/alert.html
var templateFS embed.FS

var alertTemplate = template.Must(
	template.New("alert.html").
		Funcs(template.FuncMap{"percent": percent}).
		ParseFS(templateFS, "templates/alert.html"),
)

func percent(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}

// Recipient is the addressee of an alert email.
type Recipient struct {
	Name  string
	Email string
}

// MatchedJob is one job listed in an alert email.
type MatchedJob struct {
	Title    string
	Company  string
	Location string
	URL      string
	Score    float64
}

// Notifier delivers one alert email listing every matched job.
type Notifier interface {
	Send(ctx context.Context, to Recipient, jobs []MatchedJob) error
}

// NewNotifier returns an SMTP notifier, or a disabled one when credentials
// are missing. The disabled case is logged once here.
func NewNotifier(cfg config.EmailConfig, logger *zap.Logger) Notifier {
	logger = observability.OrNop(logger)
	if !cfg.EmailEnabled() {
		logger.Warn("email credentials not set; alert emails are disabled")
		return disabledNotifier{}
	}
	return NewSMTPNotifier(cfg, logger)
}

type disabledNotifier struct{}

func (disabledNotifier) Send(context.Context, Recipient, []MatchedJob) error {
	return ErrNotConfigured
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends HTML alert emails through an SMTP server with
// STARTTLS and PLAIN authentication.
type SMTPNotifier struct {
	cfg    config.EmailConfig
	send   SendFunc
	logger *zap.Logger
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg config.EmailConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail, logger: observability.OrNop(logger)}
}

// WithSendFunc replaces the transport, for tests.
func (n *SMTPNotifier) WithSendFunc(send SendFunc) *SMTPNotifier {
	n.send = send
	return n
}

// Send renders and sends the alert. ctx is only checked before sending;
// net/smtp has no cancellation.
func (n *SMTPNotifier) Send(ctx context.Context, to Recipient, jobs []MatchedJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := n.message(to, jobs)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(n.cfg.SMTPHost, strconv.Itoa(n.cfg.SMTPPort))
	auth := smtp.PlainAuth("", n.cfg.Address, n.cfg.Password, n.cfg.SMTPHost)
	if err := n.send(addr, auth, n.cfg.Address, []string{to.Email}, msg); err != nil {
		return fmt.Errorf("failed to send alert to %s: %w", to.Email, err)
	}
	n.logger.Info("sent job alert", zap.String("to", to.Email), zap.Int("jobs", len(jobs)))
	return nil
}

func (n *SMTPNotifier) message(to Recipient, jobs []MatchedJob) ([]byte, error) {
	body, err := RenderHTML(to, jobs)
	if err != nil {
		return nil, err
	}

	from := n.cfg.Address
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", n.cfg.FromName), n.cfg.Address)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(len(jobs)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes(), nil
}

// Subject returns the alert email subject line.
func Subject(jobCount int) string {
	return fmt.Sprintf("SmartApply: %d New Job Matches Found!", jobCount)
}

// RenderHTML renders the alert email body.
func RenderHTML(to Recipient, jobs []MatchedJob) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Name string
		Jobs []MatchedJob
	}{Name: to.Name, Jobs: jobs}
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render alert email: %w", err)
	}
	return buf.String(), nil
}
