package notifications

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/metrics"
)

// Message is the transport-agnostic email payload the composers produce.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single message. Failures are the caller's to swallow.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender builds an SMTP-backed sender from config. Returns a disabled
// no-op sender when mail is not configured.
func NewSMTPSender(cfg config.SMTPConfig) Sender {
	if !cfg.Enabled() {
		return noopSender{}
	}
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}

	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.Text != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}
	if msg.HTML != "" {
		if msg.Text != "" {
			m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
		} else {
			m.SetBodyString(mail.TypeTextHTML, msg.HTML)
		}
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}

type noopSender struct{}

func (noopSender) Send(context.Context, Message) error { return nil }

// Dispatch sends msg and only logs the outcome. State transitions never fail
// because mail did.
func Dispatch(ctx context.Context, sender Sender, logg *logger.Logger, core *metrics.CoreMetrics, msg Message) {
	if sender == nil {
		return
	}
	if err := sender.Send(ctx, msg); err != nil {
		core.IncEmail("failure")
		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"to":      msg.To,
				"subject": msg.Subject,
			})
			logg.Error(logCtx, "notification send failed", err)
		}
		return
	}
	core.IncEmail("success")
}
