package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/dmehra2102/food-order-events/internal/notification/application"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender delivers HTML mail. A new connection is dialed per message so a
// broken session never poisons later sends.
type SMTPSender struct {
	log    *slog.Logger
	client *gomail.Client
	from   string
	domain string
}

func NewSMTPSender(log *slog.Logger, cfg Config) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Password),
		)
	}
	c, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPSender{log: log, client: c, from: cfg.From, domain: domainOf(cfg.From)}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m application.Mail) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.DebugContext(ctx, "smtp delivered", "to", m.To, "message_id", m.MessageID)
	return nil
}

func (s *SMTPSender) build(m application.Mail) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	if m.MessageID != "" {
		msg.SetMessageIDWithValue(m.MessageID + "@" + s.domain)
	}
	return msg, nil
}

func domainOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return "localhost"
}

// LogSender writes mails to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(ctx context.Context, m application.Mail) error {
	s.log.InfoContext(ctx, "mail (log only)", "to", m.To, "subject", m.Subject, "message_id", m.MessageID, "bytes", len(m.HTML))
	return nil
}
