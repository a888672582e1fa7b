package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlexJ236/Impulso-Digital/config"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("mail relay credentials are not configured")

type Attachment struct {
	Filename string
	Content  []byte
}

// Message is an HTML email. Attachments are passed to the relay as-is;
// size and type limits are the relay's business.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an authenticated relay. The underlying client
// is created once and reused by every request.
type SMTPSender struct {
	client     *mail.Client
	from       string
	configured bool
	logger     *zap.Logger
}

func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.AppPassword),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &SMTPSender{
		client:     client,
		from:       cfg.User,
		configured: cfg.User != "" && cfg.AppPassword != "",
		logger:     logger,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if !s.configured {
		return ErrNotConfigured
	}

	msg, err := s.build(m)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.logger.Info("Mail sent",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("attachments", len(m.Attachments)),
	)
	return nil
}

func (s *SMTPSender) build(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)

	for _, a := range m.Attachments {
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Content)); err != nil {
			return nil, fmt.Errorf("failed to attach %q: %w", a.Filename, err)
		}
	}
	return msg, nil
}
