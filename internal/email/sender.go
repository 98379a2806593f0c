package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/garyjia/reembolso/internal/config"
	"github.com/garyjia/reembolso/pkg/utils"
)

// ErrNoRecipients is returned when a message has no To address
var ErrNoRecipients = errors.New("message has no recipients")

// Attachment is a file carried by a message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a plain-text e-mail with attachments
type Message struct {
	To          []string
	Cc          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Composer turns a Message into a MIME message
type Composer struct {
	from     string
	fromName string
}

// NewComposer creates a composer sending as "fromName <from>"
func NewComposer(from, fromName string) *Composer {
	return &Composer{from: from, fromName: fromName}
}

// Compose builds the MIME message. Header values are stripped of line breaks.
func (c *Composer) Compose(msg *Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	m := mail.NewMsg()
	if c.fromName != "" {
		if err := m.FromFormat(utils.SanitizeHeader(c.fromName), c.from); err != nil {
			return nil, fmt.Errorf("invalid sender: %w", err)
		}
	} else if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}

	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if len(msg.Cc) > 0 {
		if err := m.Cc(msg.Cc...); err != nil {
			return nil, fmt.Errorf("invalid cc: %w", err)
		}
	}

	m.Subject(utils.SanitizeHeader(msg.Subject))
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}

	return m, nil
}

// SMTPSender delivers messages through an SMTP relay
type SMTPSender struct {
	composer *Composer
	cfg      config.SMTPConfig
	logger   *zap.Logger
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		composer: NewComposer(cfg.From, cfg.FromName),
		cfg:      cfg,
		logger:   logger,
	}
}

// Send composes msg and delivers it over a fresh connection
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m, err := s.composer.Compose(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error("Failed to send email",
			zap.String("host", s.cfg.Host),
			zap.Strings("to", msg.To),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email sent",
		zap.Strings("to", msg.To),
		zap.Strings("cc", msg.Cc),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}

	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}

	switch s.cfg.TLS {
	case config.TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case config.TLSOpportunistic:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}

	return opts
}
