package mail

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender is the part of *mail.Client used for delivery.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type CodeData struct {
	AppName          string
	Email            string
	Code             string
	ExpiresAt        time.Time
	ExpiresInMinutes int
}

// SMTPDelivery sends codes over SMTP using the otp_code templates.
type SMTPDelivery struct {
	config    *config.MailConfig
	appName   string
	sender    Sender
	templates *templateSet
	logger    *logging.Service
	now       func() time.Time
}

func NewSMTPDelivery(cfg *config.MailConfig, appName string, logger *logging.Service) (*SMTPDelivery, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		logger.Error("failed to create mail client", zap.Error(err), zap.String("host", cfg.Host))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewSMTPDeliveryWithSender(cfg, appName, client, logger)
}

func NewSMTPDeliveryWithSender(cfg *config.MailConfig, appName string, sender Sender, logger *logging.Service) (*SMTPDelivery, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	templates, err := loadTemplates(cfg.TemplatesDir)
	if err != nil {
		logger.Error("failed to load mail templates", zap.Error(err))
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	return &SMTPDelivery{
		config:    cfg,
		appName:   appName,
		sender:    sender,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func clientOptions(cfg *config.MailConfig) []mail.Option {
	opts := []mail.Option{mail.WithPort(cfg.Port)}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	return opts
}

// BuildMessage renders the code email without sending it.
func (d *SMTPDelivery) BuildMessage(email, code string, expiresAt time.Time) (*mail.Msg, error) {
	message := mail.NewMsg()

	if d.config.FromName != "" {
		if err := message.FromFormat(d.config.FromName, d.config.FromAddress); err != nil {
			return nil, fmt.Errorf("failed to set FROM address: %w", err)
		}
	} else if err := message.From(d.config.FromAddress); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	if err := message.To(email); err != nil {
		return nil, fmt.Errorf("failed to set TO address: %w", err)
	}

	message.Subject(fmt.Sprintf("Your %s sign-in code", d.appName))

	data := CodeData{
		AppName:          d.appName,
		Email:            email,
		Code:             code,
		ExpiresAt:        expiresAt,
		ExpiresInMinutes: int(math.Ceil(expiresAt.Sub(d.now()).Minutes())),
	}

	if err := message.SetBodyHTMLTemplate(d.templates.html, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML body: %w", err)
	}
	if err := message.AddAlternativeTextTemplate(d.templates.text, data); err != nil {
		return nil, fmt.Errorf("failed to render text body: %w", err)
	}

	return message, nil
}

func (d *SMTPDelivery) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	message, err := d.BuildMessage(email, code, expiresAt)
	if err != nil {
		d.logger.Error("failed to build code email", zap.String("email", email), zap.Error(err))
		return err
	}

	start := time.Now()
	if err := d.sender.DialAndSendWithContext(ctx, message); err != nil {
		d.logger.Error("failed to send code email",
			zap.String("email", email),
			zap.Duration("attempt_duration", time.Since(start)),
			zap.Error(err))
		return err
	}

	d.logger.Info("code email sent",
		zap.String("email", email),
		zap.Duration("send_duration", time.Since(start)))
	return nil
}

// LogDelivery writes codes to the log instead of sending them. It exists for
// local development only.
type LogDelivery struct {
	logger *logging.Service
}

func NewLogDelivery(logger *logging.Service) *LogDelivery {
	return &LogDelivery{logger: logger}
}

func (d *LogDelivery) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	d.logger.Warn("code delivery is using the log driver",
		zap.String("email", email),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt))
	return nil
}
