package mail

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/otp"
	"go.uber.org/fx"
)

var ErrLogDeliveryOutsideDevelopment = errors.New("log delivery writes sign-in codes to the log and requires APP_ENV=development")

func ProvideDelivery(cfg *config.Config, logger *logging.Service) (otp.Delivery, error) {
	switch cfg.Mail.Driver {
	case "smtp":
		return NewSMTPDelivery(&cfg.Mail, cfg.App.Name, logger)
	case "log":
		if !cfg.App.IsDevelopment() {
			return nil, ErrLogDeliveryOutsideDevelopment
		}
		return NewLogDelivery(logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver: %q", cfg.Mail.Driver)
	}
}

var Module = fx.Options(
	fx.Provide(ProvideDelivery),
)
