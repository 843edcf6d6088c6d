package bootstrap

import (
	"github.com/wolfman30/career-coach/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// BuildWhatsAppClient creates the Cloud API sender. Without credentials the
// client still exists but every send fails with errs.ErrNotInitialized.
func BuildWhatsAppClient(cfg *appconfig.Config, logger *logging.Logger) *whatsapp.Client {
	client := whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneID)
	if cfg.GraphAPIURL != "" {
		client.SetGraphAPIBase(cfg.GraphAPIURL)
	}
	if !client.Ready() && logger != nil {
		logger.Warn("whatsapp credentials missing; replies disabled",
			"phone_id_set", cfg.WhatsAppPhoneID != "",
			"access_token_set", cfg.WhatsAppAccessToken != "",
		)
	}
	return client
}
