package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/awacs/annotate/internal/config"
	"github.com/awacs/annotate/pkg/response"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Get handles GET /api/config: a redacted view of the runtime setup so
// the dashboard can show what the service is wired against.
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	clientID := h.cfg.DBAPI.ClientID
	if len(clientID) > 8 {
		clientID = clientID[:8] + "..."
	}

	return response.OK(c, fiber.Map{
		"api_keys_count":      len(h.cfg.Classifier.APIKeys),
		"model":               h.cfg.Classifier.Model,
		"rate_limit_rpm":      h.cfg.Classifier.RateLimitRPM,
		"dually_verification": h.cfg.Annotate.DuallyVerification,
		"db_api_configured":   h.cfg.DBAPI.Configured(),
		"db_api_client_id":    clientID,
		"db_api_grant_type":   h.cfg.DBAPI.GrantType,
	})
}
