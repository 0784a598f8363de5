package handlers

import (
	"context"

	"portal/internal/logging"
	"portal/internal/services/invoice"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const headerStripeSignature = "Stripe-Signature"

// WebhookReceiver verifies and applies one provider callback.
type WebhookReceiver interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	stripe  WebhookReceiver
	mercury WebhookReceiver
}

func NewWebhookHandler(stripe, mercury WebhookReceiver) *WebhookHandler {
	return &WebhookHandler{stripe: stripe, mercury: mercury}
}

func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	return h.receive(c, "stripe", h.stripe, c.Get(headerStripeSignature))
}

func (h *WebhookHandler) Mercury(c *fiber.Ctx) error {
	return h.receive(c, "mercury", h.mercury, c.Get(invoice.SignatureHeader))
}

// receive copies the body before handing it off; fasthttp reuses the buffer.
func (h *WebhookHandler) receive(c *fiber.Ctx, provider string, r WebhookReceiver, sig string) error {
	if r == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	payload := append([]byte(nil), c.Body()...)
	if err := r.HandleWebhook(c.UserContext(), payload, sig); err != nil {
		logging.FromFiber(c).Warn("webhook rejected", zap.String("provider", provider), zap.Error(err))
		return utils.Fail(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
