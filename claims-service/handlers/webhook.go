package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"cashbus/models"
)

// StripeWebhook processes payment confirmations from Stripe. An operator
// paying a claim through the hosted payment link resolves the claim and
// permanently stops its escalation.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read payload"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.config.StripeWebhookSecret)
	if err != nil {
		log.WithError(err).Warn("Stripe webhook signature verification failed")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid signature"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "malformed checkout session"})
			return
		}
		claimID := session.ClientReferenceID
		if claimID == "" {
			claimID = session.Metadata["claim_id"]
		}
		if claimID == "" {
			log.Warnf("Stripe event %s carries no claim reference", event.ID)
			c.JSON(http.StatusOK, models.MessageResponse{Message: "ignored"})
			return
		}
		if err := h.resolve(c, claimID, "paid"); err != nil {
			log.WithError(err).Errorf("Failed to resolve claim %s from Stripe event %s", claimID, event.ID)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve claim"})
			return
		}
		log.Infof("Claim %s marked paid via Stripe event %s", claimID, event.ID)
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "malformed payment intent"})
			return
		}
		claimID := intent.Metadata["claim_id"]
		if claimID == "" {
			log.Warnf("Stripe event %s carries no claim reference", event.ID)
			c.JSON(http.StatusOK, models.MessageResponse{Message: "ignored"})
			return
		}
		if err := h.resolve(c, claimID, "paid"); err != nil {
			log.WithError(err).Errorf("Failed to resolve claim %s from Stripe event %s", claimID, event.ID)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve claim"})
			return
		}
		log.Infof("Claim %s marked paid via Stripe event %s", claimID, event.ID)
	default:
		log.Infof("Ignoring Stripe event type %s", event.Type)
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "processed"})
}
