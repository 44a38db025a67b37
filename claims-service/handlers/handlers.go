package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cashbus/claims"
	"cashbus/compensation"
	"cashbus/config"
	"cashbus/email"
	"cashbus/escalation"
	"cashbus/models"
	"cashbus/timeline"
)

// Handlers holds the claims service handler dependencies.
type Handlers struct {
	service   *claims.Service
	timelines *timeline.Store
	sender    email.Sender
	config    *config.Config
}

// New creates the handler set.
func New(service *claims.Service, timelines *timeline.Store, sender email.Sender, cfg *config.Config) *Handlers {
	return &Handlers{
		service:   service,
		timelines: timelines,
		sender:    sender,
		config:    cfg,
	}
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "claims-service"})
}

// CreateIncident validates and records a reported service failure.
func (h *Handlers) CreateIncident(c *gin.Context) {
	var req struct {
		Kind              string   `json:"kind" binding:"required"`
		LineNumber        string   `json:"line_number" binding:"required"`
		StationName       string   `json:"station_name" binding:"required"`
		OperatorID        string   `json:"operator_id" binding:"required"`
		ScheduledAt       string   `json:"scheduled_at" binding:"required"`
		ObservedAt        string   `json:"observed_at"`
		DelayMinutes      int      `json:"delay_minutes"`
		DamageType        string   `json:"damage_type"`
		DamageAmount      string   `json:"damage_amount"`
		DamageDescription string   `json:"damage_description"`
		ReporterName      string   `json:"reporter_name" binding:"required"`
		ReporterEmail     string   `json:"reporter_email" binding:"required,email"`
		ReporterLocation  string   `json:"reporter_location"`
		GPSAccuracy       *float64 `json:"gps_accuracy"`
		PresenceVerdict   *string  `json:"presence_verdict"`
		ReceiptCount      int      `json:"receipt_count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "scheduled_at must be RFC3339"})
		return
	}
	var observedAt *time.Time
	if req.ObservedAt != "" {
		ts, err := time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "observed_at must be RFC3339"})
			return
		}
		observedAt = &ts
	}

	damageAmount := decimal.Zero
	if req.DamageAmount != "" {
		damageAmount, err = decimal.NewFromString(req.DamageAmount)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "damage_amount must be a decimal number"})
			return
		}
	}

	inc := &models.Incident{
		Kind:              req.Kind,
		LineNumber:        req.LineNumber,
		StationName:       req.StationName,
		OperatorID:        req.OperatorID,
		ScheduledAt:       scheduledAt,
		ObservedAt:        observedAt,
		DelayMinutes:      req.DelayMinutes,
		DamageType:        req.DamageType,
		DamageAmount:      damageAmount,
		DamageDescription: req.DamageDescription,
		ReporterName:      req.ReporterName,
		ReporterEmail:     req.ReporterEmail,
		ReporterLocation:  req.ReporterLocation,
		GPSAccuracy:       req.GPSAccuracy,
		PresenceVerdict:   req.PresenceVerdict,
		ReceiptCount:      req.ReceiptCount,
	}
	if err := h.service.CreateIncident(c.Request.Context(), inc); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	// Preview of the statutory amount; the binding computation happens at
	// claim creation.
	breakdown, err := compensation.Calculate(compensation.Input{
		Kind:         inc.Kind,
		DelayMinutes: inc.DelayMinutes,
		DamageType:   inc.DamageType,
		DamageAmount: inc.DamageAmount,
		OperatorID:   inc.OperatorID,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"incident": inc, "compensation": breakdown})
}

// CreateClaim aggregates incidents into a claim, locks the amount, sends
// the initial demand letter and seeds the escalation timeline.
func (h *Handlers) CreateClaim(c *gin.Context) {
	var req struct {
		IncidentIDs []string `json:"incident_ids" binding:"required"`
		OperatorID  string   `json:"operator_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	claim, err := h.service.CreateClaim(c.Request.Context(), req.IncidentIDs, req.OperatorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.sendInitialLetter(c, claim.ID); err != nil {
		// The claim exists but the demand letter did not go out; the
		// timeline is not seeded so POST /claims/:id/send can retry.
		c.JSON(http.StatusBadGateway, gin.H{
			"claim": claim,
			"error": "claim created but demand letter not sent: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"claim": claim})
}

// SendInitialLetter (re)tries the initial demand letter for a claim whose
// timeline was never seeded.
func (h *Handlers) SendInitialLetter(c *gin.Context) {
	claimID := c.Param("id")
	if _, err := h.timelines.Get(c.Request.Context(), claimID); err == nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "demand letter already sent"})
		return
	}
	if err := h.sendInitialLetter(c, claimID); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "demand letter sent"})
}

func (h *Handlers) sendInitialLetter(c *gin.Context, claimID string) error {
	ctx := c.Request.Context()
	bundle, err := h.service.GetClaimBundle(ctx, claimID)
	if err != nil {
		return err
	}

	data := escalation.LetterData{
		ClaimID:      bundle.Claim.ID,
		OperatorName: bundle.Operator.DisplayName,
		Amount:       bundle.Claim.Amount,
		ReporterName: bundle.ReporterName,
	}
	if len(bundle.Incidents) > 0 {
		data.LineNumber = bundle.Incidents[0].LineNumber
		data.StationName = bundle.Incidents[0].StationName
	}
	letter := escalation.RenderInitialLetter(data)

	result := h.sender.Send(ctx, bundle.RecipientEmail, letter.Subject, letter.TextBody, letter.HTMLBody)
	if !result.Succeeded {
		return result.Err
	}

	// Day 0 starts only after delivery is confirmed.
	if err := h.timelines.Seed(ctx, claimID, time.Now()); err != nil {
		return err
	}
	log.Infof("Initial demand letter for claim %s sent to %s", claimID, bundle.RecipientEmail)
	return nil
}

// GetClaim returns a claim with its incidents and escalation timeline.
func (h *Handlers) GetClaim(c *gin.Context) {
	claimID := c.Param("id")
	bundle, err := h.service.GetClaimBundle(c.Request.Context(), claimID)
	if err != nil {
		if errors.Is(err, claims.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	resp := gin.H{"claim": bundle.Claim, "incidents": bundle.Incidents}
	if t, err := h.timelines.Get(c.Request.Context(), claimID); err == nil {
		resp["timeline"] = t
	}
	c.JSON(http.StatusOK, resp)
}

// ResolveClaim records an admin resolution. The timeline resolution takes
// effect on the very next scheduler run.
func (h *Handlers) ResolveClaim(c *gin.Context) {
	claimID := c.Param("id")
	var req struct {
		Resolution string `json:"resolution" binding:"required,oneof=paid cancelled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.resolve(c, claimID, req.Resolution); err != nil {
		if errors.Is(err, claims.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "claim resolved as " + req.Resolution})
}

func (h *Handlers) resolve(c *gin.Context, claimID, resolution string) error {
	ctx := c.Request.Context()

	claimStatus := models.ClaimPaid
	timelineStatus := models.TimelinePaid
	if resolution == "cancelled" {
		claimStatus = models.ClaimRejected
		timelineStatus = models.TimelineCancelled
	}

	if err := h.service.ResolveClaim(ctx, claimID, claimStatus); err != nil {
		return err
	}
	if err := h.timelines.MarkResolved(ctx, claimID, timelineStatus); err != nil {
		if errors.Is(err, timeline.ErrConflict) {
			// No active timeline (never seeded or already terminal);
			// the claim resolution still stands.
			log.Warnf("Claim %s resolved with no active timeline", claimID)
			return nil
		}
		return err
	}
	return nil
}
