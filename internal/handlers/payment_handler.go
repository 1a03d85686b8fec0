package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/gateway"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InitiatePayment starts a paid booking and returns where the client must pay.
func InitiatePayment(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			EventID       string `json:"event_id" binding:"required"`
			PaymentMethod string `json:"payment_method" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "event_id and payment_method are required")
			return
		}
		eventID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.EventID))
		if err != nil {
			badRequest(c, "invalid event_id format")
			return
		}

		res, err := b.InitiatePaidBooking(c.Request.Context(), eventID, user, strings.TrimSpace(req.PaymentMethod))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(res, "Payment initiated"))
	}
}

// VerifyStripePayment pulls the checkout session the client returned from.
func VerifyStripePayment(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		sessionID := strings.TrimSpace(c.Query("session_id"))
		if sessionID == "" {
			badRequest(c, "session_id is required")
			return
		}

		viewer := viewerOf(user)
		res, err := b.ConfirmPayment(c.Request.Context(), services.ConfirmRequest{
			Provider: models.PaymentMethodStripe,
			Report:   gateway.Report{SessionID: sessionID},
			Viewer:   &viewer,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, res, confirmMessage(res), res.Warning)
	}
}

// JazzCashCallback receives the signed pp_* fields as a form post or JSON.
func JazzCashCallback(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields, err := callbackFields(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := b.ConfirmPayment(c.Request.Context(), services.ConfirmRequest{
			Provider: models.PaymentMethodJazzCash,
			Report:   gateway.Report{Fields: fields},
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, res, confirmMessage(res), res.Warning)
	}
}

func GetPayment(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		payment, err := p.Get(c.Request.Context(), id, viewerOf(user))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(payment, ""))
	}
}

// ListReconciliation lists completed payments that could not get a ticket.
func ListReconciliation(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		payments, total, err := p.ListReconciliation(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(payments, page, limit, total))
	}
}

func confirmMessage(res *services.BookingResult) string {
	if res.Ticket != nil {
		return "Payment confirmed and ticket issued"
	}
	return "Payment status recorded"
}

func callbackFields(c *gin.Context) (map[string]string, error) {
	fields := map[string]string{}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var raw map[string]interface{}
		if err := c.ShouldBindJSON(&raw); err != nil {
			return nil, fmt.Errorf("invalid callback payload")
		}
		return gateway.FlattenFields(raw), nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid callback form")
	}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("callback carried no fields")
	}
	return fields, nil
}
