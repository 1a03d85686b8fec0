package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookTicket books a free event. Paid events go through /payments/initiate.
func BookTicket(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			EventID string `json:"event_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "event_id is required")
			return
		}
		eventID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.EventID))
		if err != nil {
			badRequest(c, "invalid event_id format")
			return
		}

		res, err := b.BookFree(c.Request.Context(), eventID, user)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, res.Ticket, "Ticket booked successfully", res.Warning)
	}
}

func CancelTicket(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		ticket, err := b.CancelTicket(c.Request.Context(), id, user)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(ticket, "Ticket cancelled successfully"))
	}
}

func RefundTicket(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		if !optionalJSON(c, &req) {
			return
		}

		ticket, err := b.RefundTicket(c.Request.Context(), id, user, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(ticket, "Ticket refunded successfully"))
	}
}

// VerifyTicket checks an attendee in. Only the event organizer may call it.
func VerifyTicket(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		ticket, err := b.VerifyTicket(c.Request.Context(), id, user)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(ticket, "Ticket verified successfully"))
	}
}

func GetTicket(r *services.TicketRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		ticket, err := r.Get(c.Request.Context(), id, viewerOf(user))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(ticket, ""))
	}
}

func ListMyTickets(r *services.TicketRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		tickets, total, err := r.ListMine(c.Request.Context(), user.ID, c.Query("status"), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(tickets, page, limit, total))
	}
}

func ListEventTickets(r *services.TicketRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		eventID, ok := objectIDParam(c, "eventId")
		if !ok {
			return
		}
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		tickets, total, err := r.ListForEvent(c.Request.Context(), eventID, viewerOf(user), c.Query("status"), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(tickets, page, limit, total))
	}
}

// CountTickets takes the optional query parameters event, status and mine.
func CountTickets(r *services.TicketRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		query := services.TicketCount{Status: strings.TrimSpace(c.Query("status"))}
		if raw := strings.TrimSpace(c.Query("event")); raw != "" {
			eventID, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				badRequest(c, "invalid event format")
				return
			}
			query.EventID = &eventID
		}
		if raw := c.Query("mine"); raw != "" {
			mine, err := strconv.ParseBool(raw)
			if err != nil {
				badRequest(c, "mine must be true or false")
				return
			}
			query.Mine = mine
		}

		count, err := r.Count(c.Request.Context(), query, viewerOf(user))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"count": count}, ""))
	}
}
