package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/services"
)

// bindWithImage reads either a JSON body or a multipart form carrying the JSON
// in an "event" field and an optional "image" file.
func bindWithImage(c *gin.Context, dst interface{}) (io.ReadCloser, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(dst); err != nil {
			badRequest(c, err.Error())
			return nil, false
		}
		return nil, true
	}

	if err := json.Unmarshal([]byte(c.PostForm("event")), dst); err != nil {
		badRequest(c, "event field must be valid JSON")
		return nil, false
	}

	file, header, err := c.Request.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, true
	}
	if err != nil {
		badRequest(c, "invalid image upload")
		return nil, false
	}
	if header.Size > maxImageSize {
		file.Close()
		badRequest(c, "image must be 5MB or smaller")
		return nil, false
	}
	return file, true
}

func CreateEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var event models.Event
		image, ok := bindWithImage(c, &event)
		if !ok {
			return
		}

		var reader io.Reader
		if image != nil {
			defer image.Close()
			reader = image
		}

		created, err := e.CreateEvent(c.Request.Context(), user, &event, reader)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(created, "Event created successfully"))
	}
}

func GetEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		event, err := e.GetEvent(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, ""))
	}
}

// ListEvents lists public events. Query: category, when (upcoming|past), page, limit.
func ListEvents(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		events, total, err := e.ListEvents(c.Request.Context(), models.EventFilter{
			Category: strings.ToLower(strings.TrimSpace(c.Query("category"))),
			When:     strings.ToLower(strings.TrimSpace(c.Query("when"))),
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(events, page, limit, total))
	}
}

func ListOrganizerEvents(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		organizerID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		events, total, err := e.ListByOrganizer(c.Request.Context(), organizerID, viewerOf(user), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(events, page, limit, total))
	}
}

func UpdateEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		var update models.EventUpdate
		image, ok := bindWithImage(c, &update)
		if !ok {
			return
		}

		var reader io.Reader
		if image != nil {
			defer image.Close()
			reader = image
		}

		updated, err := e.UpdateEvent(c.Request.Context(), id, viewerOf(user), update, reader)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(updated, "Event updated successfully"))
	}
}

func CancelEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		cancelled, err := e.CancelEvent(c.Request.Context(), id, viewerOf(user))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(cancelled, "Event cancelled successfully"))
	}
}

func DeleteEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}

		if err := e.DeleteEvent(c.Request.Context(), id, viewerOf(user)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Event deleted successfully"))
	}
}
