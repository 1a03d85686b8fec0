package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/services"
)

const maxImageSize = 5 << 20

func GetProfile(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		profile, err := u.GetProfile(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(profile, ""))
	}
}

func GetPublicProfile(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := helpers.StringTrim(c.Param("username"))
		if username == "" {
			badRequest(c, "username is required")
			return
		}

		profile, err := u.GetPublicProfile(c.Request.Context(), username)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(profile, ""))
	}
}

// UpdateAvatar expects a multipart "image" file.
func UpdateAvatar(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		file, header, err := c.Request.FormFile("image")
		if err != nil {
			badRequest(c, "image file is required")
			return
		}
		defer file.Close()
		if header.Size > maxImageSize {
			badRequest(c, "image must be 5MB or smaller")
			return
		}

		updated, err := u.UpdateAvatar(c.Request.Context(), user, file)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(updated, "Avatar updated successfully"))
	}
}
