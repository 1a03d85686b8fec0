package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/middleware"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/services"
)

func Register(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RegisterInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		user, err := u.Register(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(user, "Account created successfully"))
	}
}

// Login accepts an email or a username. Tokens are set as http-only cookies
// and also returned for clients that send a bearer header.
func Login(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier" binding:"required"`
			Password   string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}

		session, err := u.Login(c.Request.Context(), req.Identifier, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.SetAuthCookies(c, session.Tokens)
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"user": session.User, "tokens": session.Tokens}, "Signed in successfully"))
	}
}

func GoogleLogin(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			IDToken string `json:"id_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "id_token is required")
			return
		}

		session, err := u.GoogleLogin(c.Request.Context(), req.IDToken)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.SetAuthCookies(c, session.Tokens)
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"user": session.User, "tokens": session.Tokens}, "Signed in successfully"))
	}
}

// Refresh renews the session from the refresh_token cookie or the request body.
func Refresh(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		refreshToken, _ := c.Cookie(middleware.RefreshTokenCookie)
		if refreshToken == "" {
			var req struct {
				RefreshToken string `json:"refresh_token"`
			}
			_ = c.ShouldBindJSON(&req)
			refreshToken = req.RefreshToken
		}

		tokens, err := u.Refresh(c.Request.Context(), refreshToken)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.SetAuthCookies(c, tokens)
		c.JSON(http.StatusOK, models.SuccessResponse(tokens, ""))
	}
}

func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearAuthCookies(c)
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Logged out successfully"))
	}
}

// SendOTP answers the same way whether or not the address is registered.
// The code only ever travels by email.
func SendOTP(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email is required")
			return
		}

		if err := u.SendOTP(c.Request.Context(), req.Email); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "If the email is registered, a verification code has been sent"))
	}
}

func ResetPassword(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email       string `json:"email" binding:"required"`
			OTP         string `json:"otp" binding:"required"`
			NewPassword string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email, otp and new_password are required")
			return
		}

		if err := u.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Password reset successfully"))
	}
}

func ChangePassword(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			OldPassword string `json:"old_password" binding:"required"`
			NewPassword string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "old_password and new_password are required")
			return
		}

		if err := u.ChangePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Password changed successfully"))
	}
}
