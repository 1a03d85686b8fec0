package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/container"
	"github.com/joshua-takyi/eventify/internal/handlers"
	"github.com/joshua-takyi/eventify/internal/middleware"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     c.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(c.Logger))
	r.Use(middleware.Metrics(c.Monitor))
	r.Use(middleware.ErrorHandler(c.Logger))
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"status":    "OK",
				"service":   "eventify-api",
				"providers": c.Gateways.Providers(),
			})
		})

		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", handlers.Register(c.UserService))
			authRoutes.POST("/login", handlers.Login(c.UserService))
			authRoutes.POST("/refresh", handlers.Refresh(c.UserService))
			authRoutes.POST("/logout", handlers.Logout())
			authRoutes.POST("/google", handlers.GoogleLogin(c.UserService))
			authRoutes.POST("/otp", handlers.SendOTP(c.UserService))
			authRoutes.POST("/reset-password", handlers.ResetPassword(c.UserService))
		}

		v1.GET("/events", handlers.ListEvents(c.EventService))
		v1.GET("/events/:id", handlers.GetEvent(c.EventService))
		v1.GET("/users/:username", handlers.GetPublicProfile(c.UserService))
		v1.POST("/payments/jazzcash/callback", handlers.JazzCashCallback(c.BookingService))
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(c.UserService, c.Logger))
	{
		protected.GET("/me", handlers.GetProfile(c.UserService))
		protected.POST("/me/avatar", handlers.UpdateAvatar(c.UserService))
		protected.POST("/auth/change-password", handlers.ChangePassword(c.UserService))
	}

	eventRoutes := protected.Group("/events")
	{
		eventRoutes.POST("", handlers.CreateEvent(c.EventService))
		eventRoutes.PATCH("/:id", handlers.UpdateEvent(c.EventService))
		eventRoutes.PATCH("/:id/cancel", handlers.CancelEvent(c.EventService))
		eventRoutes.DELETE("/:id", handlers.DeleteEvent(c.EventService))
		eventRoutes.GET("/organizer/:id", handlers.ListOrganizerEvents(c.EventService))
	}

	ticketRoutes := protected.Group("/tickets")
	{
		ticketRoutes.POST("/book", handlers.BookTicket(c.BookingService))
		ticketRoutes.GET("/mine", handlers.ListMyTickets(c.TicketRegistry))
		ticketRoutes.GET("/count", handlers.CountTickets(c.TicketRegistry))
		ticketRoutes.GET("/event/:eventId", handlers.ListEventTickets(c.TicketRegistry))
		ticketRoutes.GET("/:id", handlers.GetTicket(c.TicketRegistry))
		ticketRoutes.POST("/:id/cancel", handlers.CancelTicket(c.BookingService))
		ticketRoutes.POST("/:id/refund", handlers.RefundTicket(c.BookingService))
		ticketRoutes.POST("/:id/verify", handlers.VerifyTicket(c.BookingService))
	}

	paymentRoutes := protected.Group("/payments")
	{
		paymentRoutes.POST("/initiate", handlers.InitiatePayment(c.BookingService))
		paymentRoutes.GET("/stripe/verify", handlers.VerifyStripePayment(c.BookingService))
		paymentRoutes.GET("/:id", handlers.GetPayment(c.PaymentService))
	}

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(middleware.RequireRole(models.RoleAdmin))
	{
		adminRoutes.GET("/payments/reconciliation", handlers.ListReconciliation(c.PaymentService))
	}

	return r
}
