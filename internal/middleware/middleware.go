package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/auth"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/monitoring"
)

const (
	ContextUserKey    = "user"
	ContextAccountKey = "account"

	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	refreshCookieAge   = 3600 * 24 * 30
)

// Authenticator resolves tokens to stored users.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *helpers.CustomClaims, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error)
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")

		logger.Info("HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler logs errors attached with c.Error and answers 500 if nothing was written.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":    false,
				"error":      "Internal server error",
				"request_id": requestID,
			})
		}
	}
}

// Metrics records request counts and latency per route template.
func Metrics(monitor *monitoring.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitor.TrackHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// AuthMiddleware accepts a bearer token or the access_token cookie. When the
// cookie session has expired it is renewed from the refresh_token cookie.
func AuthMiddleware(authn Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := bearerToken(c)
		if token == "" {
			unauthorized(c, "access token not found")
			return
		}

		ctx := c.Request.Context()
		user, claims, err := authn.Authenticate(ctx, token)
		if err != nil && fromCookie && models.KindOf(err) == models.KindUnauthorized {
			refreshToken, cookieErr := c.Cookie(RefreshTokenCookie)
			if cookieErr != nil || refreshToken == "" {
				unauthorized(c, err.Error())
				return
			}

			tokens, refreshErr := authn.Refresh(ctx, refreshToken)
			if refreshErr != nil {
				logger.Info("Token refresh failed", "error", refreshErr)
				unauthorized(c, "token expired and refresh failed")
				return
			}
			SetAuthCookies(c, tokens)
			user, claims, err = authn.Authenticate(ctx, tokens.AccessToken)
		}
		if err != nil {
			if models.KindOf(err) == models.KindUnauthorized {
				unauthorized(c, err.Error())
				return
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, &helpers.EnhancedClaims{
			CustomClaims: claims,
			UserID:       user.ID.Hex(),
			Role:         string(user.Role),
			Email:        user.Email,
			Username:     user.Username,
			Name:         user.Name,
		})
		c.Set(ContextAccountKey, user)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			unauthorized(c, "authentication required")
			return
		}
		for _, role := range roles {
			if claims.HasRole(string(role)) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, models.AppErrorResponse(models.ErrForbidden, "insufficient role"))
	}
}

// Claims returns the principal set by AuthMiddleware.
func Claims(c *gin.Context) (*helpers.EnhancedClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*helpers.EnhancedClaims)
	return claims, ok
}

// CurrentUser returns the stored user resolved by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextAccountKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

func SetAuthCookies(c *gin.Context, tokens *auth.Tokens) {
	secure := isProduction()
	c.SetCookie(AccessTokenCookie, tokens.AccessToken, tokens.ExpiresIn, "/", "", secure, true)

	maxAge := tokens.RefreshExpiresIn
	if maxAge <= 0 {
		maxAge = refreshCookieAge
	}
	c.SetCookie(RefreshTokenCookie, tokens.RefreshToken, maxAge, "/", "", secure, true)
}

func ClearAuthCookies(c *gin.Context) {
	secure := isProduction()
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token), false
		}
	}
	token, err := c.Cookie(AccessTokenCookie)
	if err != nil {
		return "", false
	}
	return token, true
}

func unauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.AppErrorResponse(models.ErrUnauthorized, reason))
}

func isProduction() bool {
	return os.Getenv("ENVIRONMENT") == "production"
}
