package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventify/internal/middleware"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict, models.KindReconciliationRequired:
		return http.StatusConflict
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindInvalid:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes domain errors with their kind and code. Anything else is
// attached to the context for ErrorHandler to log and answer with a 500.
func respondError(c *gin.Context, err error) {
	appErr, ok := models.AsAppError(err)
	if !ok {
		_ = c.Error(err)
		return
	}
	message := err.Error()
	if appErr.Kind == models.KindUpstreamFailure {
		// collaborator details stay in the logs
		_ = c.Error(err)
		message = appErr.Message
	}
	c.JSON(StatusFor(appErr.Kind), models.AppErrorResponse(appErr, message))
}

// optionalJSON binds a body the client may omit. An empty body, chunked or
// not, leaves dst untouched.
func optionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.AppErrorResponse(models.ErrInvalidInput, message))
}

// respondOK adds the warning of a best-effort side effect when there is one.
func respondOK(c *gin.Context, status int, data interface{}, message, warning string) {
	if warning != "" {
		c.JSON(status, models.WarningResponse(data, message, warning))
		return
	}
	c.JSON(status, models.SuccessResponse(data, message))
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	raw := strings.Trim(strings.TrimSpace(c.Param(name)), "\"'")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		badRequest(c, "invalid "+name+" format")
		return primitive.NilObjectID, false
	}
	return id, true
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.AppErrorResponse(models.ErrUnauthorized, "unauthorized"))
		return nil, false
	}
	return user, true
}

func viewerOf(user *models.User) services.Viewer {
	return services.Viewer{UserID: user.ID, IsAdmin: user.Role == models.RoleAdmin}
}

func pageParams(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		badRequest(c, "invalid page parameter")
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageLimit)))
	if err != nil || limit < 1 {
		badRequest(c, "invalid limit parameter")
		return 0, 0, false
	}
	page, limit, _ = models.NormalizePage(page, limit)
	return page, limit, true
}
