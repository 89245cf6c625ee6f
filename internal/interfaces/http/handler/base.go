package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/interfaces/http/dto"
	"github.com/erp/valuation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = middleware.RequestIDKey

// DefaultRetryAfter is advertised on contention responses
const DefaultRetryAfter = time.Second

// BaseHandler holds the response helpers shared by the handlers
type BaseHandler struct {
	// RetryAfter is sent with 409 contention responses; zero means DefaultRetryAfter
	RetryAfter time.Duration
}

// getRequestID prefers the ID set by the request logger over the raw header
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

var errNoOwner = errors.New("owner ID not found in context")

// getOwnerID returns the owner resolved by middleware.RequireOwner
func getOwnerID(c *gin.Context) (uuid.UUID, error) {
	if id, ok := middleware.GetOwnerID(c); ok {
		return id, nil
	}
	return uuid.Nil, errNoOwner
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeBadRequest, message, getRequestID(c)))
}

func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest,
		dto.NewValidationErrorResponse("Request validation failed", getRequestID(c), details))
}

// HandleError records err on the context and writes its error response.
// Invariant violations and unknown errors expose only a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var contention *valuation.ContentionError
	if errors.As(err, &contention) {
		c.Header("Retry-After", strconv.Itoa(h.retryAfterSeconds()))
	}
	status, body := errorResponse(err, getRequestID(c))
	c.JSON(status, body)
}

func errorResponse(err error, requestID string) (int, dto.Response) {
	var (
		shortfall  *valuation.InsufficientCostLayersError
		contention *valuation.ContentionError
		violation  *valuation.InvariantViolationError
		domainErr  *shared.DomainError
	)
	switch {
	case errors.As(err, &shortfall):
		requested, available := shortfall.Requested, shortfall.Available
		return http.StatusUnprocessableEntity, dto.NewErrorResponse(
			dto.ErrCodeInsufficientCostLayers, valuation.ErrInsufficientCostLayers.Message, requestID,
			dto.ValidationDetail{
				Field:     "quantity",
				Message:   "Exceeds the remaining quantity of active cost layers",
				Requested: &requested,
				Available: &available,
			})
	case errors.As(err, &contention):
		return http.StatusConflict,
			dto.NewErrorResponse(dto.ErrCodeContention, valuation.ErrContention.Message, requestID)
	case errors.As(err, &violation):
		return http.StatusInternalServerError,
			dto.NewErrorResponse(dto.ErrCodeInvariantViolation, valuation.ErrInvariantViolation.Message, requestID)
	case errors.As(err, &domainErr):
		code := dto.APICode(domainErr.Code)
		return dto.HTTPStatus(code), dto.NewErrorResponse(code, domainErr.Message, requestID)
	default:
		return http.StatusInternalServerError,
			dto.NewErrorResponse(dto.ErrCodeInternal, "An unexpected error occurred", requestID)
	}
}

// retryAfterSeconds rounds up to whole seconds, at least one
func (h *BaseHandler) retryAfterSeconds() int {
	d := h.RetryAfter
	if d <= 0 {
		d = DefaultRetryAfter
	}
	return max(1, int((d+time.Second-1)/time.Second))
}
