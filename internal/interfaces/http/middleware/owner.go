package middleware

import (
	"errors"
	"net/http"

	"github.com/erp/valuation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OwnerIDHeader carries the owner every valuation request is scoped to
const OwnerIDHeader = "X-Owner-ID"

// OwnerIDKey is the gin context key holding the parsed owner ID
const OwnerIDKey = "owner_id"

var errMissingOwner = errors.New("missing owner")

// RequireOwner rejects requests without a valid owner header and stores the
// parsed owner ID for handlers.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := parseOwnerHeader(c)
		if err != nil {
			msg := "Invalid " + OwnerIDHeader + " header"
			if errors.Is(err, errMissingOwner) {
				msg = OwnerIDHeader + " header is required"
			}
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, msg, getRequestID(c)))
			return
		}
		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// GetOwnerID returns the owner stored by RequireOwner
func GetOwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(OwnerIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func parseOwnerHeader(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader(OwnerIDHeader)
	if raw == "" {
		return uuid.Nil, errMissingOwner
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, errMissingOwner
	}
	return id, nil
}
