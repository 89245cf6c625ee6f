// Package middleware provides HTTP middleware for the valuation API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps request IDs taken from the header
const MaxRequestIDLength = 128

const (
	attrRequestID = attribute.Key("request_id")
	attrOwnerID   = attribute.Key("owner_id")
)

type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing starts a server span per request named "METHOD route", e.g.
// "POST /api/v1/valuation/products/:product_id/removals". Disabled, it is a
// pass-through.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes tags the request span with the request and owner IDs.
// It must run inside Tracing; after RequireOwner it uses the parsed owner.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			var attrs []attribute.KeyValue
			if id := getRequestID(c); id != "" {
				attrs = append(attrs, attrRequestID.String(id))
			}
			if id, ok := GetOwnerID(c); ok {
				attrs = append(attrs, attrOwnerID.String(id.String()))
			} else if id, err := parseOwnerHeader(c); err == nil {
				attrs = append(attrs, attrOwnerID.String(id.String()))
			}
			span.SetAttributes(attrs...)
		}
		c.Next()
	}
}

// SpanStatus marks the span as failed for every 4xx and 5xx response, so
// shortfalls (422) and contention (409) show up as errors too.
func SpanStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		span := trace.SpanFromContext(c.Request.Context())
		if status < http.StatusBadRequest || !span.IsRecording() {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

// getRequestID returns the ID set by the logging middleware, or the raw
// header cut to MaxRequestIDLength
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	id := c.GetHeader(RequestIDKey)
	if len(id) > MaxRequestIDLength {
		id = id[:MaxRequestIDLength]
	}
	return id
}
