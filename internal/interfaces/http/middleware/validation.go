package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RequestIDKey is the context key (and header) for the request ID
const RequestIDKey = "X-Request-ID"

// Valuation binding tags:
//
//	event_kind          order_line or adjustment
//	entry_category=X    a known ledger entry type in category X (inventory, financial)
//	nonnil_uuid         a UUID other than 00000000-0000-0000-0000-000000000000
var valuationValidators = map[string]validator.Func{
	"event_kind": func(fl validator.FieldLevel) bool {
		return valuation.ConsumingEventKind(fl.Field().String()).IsValid()
	},
	"entry_category": func(fl validator.FieldLevel) bool {
		t := valuation.EntryType(fl.Field().String())
		return t.IsValid() && string(t.Category()) == fl.Param()
	},
	"nonnil_uuid": func(fl validator.FieldLevel) bool {
		id, err := uuid.Parse(fl.Field().String())
		return err == nil && id != uuid.Nil
	},
}

// SetupValidator registers the valuation tags on gin's validator and makes
// errors report JSON (or form) field names.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
	for tag, fn := range valuationValidators {
		// only fails on an empty tag or nil func
		_ = v.RegisterValidation(tag, fn)
	}
}

func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// FormatValidationErrors turns a binding error into the standard error body.
// Malformed JSON and type mismatches yield one detail without a field.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{
				Field:   fe.Field(),
				Message: getValidationMessage(fe),
			})
		}
	case err != nil:
		details = []dto.ValidationDetail{{Message: err.Error()}}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, getRequestID(c)))
}

var fixedMessages = map[string]string{
	"required":    "This field is required",
	"uuid":        "Invalid UUID format",
	"nonnil_uuid": "Must be a non-nil UUID",
	"event_kind":  "Must be order_line or adjustment",
	"datetime":    "Must be an RFC3339 timestamp",
}

var boundMessages = map[string]string{
	"oneof":          "Must be one of: ",
	"gte":            "Must be greater than or equal to ",
	"lte":            "Must be less than or equal to ",
	"gt":             "Must be greater than ",
	"lt":             "Must be less than ",
	"ne":             "Must not be ",
	"entry_category": "Must be a ledger entry type of category ",
}

func getValidationMessage(fe validator.FieldError) string {
	tag := fe.Tag()
	if msg, ok := fixedMessages[tag]; ok {
		return msg
	}
	if prefix, ok := boundMessages[tag]; ok {
		return prefix + fe.Param()
	}
	if tag == "min" || tag == "max" {
		bound := "at least "
		if tag == "max" {
			bound = "at most "
		}
		if fe.Kind() == reflect.String {
			return "Must be " + bound + fe.Param() + " characters"
		}
		return "Must be " + bound + fe.Param()
	}
	return "Invalid value"
}
