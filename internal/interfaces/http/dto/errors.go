package dto

import "net/http"

// API error codes, ERR_<CATEGORY>[_<DETAIL>]
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
	ErrCodeBadRequest         = "ERR_BAD_REQUEST"
	ErrCodeNotFound           = "ERR_NOT_FOUND"

	// ErrCodeInsufficientCostLayers: active layers cannot cover a removal
	ErrCodeInsufficientCostLayers = "ERR_INSUFFICIENT_COST_LAYERS"
	// ErrCodeContention: the product stayed locked past the retry budget
	ErrCodeContention = "ERR_CONTENTION"
	// ErrCodeInvariantViolation: stored layers or ledger rows are corrupt
	ErrCodeInvariantViolation = "ERR_INVARIANT_VIOLATION"
)

var statusByCode = map[string]int{
	ErrCodeInternal:               http.StatusInternalServerError,
	ErrCodeValidation:             http.StatusBadRequest,
	ErrCodeValidationRequired:     http.StatusBadRequest,
	ErrCodeValidationRange:        http.StatusBadRequest,
	ErrCodeBadRequest:             http.StatusBadRequest,
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeInsufficientCostLayers: http.StatusUnprocessableEntity,
	ErrCodeContention:             http.StatusConflict,
	ErrCodeInvariantViolation:     http.StatusInternalServerError,
}

// domain error code -> API error code
var apiCodeByDomainCode = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"INSUFFICIENT_COST_LAYERS": ErrCodeInsufficientCostLayers,
	"CONTENTION":               ErrCodeContention,
	"INVARIANT_VIOLATION":      ErrCodeInvariantViolation,
	"INVALID_QUANTITY":         ErrCodeValidationRange,
	"INVALID_UNIT_COST":        ErrCodeValidationRange,
	"INVALID_REFERENCE":        ErrCodeValidationRange,
	"INVALID_CONSUMING_EVENT":  ErrCodeValidation,
	"INVALID_LEDGER_ENTRY":     ErrCodeValidation,
	"INVALID_COST_POLICY":      ErrCodeValidation,
	"INVALID_OWNER":            ErrCodeValidationRequired,
	"INVALID_PRODUCT":          ErrCodeValidationRequired,
}

// HTTPStatus returns the status an API error code is served with, 500 for
// codes it does not know.
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APICode maps a domain error code to its API code. API codes and unknown
// codes pass through.
func APICode(code string) string {
	if api, ok := apiCodeByDomainCode[code]; ok {
		return api
	}
	return code
}
