package dto

import "time"

// DefaultPageSize is used when a list request carries no usable page size
const DefaultPageSize = 20

// Response is the envelope of every API reply
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes the problem with one request field. Requested
// and Available are set for quantity shortfalls.
type ValidationDetail struct {
	Field     string `json:"field"`
	Message   string `json:"message"`
	Requested *int64 `json:"requested,omitempty"`
	Available *int64 `json:"available,omitempty"`
}

type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta adds paging metadata; a non-positive page size
// counts as DefaultPageSize.
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
}

// NewErrorResponse builds an error envelope. Domain codes are translated
// with APICode.
func NewErrorResponse(code, message, requestID string, details ...ValidationDetail) Response {
	return Response{
		Error: &ErrorInfo{
			Code:      APICode(code),
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now(),
			Details:   details,
		},
	}
}

// NewValidationErrorResponse is NewErrorResponse with ErrCodeValidation
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return NewErrorResponse(ErrCodeValidation, message, requestID, details...)
}

// ListRequest binds the paging query parameters
type ListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func DefaultListRequest() ListRequest {
	return ListRequest{Page: 1, PageSize: DefaultPageSize, OrderDir: "asc"}
}
