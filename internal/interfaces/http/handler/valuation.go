package handler

import (
	"context"
	"time"

	valuationapp "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/interfaces/http/dto"
	"github.com/erp/valuation/internal/interfaces/http/middleware"
	"github.com/erp/valuation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ValuationService is the part of valuationapp.ValuationService the API needs
type ValuationService interface {
	RemoveStock(ctx context.Context, req valuationapp.RemoveStockRequest) (*valuationapp.RemoveStockResponse, error)
	ReceiveStock(ctx context.Context, req valuationapp.ReceiveStockRequest) (*valuationapp.ReceiveStockResponse, error)
	PostFinancial(ctx context.Context, req valuationapp.PostFinancialRequest) (*valuationapp.LedgerEntryResponse, error)
	CurrentBalance(ctx context.Context, ownerID, productID uuid.UUID) (*valuationapp.BalanceResponse, error)
	ListLayers(ctx context.Context, ownerID, productID uuid.UUID, activeOnly bool) ([]valuationapp.CostLayerResponse, error)
	ListLedger(ctx context.Context, ownerID, productID uuid.UUID, filter shared.Filter) (*shared.Paginated[valuationapp.LedgerEntryResponse], error)
	ValuationReport(ctx context.Context, ownerID, productID uuid.UUID) (*valuationapp.ValuationReportResponse, error)
}

// BackfillRunner creates opening layers for stocked products
type BackfillRunner interface {
	Backfill(ctx context.Context, opts valuationapp.BackfillOptions) (*valuationapp.BackfillResult, error)
}

// Reconciler audits one product's ledger chain against its layers
type Reconciler interface {
	Reconcile(ctx context.Context, ownerID, productID uuid.UUID) (*valuationapp.ReconciliationReport, error)
}

// ValuationHandler serves the cost layer and ledger endpoints
type ValuationHandler struct {
	BaseHandler
	service    ValuationService
	backfill   BackfillRunner
	reconciler Reconciler
}

// NewValuationHandler creates a new ValuationHandler
func NewValuationHandler(service ValuationService, backfill BackfillRunner, reconciler Reconciler) *ValuationHandler {
	return &ValuationHandler{
		service:    service,
		backfill:   backfill,
		reconciler: reconciler,
	}
}

// ReceiveStockRequest brings stock in as a new cost layer
type ReceiveStockRequest struct {
	Quantity    int64   `json:"quantity" binding:"required,gt=0"`
	UnitCost    int64   `json:"unit_cost" binding:"gte=0"`
	AcquiredAt  *string `json:"acquired_at" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EntryType   string  `json:"entry_type" binding:"omitempty,oneof=stock_in adjustment return"`
	StoreID     *string `json:"store_id" binding:"omitempty,uuid"`
	OrderID     *string `json:"order_id" binding:"omitempty,uuid"`
	Reference   string  `json:"reference" binding:"max=100"`
	Description string  `json:"description" binding:"max=500"`
}

// RemoveStockRequest draws stock out through FIFO allocation
type RemoveStockRequest struct {
	Quantity    int64   `json:"quantity" binding:"required,gt=0"`
	EventKind   string  `json:"event_kind" binding:"required,event_kind"`
	EventID     string  `json:"event_id" binding:"required,nonnil_uuid"`
	StoreID     *string `json:"store_id" binding:"omitempty,uuid"`
	OrderID     *string `json:"order_id" binding:"omitempty,uuid"`
	Reference   string  `json:"reference" binding:"max=100"`
	Description string  `json:"description" binding:"max=500"`
}

// PostFinancialRequest records a sale or an expense. Expenses carry a negative amount.
type PostFinancialRequest struct {
	ProductID   *string `json:"product_id" binding:"omitempty,uuid"`
	Type        string  `json:"type" binding:"required,entry_category=financial"`
	Amount      int64   `json:"amount" binding:"required,ne=0"`
	StoreID     *string `json:"store_id" binding:"omitempty,uuid"`
	OrderID     *string `json:"order_id" binding:"omitempty,uuid"`
	Reference   string  `json:"reference" binding:"max=100"`
	Description string  `json:"description" binding:"max=500"`
}

// BackfillRequest runs the opening-layer backfill for the calling owner
type BackfillRequest struct {
	DryRun bool `json:"dry_run"`
}

// ListLayersQuery filters the layer listing
type ListLayersQuery struct {
	Active bool `form:"active"`
}

// Routes returns the /valuation route group
func (h *ValuationHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("valuation", "/valuation")
	g.Use(middleware.RequireOwner(), middleware.SpanAttributes())

	g.GET("/balance", h.OwnerBalance)
	g.GET("/ledger", h.OwnerLedger)
	g.POST("/financial-entries", h.PostFinancial)
	g.POST("/backfill", h.Backfill)

	products := g.Group("products", "/products/:product_id")
	products.POST("/receipts", h.ReceiveStock)
	products.POST("/removals", h.RemoveStock)
	products.GET("/balance", h.ProductBalance)
	products.GET("/layers", h.ListLayers)
	products.GET("/ledger", h.ProductLedger)
	products.GET("/report", h.Report)
	products.GET("/reconciliation", h.Reconcile)

	return g
}

// ReceiveStock handles POST /valuation/products/:product_id/receipts
func (h *ValuationHandler) ReceiveStock(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}

	var req ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	appReq := valuationapp.ReceiveStockRequest{
		OwnerID:     ownerID,
		ProductID:   productID,
		StoreID:     parseOptionalUUID(req.StoreID),
		OrderID:     parseOptionalUUID(req.OrderID),
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		EntryType:   valuation.EntryType(req.EntryType),
		Reference:   req.Reference,
		Description: req.Description,
	}
	if req.AcquiredAt != nil {
		acquiredAt, err := time.Parse(time.RFC3339, *req.AcquiredAt)
		if err != nil {
			h.BadRequest(c, "Invalid acquired_at, expected RFC3339")
			return
		}
		appReq.AcquiredAt = acquiredAt
	}

	resp, err := h.service.ReceiveStock(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RemoveStock handles POST /valuation/products/:product_id/removals
func (h *ValuationHandler) RemoveStock(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}

	var req RemoveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	event, err := valuation.ParseConsumingEvent(req.EventKind, uuid.MustParse(req.EventID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.service.RemoveStock(c.Request.Context(), valuationapp.RemoveStockRequest{
		OwnerID:     ownerID,
		ProductID:   productID,
		StoreID:     parseOptionalUUID(req.StoreID),
		OrderID:     parseOptionalUUID(req.OrderID),
		Quantity:    req.Quantity,
		Event:       event,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// PostFinancial handles POST /valuation/financial-entries
func (h *ValuationHandler) PostFinancial(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req PostFinancialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	var productID uuid.UUID
	if id := parseOptionalUUID(req.ProductID); id != nil {
		productID = *id
	}

	resp, err := h.service.PostFinancial(c.Request.Context(), valuationapp.PostFinancialRequest{
		OwnerID:     ownerID,
		ProductID:   productID,
		StoreID:     parseOptionalUUID(req.StoreID),
		OrderID:     parseOptionalUUID(req.OrderID),
		Type:        valuation.EntryType(req.Type),
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// OwnerBalance handles GET /valuation/balance
func (h *ValuationHandler) OwnerBalance(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	h.balance(c, ownerID, uuid.Nil)
}

// ProductBalance handles GET /valuation/products/:product_id/balance
func (h *ValuationHandler) ProductBalance(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}
	h.balance(c, ownerID, productID)
}

func (h *ValuationHandler) balance(c *gin.Context, ownerID, productID uuid.UUID) {
	resp, err := h.service.CurrentBalance(c.Request.Context(), ownerID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListLayers handles GET /valuation/products/:product_id/layers
func (h *ValuationHandler) ListLayers(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}

	var query ListLayersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	layers, err := h.service.ListLayers(c.Request.Context(), ownerID, productID, query.Active)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, layers)
}

// OwnerLedger handles GET /valuation/ledger
func (h *ValuationHandler) OwnerLedger(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	h.ledger(c, ownerID, uuid.Nil)
}

// ProductLedger handles GET /valuation/products/:product_id/ledger
func (h *ValuationHandler) ProductLedger(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}
	h.ledger(c, ownerID, productID)
}

func (h *ValuationHandler) ledger(c *gin.Context, ownerID, productID uuid.UUID) {
	query := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.service.ListLedger(c.Request.Context(), ownerID, productID, shared.Filter{
		Page:     query.Page,
		PageSize: query.PageSize,
		OrderDir: query.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Report handles GET /valuation/products/:product_id/report
func (h *ValuationHandler) Report(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}

	resp, err := h.service.ValuationReport(c.Request.Context(), ownerID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reconcile handles GET /valuation/products/:product_id/reconciliation
func (h *ValuationHandler) Reconcile(c *gin.Context) {
	ownerID, productID, ok := h.scope(c)
	if !ok {
		return
	}

	report, err := h.reconciler.Reconcile(c.Request.Context(), ownerID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"report":     report,
		"consistent": report.Consistent(),
	})
}

// Backfill handles POST /valuation/backfill. It only touches the caller's products.
func (h *ValuationHandler) Backfill(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req BackfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	result, err := h.backfill.Backfill(c.Request.Context(), valuationapp.BackfillOptions{
		DryRun:  req.DryRun,
		OwnerID: &ownerID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// scope resolves the owner and the :product_id path parameter, writing a 400 on failure
func (h *ValuationHandler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil || productID == uuid.Nil {
		h.BadRequest(c, "Invalid product ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, productID, true
}

// parseOptionalUUID converts a validated optional UUID string
func parseOptionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}
