package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// QuotationHandler handles seller quotations and per-item negotiation.
type QuotationHandler struct {
	quotationService services.IQuotationService
}

// NewQuotationHandler creates a new QuotationHandler.
func NewQuotationHandler(quotationService services.IQuotationService) *QuotationHandler {
	return &QuotationHandler{quotationService: quotationService}
}

type createQuotationRequest struct {
	EnquiryID string                        `json:"enquiry_id" binding:"required"`
	Notes     string                        `json:"notes"`
	Items     []services.QuotationItemInput `json:"items" binding:"required"`
}

// Create handles POST /v1/quotations (seller only).
func (h *QuotationHandler) Create(c *gin.Context) {
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	enquiryID, err := utils.ParseSixID(req.EnquiryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enquiry ID format"})
		return
	}

	result, err := h.quotationService.Create(c.Request.Context(), enquiryID, sellerID, req.Items, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListByEnquiry handles GET /v1/enquiries/:id/quotations
func (h *QuotationHandler) ListByEnquiry(c *gin.Context) {
	enquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enquiry ID format"})
		return
	}
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	quotations, err := h.quotationService.ListByEnquiry(c.Request.Context(), enquiryID, callerID, middleware.CallerRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotations": quotations})
}

// ListMine handles GET /v1/quotations: the seller's submitted quotations.
func (h *QuotationHandler) ListMine(c *gin.Context) {
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	quotations, err := h.quotationService.ListBySeller(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotations": quotations})
}

type itemStatusRequest struct {
	Status models.QuotationItemStatus `json:"status" binding:"required"`
}

// UpdateItemStatus handles POST /v1/quotation-items/:id/status
func (h *QuotationHandler) UpdateItemStatus(c *gin.Context) {
	itemID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID format"})
		return
	}
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req itemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.quotationService.UpdateItemStatus(c.Request.Context(), itemID, callerID, middleware.CallerRole(c), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// EditItem handles PATCH /v1/quotation-items/:id (seller only). Omitted
// fields keep their values; provided fields are applied, zeros included.
func (h *QuotationHandler) EditItem(c *gin.Context) {
	itemID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID format"})
		return
	}
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var patch models.QuotationItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	item, err := h.quotationService.EditItem(c.Request.Context(), itemID, sellerID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}
