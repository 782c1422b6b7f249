package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// EnquiryHandler handles enquiry submission and the buyer/seller views of it.
type EnquiryHandler struct {
	enquiryService services.IEnquiryService
}

// NewEnquiryHandler creates a new EnquiryHandler.
func NewEnquiryHandler(enquiryService services.IEnquiryService) *EnquiryHandler {
	return &EnquiryHandler{enquiryService: enquiryService}
}

// Create handles POST /v1/enquiry: the public anonymous entry point.
func (h *EnquiryHandler) Create(c *gin.Context) {
	var input services.CreateEnquiryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.enquiryService.CreateEnquiry(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListMine handles GET /v1/enquiries: the buyer's own enquiries.
func (h *EnquiryHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	enquiries, err := h.enquiryService.ListForBuyer(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enquiries": enquiries})
}

// ListReceived handles GET /v1/enquiries/received: the seller's inbox.
func (h *EnquiryHandler) ListReceived(c *gin.Context) {
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	enquiries, err := h.enquiryService.ListReceived(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enquiries": enquiries})
}

// GetDetails handles GET /v1/enquiries/:id
func (h *EnquiryHandler) GetDetails(c *gin.Context) {
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

	detail, err := h.enquiryService.GetDetails(c.Request.Context(), enquiryID, callerID, middleware.CallerRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type respondRequest struct {
	Status models.MappingStatus `json:"status" binding:"required"`
}

// Respond handles POST /v1/enquiries/:id/respond: a seller accepting or
// rejecting an enquiry sent to them. The decision can be changed later.
func (h *EnquiryHandler) Respond(c *gin.Context) {
	enquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enquiry ID format"})
		return
	}
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.enquiryService.RespondToEnquiry(c.Request.Context(), enquiryID, sellerID, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
