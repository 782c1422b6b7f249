package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// CatalogHandler serves product types and seller capability configuration.
type CatalogHandler struct {
	productTypes services.IProductTypeService
	capabilities services.ICapabilityService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(productTypes services.IProductTypeService, capabilities services.ICapabilityService) *CatalogHandler {
	return &CatalogHandler{
		productTypes: productTypes,
		capabilities: capabilities,
	}
}

// ListProductTypes handles GET /v1/product-types: the standard catalogue.
func (h *CatalogHandler) ListProductTypes(c *gin.Context) {
	types, err := h.productTypes.ListStandard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_types": types})
}

// ListMyProductTypes handles GET /v1/product-types/mine: standard plus the
// caller's own custom entries.
func (h *CatalogHandler) ListMyProductTypes(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	types, err := h.productTypes.ListForBuyer(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_types": types})
}

type createProductTypeRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateProductType handles POST /v1/product-types: a buyer-scoped custom
// part name, for parts the standard catalogue does not cover.
func (h *CatalogHandler) CreateProductType(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	var req createProductTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	productType, err := h.productTypes.CreateCustom(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, productType)
}

// GetCapabilities handles GET /v1/capabilities (seller only).
func (h *CatalogHandler) GetCapabilities(c *gin.Context) {
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	capabilities, err := h.capabilities.ListForSeller(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": capabilities})
}

type setCapabilitiesRequest struct {
	ProductTypeIDs []string `json:"product_type_ids" binding:"required"`
}

// SetCapabilities handles PUT /v1/capabilities (seller only): replaces the
// seller's capability set with the given product types.
func (h *CatalogHandler) SetCapabilities(c *gin.Context) {
	sellerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req setCapabilitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ids := make([]utils.SixID, 0, len(req.ProductTypeIDs))
	for _, idStr := range req.ProductTypeIDs {
		id, err := utils.ParseSixID(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product type ID: " + idStr})
			return
		}
		ids = append(ids, id)
	}

	if err := h.capabilities.SetCapabilities(c.Request.Context(), sellerID, ids); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ids)})
}
