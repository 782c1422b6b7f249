package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// AdminHandler handles the admin dashboard and account management routes.
// All routes require the admin role, enforced at the router.
type AdminHandler struct {
	adminService     services.IAdminService
	userService      services.IUserService
	quotationService services.IQuotationService
	templates        *services.EmailTemplateService
	notifier         services.Notifier
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService services.IAdminService, userService services.IUserService, quotationService services.IQuotationService, templates *services.EmailTemplateService, notifier services.Notifier) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		userService:      userService,
		quotationService: quotationService,
		templates:        templates,
		notifier:         notifier,
	}
}

// Dashboard handles GET /v1/admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUsers handles GET /v1/admin/users?role=&status=&search=&page=&limit=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	users, total, err := h.userService.ListUsers(c.Request.Context(), services.UserListFilter{
		Role:   models.UserRole(c.Query("role")),
		Status: models.UserStatus(c.Query("status")),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
}

// GetUser handles GET /v1/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, err)
		return
	}
	user.PasswordHash = ""
	c.JSON(http.StatusOK, user)
}

// ListEnquiries handles GET /v1/admin/enquiries?status=&page=&limit=
func (h *AdminHandler) ListEnquiries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	enquiries, total, err := h.adminService.ListEnquiries(c.Request.Context(),
		models.EnquiryStatus(c.Query("status")), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enquiries": enquiries, "total": total})
}

// ListQuotations handles GET /v1/admin/quotations?page=&limit=
func (h *AdminHandler) ListQuotations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	quotations, total, err := h.adminService.ListQuotations(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotations": quotations, "total": total})
}

// GetQuotation handles GET /v1/admin/quotations/:id
func (h *AdminHandler) GetQuotation(c *gin.Context) {
	quotationID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quotation ID format"})
		return
	}
	ctx := c.Request.Context()
	quotation, err := h.quotationService.FindByID(ctx, quotationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quotation not found"})
			return
		}
		respondError(c, err)
		return
	}
	items, err := h.quotationService.GetItems(ctx, quotationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotation": quotation, "items": items})
}

// ListConversations handles GET /v1/admin/conversations
func (h *AdminHandler) ListConversations(c *gin.Context) {
	conversations, err := h.adminService.ListConversations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

type userStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

// SetUserStatus handles POST /v1/admin/users/:id/status
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	userID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.userService.SetUserStatus(ctx, userID, adminID, req.Status); err != nil {
		respondError(c, err)
		return
	}

	// Tell the affected user, best-effort.
	if user, err := h.userService.FindByID(ctx, userID); err == nil && user.EmailVerified {
		if err := h.notifier.SendTemplate(ctx, user.Email, "account_status", map[string]interface{}{
			"name":   user.Name,
			"status": string(req.Status),
		}); err != nil {
			log.Printf("Failed to enqueue account status email for %s: %v", userID.String(), err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type sellerVerifyRequest struct {
	Verified bool `json:"verified"`
}

// SetSellerVerified handles POST /v1/admin/users/:id/verify: marks a seller
// as company-checked. Verifying also activates a pending account.
func (h *AdminHandler) SetSellerVerified(c *gin.Context) {
	userID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}
	var req sellerVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.userService.SetSellerVerified(c.Request.Context(), userID, req.Verified); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": req.Verified})
}

// SaveEmailTemplate handles PUT /v1/admin/email-templates
func (h *AdminHandler) SaveEmailTemplate(c *gin.Context) {
	var template models.EmailTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if template.TemplateID == "" || template.Locale == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id and locale are required"})
		return
	}
	if err := h.templates.SaveTemplate(c.Request.Context(), &template); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// DeleteEmailTemplate handles DELETE /v1/admin/email-templates/:template_id/:locale
func (h *AdminHandler) DeleteEmailTemplate(c *gin.Context) {
	if err := h.templates.DeleteTemplate(c.Request.Context(), c.Param("template_id"), c.Param("locale")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
