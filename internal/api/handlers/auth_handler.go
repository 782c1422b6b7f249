package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/auth"
	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
)

// AuthHandler handles registration, login and linked-action account flows.
type AuthHandler struct {
	cfg           *config.Config
	userService   services.IUserService
	linkedActions services.ILinkedActionService
	notifier      services.Notifier
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, userService services.IUserService, linkedActions services.ILinkedActionService, notifier services.Notifier) *AuthHandler {
	return &AuthHandler{
		cfg:           cfg,
		userService:   userService,
		linkedActions: linkedActions,
		notifier:      notifier,
	}
}

type registerRequest struct {
	Name     string          `json:"name" binding:"required"`
	Email    string          `json:"email" binding:"required,email"`
	Phone    string          `json:"phone"`
	Password string          `json:"password" binding:"required,min=8"`
	Role     models.UserRole `json:"role" binding:"required"`
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.Role != models.RoleBuyer && req.Role != models.RoleSeller {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be buyer or seller"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
			return
		}
		respondError(c, err)
		return
	}

	// Email verification link, delivered out of band.
	if action, err := h.linkedActions.CreateVerifyEmailAction(c.Request.Context(), user.ID); err != nil {
		log.Printf("Failed to create verify-email action for %s: %v", user.ID.String(), err)
	} else if err := h.notifier.SendTemplate(c.Request.Context(), user.Email, "verify_email", map[string]interface{}{
		"name":      user.Name,
		"action_id": action.ID.String(),
	}); err != nil {
		log.Printf("Failed to enqueue verify-email for %s: %v", user.ID.String(), err)
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		respondError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

type setupAccountRequest struct {
	ActionID string `json:"action_id" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// SetupAccount handles POST /v1/auth/setup-account: an auto-created buyer
// claims their account by setting a password through the emailed link.
func (h *AuthHandler) SetupAccount(c *gin.Context) {
	var req setupAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	action, err := h.linkedActions.FindAndValidateAction(ctx, req.ActionID, models.ActionSetupAccount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired link"})
		return
	}
	if err := h.linkedActions.MarkActionExecuted(ctx, action.ID); err != nil {
		// Lost the race with a concurrent redemption.
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired link"})
		return
	}
	if err := h.userService.SetUserCredentials(ctx, action.UserID, req.Password); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.userService.FindByID(ctx, action.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

type actionRequest struct {
	ActionID string `json:"action_id" binding:"required"`
}

// VerifyEmail handles POST /v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	action, err := h.linkedActions.FindAndValidateAction(ctx, req.ActionID, models.ActionVerifyEmail)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired link"})
		return
	}
	if err := h.linkedActions.MarkActionExecuted(ctx, action.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired link"})
		return
	}
	if err := h.userService.MarkEmailVerified(ctx, action.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestPasswordReset handles POST /v1/auth/password-reset/request.
// Responds identically whether or not the email exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.userService.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Password reset lookup failed for %s: %v", req.Email, err)
		}
		c.JSON(http.StatusOK, gin.H{"sent": true})
		return
	}

	if action, err := h.linkedActions.CreatePasswordResetAction(ctx, user.ID); err != nil {
		log.Printf("Failed to create password reset action for %s: %v", user.ID.String(), err)
	} else if err := h.notifier.SendTemplate(ctx, user.Email, "password_reset", map[string]interface{}{
		"name":      user.Name,
		"action_id": action.ID.String(),
	}); err != nil {
		log.Printf("Failed to enqueue password reset email for %s: %v", user.ID.String(), err)
	}

	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// VerifyResetToken handles GET /v1/auth/password-reset/:action_id: lets the
// frontend check a reset link before showing the new-password form. Read-only:
// the action stays unexecuted until the reset completes.
func (h *AuthHandler) VerifyResetToken(c *gin.Context) {
	_, err := h.linkedActions.FindAndValidateAction(c.Request.Context(), c.Param("action_id"), models.ActionPasswordReset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "Invalid or expired link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

type completePasswordResetRequest struct {
	ActionID string `json:"action_id" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// CompletePasswordReset handles POST /v1/auth/password-reset
func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req completePasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	action, err := h.linkedActions.FindAndValidateAction(ctx, req.ActionID, models.ActionPasswordReset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired link"})
		return
	}
	if err := h.linkedActions.MarkActionExecuted(ctx, action.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired link"})
		return
	}
	if err := h.userService.SetUserCredentials(ctx, action.UserID, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// GetProfile handles GET /v1/me
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
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
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type updateProfileRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	ProfileImage string `json:"profile_image"`
}

// UpdateProfile handles PUT /v1/me
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.userService.UpdateProfile(c.Request.Context(), userID, req.Name, req.Phone, req.ProfileImage); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// CompleteSellerSignup handles PUT /v1/me/company
func (h *AuthHandler) CompleteSellerSignup(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	var company models.CompanyDetails
	if err := c.ShouldBindJSON(&company); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if company.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Company name is required"})
		return
	}
	if err := h.userService.CompleteSellerSignup(c.Request.Context(), userID, company); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
