package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// FeedbackHandler handles support/feedback tickets.
type FeedbackHandler struct {
	feedbackService services.IFeedbackService
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedbackService services.IFeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

type submitFeedbackRequest struct {
	Subject string `json:"subject" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Submit handles POST /v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	thread, err := h.feedbackService.Submit(c.Request.Context(), userID, req.Subject, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

type replyRequest struct {
	Content string `json:"content" binding:"required"`
}

// Reply handles POST /v1/feedback/:id/reply
func (h *FeedbackHandler) Reply(c *gin.Context) {
	feedbackID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket ID format"})
		return
	}
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	message, err := h.feedbackService.Reply(c.Request.Context(), feedbackID, userID, middleware.CallerRole(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": message})
}

// Thread handles GET /v1/feedback/:id
func (h *FeedbackHandler) Thread(c *gin.Context) {
	feedbackID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket ID format"})
		return
	}
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	thread, err := h.feedbackService.Thread(c.Request.Context(), feedbackID, userID, middleware.CallerRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// ListMine handles GET /v1/feedback
func (h *FeedbackHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	tickets, err := h.feedbackService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// ListAll handles GET /v1/admin/feedback?status=&page=&limit=
func (h *FeedbackHandler) ListAll(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	status := models.FeedbackStatus(c.Query("status"))

	tickets, total, err := h.feedbackService.ListAll(c.Request.Context(), status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "total": total})
}

type ticketStatusRequest struct {
	Status models.FeedbackStatus `json:"status" binding:"required"`
}

// UpdateStatus handles POST /v1/admin/feedback/:id/status
func (h *FeedbackHandler) UpdateStatus(c *gin.Context) {
	feedbackID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket ID format"})
		return
	}
	var req ticketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.feedbackService.UpdateStatus(c.Request.Context(), feedbackID, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
