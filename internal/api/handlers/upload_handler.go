package handlers

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/storage"
	"github.com/pratik860s/Autopart-Backend/internal/tasks"
)

// maxDirectUploadBytes caps pass-through uploads; bigger files must go
// through the presigned flow.
const maxDirectUploadBytes = 10 << 20

// Upload scopes group objects in the bucket by what references them.
var allowedUploadScopes = map[string]bool{
	"enquiries": true,
	"chat":      true,
	"profiles":  true,
}

// UploadHandler issues pre-signed S3 PUT URLs and queues post-processing.
type UploadHandler struct {
	storage    storage.IS3Storage
	taskClient *asynq.Client
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(storage storage.IS3Storage, taskClient *asynq.Client) *UploadHandler {
	return &UploadHandler{
		storage:    storage,
		taskClient: taskClient,
	}
}

type presignRequest struct {
	Scope       string `json:"scope" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// Presign handles POST /v1/uploads: returns a URL the client PUTs the file
// to directly, plus the key to reference in the owning document.
func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !allowedUploadScopes[req.Scope] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown upload scope"})
		return
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are accepted"})
		return
	}

	url, key, err := h.storage.GeneratePresignedPutURL(c.Request.Context(), userID.String(), req.Scope, req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

// Direct handles POST /v1/uploads/direct: multipart pass-through upload for
// clients that cannot PUT to S3 themselves (the chat widget, mainly).
func (h *UploadHandler) Direct(c *gin.Context) {
	if _, ok := middleware.CallerID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	scope := c.PostForm("scope")
	if !allowedUploadScopes[scope] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown upload scope"})
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	if fileHeader.Size > maxDirectUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are accepted"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}

	key, url, err := h.storage.Upload(c.Request.Context(), scope, fileHeader.Filename, contentType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.taskClient != nil {
		if err := tasks.EnqueueImageProcess(c.Request.Context(), h.taskClient, key); err != nil {
			log.Printf("Failed to enqueue image processing for %s: %v", key, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

type confirmUploadRequest struct {
	Key string `json:"key" binding:"required"`
}

// Confirm handles POST /v1/uploads/confirm: called after the client PUT
// succeeds, queues normalization of the object.
func (h *UploadHandler) Confirm(c *gin.Context) {
	if _, ok := middleware.CallerID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req confirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if h.taskClient != nil {
		if err := tasks.EnqueueImageProcess(c.Request.Context(), h.taskClient, req.Key); err != nil {
			// Processing is an optimization, the upload itself succeeded.
			log.Printf("Failed to enqueue image processing for %s: %v", req.Key, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "url": h.storage.PublicURL(req.Key)})
}
