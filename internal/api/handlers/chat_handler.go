package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/chat"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// ChatHandler serves the websocket relay plus the REST history endpoints.
type ChatHandler struct {
	chatService services.IChatService
	registry    chat.Registry
	upgrader    websocket.Upgrader
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService services.IChatService, registry chat.Registry) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		registry:    registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the CORS layer on the upgrade request.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsInbound is the frame a connected client sends to deliver a message.
type wsInbound struct {
	ReceiverID string   `json:"receiver_id"`
	Content    string   `json:"content"`
	Images     []string `json:"images,omitempty"`
}

// Connect handles GET /v1/chat/ws: upgrades to a websocket, registers the
// connection and pumps inbound frames through the chat service.
func (h *ChatHandler) Connect(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for %s: %v", userID.String(), err)
		return
	}

	// Writes race with relay sends from other requests, so everything
	// written here goes through the registry client, never the raw conn.
	client := h.registry.Register(userID, conn)
	defer func() {
		h.registry.Unregister(userID, client)
		conn.Close()
	}()

	for {
		var frame wsInbound
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Websocket read error for %s: %v", userID.String(), err)
			}
			return
		}

		receiverID, err := utils.ParseSixID(frame.ReceiverID)
		if err != nil {
			_ = client.WriteJSON(gin.H{"error": "Invalid receiver ID"})
			continue
		}

		msg, err := h.chatService.SaveMessage(c.Request.Context(), userID, receiverID, frame.Content, frame.Images)
		if err != nil {
			_ = client.WriteJSON(gin.H{"error": err.Error()})
			continue
		}
		// Echo back so the sender sees the stored message with its id.
		_ = client.WriteJSON(msg)
	}
}

type sendMessageRequest struct {
	ReceiverID string   `json:"receiver_id" binding:"required"`
	Content    string   `json:"content"`
	Images     []string `json:"images"`
}

// Send handles POST /v1/chat/messages: the REST fallback for clients
// without an open websocket.
func (h *ChatHandler) Send(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	receiverID, err := utils.ParseSixID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid receiver ID format"})
		return
	}

	msg, err := h.chatService.SaveMessage(c.Request.Context(), userID, receiverID, req.Content, req.Images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// History handles GET /v1/chat/rooms/:room_id/messages
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	limit := int64(0)
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, _ = strconv.ParseInt(limitStr, 10, 64)
	}

	messages, err := h.chatService.History(c.Request.Context(), c.Param("room_id"), userID, middleware.CallerRole(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Sidebar handles GET /v1/chat/rooms: the caller's conversation list.
func (h *ChatHandler) Sidebar(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	contacts, err := h.chatService.Sidebar(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": contacts})
}
