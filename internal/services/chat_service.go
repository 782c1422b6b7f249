package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
	"github.com/pratik860s/Autopart-Backend/internal/chat"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// ChatContact is one entry in a user's conversation sidebar.
type ChatContact struct {
	RoomID      string         `json:"room_id"`
	Peer        models.User    `json:"peer"`
	LastMessage models.Message `json:"last_message"`
}

// IChatService persists and relays buyer/seller messages.
type IChatService interface {
	// SaveMessage stores the message and relays it to the receiver's live
	// connections when any exist. The write always happens first; a
	// recipient being offline is not an error.
	SaveMessage(ctx context.Context, senderID, receiverID utils.SixID, content string, images []string) (*models.Message, error)
	// History returns the room's messages in chronological order. Only the
	// two participants (or an admin) may read it.
	History(ctx context.Context, roomID string, callerID utils.SixID, callerRole models.UserRole, limit int64) ([]models.Message, error)
	// Sidebar lists the caller's conversations, most recent first.
	Sidebar(ctx context.Context, userID utils.SixID) ([]ChatContact, error)
}

// chatService implements IChatService.
type chatService struct {
	db          *mongo.Database
	userService IUserService
	registry    chat.Registry
	notifier    Notifier
}

// NewChatService creates a new ChatService.
func NewChatService(database *mongo.Database, userService IUserService, registry chat.Registry, notifier Notifier) IChatService {
	return &chatService{
		db:          database,
		userService: userService,
		registry:    registry,
		notifier:    notifier,
	}
}

func (s *chatService) SaveMessage(ctx context.Context, senderID, receiverID utils.SixID, content string, images []string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(images) == 0 {
		return nil, apperr.Validation("message must carry text or images")
	}
	if senderID == receiverID {
		return nil, apperr.Validation("cannot message yourself")
	}

	receiver, err := s.userService.FindByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("recipient not found")
		}
		return nil, apperr.Internal(err, "failed to load recipient")
	}

	msg := &models.Message{
		RoomID:     models.ChatRoomID(senderID, receiverID),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Images:     images,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollMessages), msg); err != nil {
		return nil, apperr.Internal(err, "failed to store message")
	}

	// Relay after the write so a delivered message is always also stored.
	if delivered := s.registry.Send(receiverID, msg); delivered == 0 {
		s.notifyOffline(ctx, receiver, senderID)
	}

	return msg, nil
}

// notifyOffline emails a recipient with no live connection, subject to
// their preferences.
func (s *chatService) notifyOffline(ctx context.Context, receiver *models.User, senderID utils.SixID) {
	if !receiver.EmailVerified {
		return
	}
	// Absent preferences mean the defaults, which include chat alerts.
	if prefs := receiver.NotificationPreferences; prefs != nil && !prefs.ChatMessage {
		return
	}
	sender, err := s.userService.FindByID(ctx, senderID)
	if err != nil {
		log.Printf("Failed to load sender %s for chat notification: %v", senderID.String(), err)
		return
	}
	if err := s.notifier.SendTemplate(ctx, receiver.Email, "chat_message", map[string]interface{}{
		"name":        receiver.Name,
		"sender_name": sender.Name,
	}); err != nil {
		log.Printf("Failed to enqueue chat notification for %s: %v", receiver.ID.String(), err)
	}
}

func (s *chatService) History(ctx context.Context, roomID string, callerID utils.SixID, callerRole models.UserRole, limit int64) ([]models.Message, error) {
	a, b, ok := models.RoomMembers(roomID)
	if !ok {
		return nil, apperr.Validation("malformed room id %q", roomID)
	}
	caller := callerID.String()
	if caller != a && caller != b && callerRole != models.RoleAdmin {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	// Newest N, then reversed so the caller renders oldest-first.
	cursor, err := s.db.Collection(db.CollMessages).Find(ctx, bson.M{"room_id": roomID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, apperr.Internal(err, "failed to query messages")
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, apperr.Internal(err, "failed to decode messages")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *chatService) Sidebar(ctx context.Context, userID utils.SixID) ([]ChatContact, error) {
	// Latest message per room the user participates in.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$room_id",
			"last": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}}}},
	}
	cursor, err := s.db.Collection(db.CollMessages).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err, "failed to aggregate conversations")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		RoomID string         `bson:"_id"`
		Last   models.Message `bson:"last"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, apperr.Internal(err, "failed to decode conversations")
	}

	contacts := make([]ChatContact, 0, len(rows))
	for _, row := range rows {
		peerID := row.Last.SenderID
		if peerID == userID {
			peerID = row.Last.ReceiverID
		}
		peer, err := s.userService.FindByID(ctx, peerID)
		if err != nil {
			// A deleted peer should not break the whole sidebar.
			log.Printf("Skipping conversation %s: peer lookup failed: %v", row.RoomID, err)
			continue
		}
		peer.PasswordHash = ""
		contacts = append(contacts, ChatContact{
			RoomID:      row.RoomID,
			Peer:        *peer,
			LastMessage: row.Last,
		})
	}
	return contacts, nil
}

// ParseRoomPeer resolves the other participant of roomID relative to userID.
func ParseRoomPeer(roomID string, userID utils.SixID) (utils.SixID, error) {
	a, b, ok := models.RoomMembers(roomID)
	if !ok {
		return utils.SixID{}, fmt.Errorf("malformed room id %q", roomID)
	}
	self := userID.String()
	other := a
	if a == self {
		other = b
	} else if b != self {
		return utils.SixID{}, fmt.Errorf("user %s is not in room %q", self, roomID)
	}
	return utils.ParseSixID(other)
}
