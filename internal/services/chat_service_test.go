package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
	"github.com/pratik860s/Autopart-Backend/internal/chat"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func newChatServiceForTest(database *mongo.Database) IChatService {
	return NewChatService(database, NewUserService(database), chat.NewRegistry(), NopNotifier{})
}

func TestChatService_SaveMessage(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_chat_save")
	svc := newChatServiceForTest(database)
	ctx := context.Background()

	buyer := insertTestUser(t, database, models.RoleBuyer, "buyer@example.com")
	seller := insertTestUser(t, database, models.RoleSeller, "seller@example.com")

	msg, err := svc.SaveMessage(ctx, buyer.ID, seller.ID, "Is the alternator still available?", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ChatRoomID(buyer.ID, seller.ID), msg.RoomID)
	assert.Equal(t, buyer.ID, msg.SenderID)
	assert.Equal(t, seller.ID, msg.ReceiverID)

	// The message is persisted even with nobody connected.
	count, err := database.Collection(db.CollMessages).CountDocuments(ctx, bson.M{"room_id": msg.RoomID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Both directions land in the same room.
	reply, err := svc.SaveMessage(ctx, seller.ID, buyer.ID, "Yes, still here.", nil)
	require.NoError(t, err)
	assert.Equal(t, msg.RoomID, reply.RoomID)

	// Image-only messages are fine; fully empty ones are not.
	_, err = svc.SaveMessage(ctx, buyer.ID, seller.ID, "", []string{"chat/photo.jpg"})
	require.NoError(t, err)
	_, err = svc.SaveMessage(ctx, buyer.ID, seller.ID, "   ", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// Self-messaging and unknown recipients are rejected.
	_, err = svc.SaveMessage(ctx, buyer.ID, buyer.ID, "hello me", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.SaveMessage(ctx, buyer.ID, utils.NewSixID(), "anyone?", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestChatService_History_Scoping(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_chat_history")
	svc := newChatServiceForTest(database)
	ctx := context.Background()

	buyer := insertTestUser(t, database, models.RoleBuyer, "buyer@example.com")
	seller := insertTestUser(t, database, models.RoleSeller, "seller@example.com")

	for _, content := range []string{"one", "two", "three"} {
		_, err := svc.SaveMessage(ctx, buyer.ID, seller.ID, content, nil)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // BSON stores millisecond timestamps
	}
	roomID := models.ChatRoomID(buyer.ID, seller.ID)

	// Chronological order for participants.
	history, err := svc.History(ctx, roomID, buyer.ID, models.RoleBuyer, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Content)
	assert.Equal(t, "three", history[2].Content)

	// The limit keeps the newest messages.
	tail, err := svc.History(ctx, roomID, seller.ID, models.RoleSeller, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "two", tail[0].Content)
	assert.Equal(t, "three", tail[1].Content)

	// Outsiders are refused; admins are not.
	outsider := insertTestUser(t, database, models.RoleBuyer, "outsider@example.com")
	_, err = svc.History(ctx, roomID, outsider.ID, models.RoleBuyer, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	admin := insertTestUser(t, database, models.RoleAdmin, "admin@example.com")
	_, err = svc.History(ctx, roomID, admin.ID, models.RoleAdmin, 0)
	require.NoError(t, err)

	// Malformed room ids are rejected outright.
	_, err = svc.History(ctx, "garbage", buyer.ID, models.RoleBuyer, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestChatService_Sidebar(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_chat_sidebar")
	svc := newChatServiceForTest(database)
	ctx := context.Background()

	buyer := insertTestUser(t, database, models.RoleBuyer, "buyer@example.com")
	sellerA := insertTestUser(t, database, models.RoleSeller, "a@example.com")
	sellerB := insertTestUser(t, database, models.RoleSeller, "b@example.com")

	_, err := svc.SaveMessage(ctx, buyer.ID, sellerA.ID, "hello A", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.SaveMessage(ctx, sellerB.ID, buyer.ID, "offer from B", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.SaveMessage(ctx, buyer.ID, sellerA.ID, "still there A?", nil)
	require.NoError(t, err)

	contacts, err := svc.Sidebar(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	// Each entry carries the peer and the latest message of that room,
	// and hashes never leak.
	byPeer := map[utils.SixID]ChatContact{}
	for _, c := range contacts {
		byPeer[c.Peer.ID] = c
		assert.Empty(t, c.Peer.PasswordHash)
	}
	assert.Equal(t, "still there A?", byPeer[sellerA.ID].LastMessage.Content)
	assert.Equal(t, "offer from B", byPeer[sellerB.ID].LastMessage.Content)

	// A user with no conversations gets an empty sidebar.
	lurker := insertTestUser(t, database, models.RoleBuyer, "lurker@example.com")
	contacts, err = svc.Sidebar(ctx, lurker.ID)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestParseRoomPeer(t *testing.T) {
	a := utils.NewSixID()
	b := utils.NewSixID()
	roomID := models.ChatRoomID(a, b)

	peer, err := ParseRoomPeer(roomID, a)
	require.NoError(t, err)
	assert.Equal(t, b, peer)

	peer, err = ParseRoomPeer(roomID, b)
	require.NoError(t, err)
	assert.Equal(t, a, peer)

	_, err = ParseRoomPeer(roomID, utils.NewSixID())
	assert.Error(t, err)
	_, err = ParseRoomPeer("garbage", a)
	assert.Error(t, err)
}
