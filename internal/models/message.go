package models

import (
	"strings"
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// Message is one chat message between a buyer and a seller. Append-only.
type Message struct {
	Base       `bson:",inline"`
	RoomID     string      `bson:"room_id" json:"room_id"`
	SenderID   utils.SixID `bson:"sender_id" json:"sender_id"`
	ReceiverID utils.SixID `bson:"receiver_id" json:"receiver_id"`
	Content    string      `bson:"content,omitempty" json:"content,omitempty"`
	Images     []string    `bson:"images,omitempty" json:"images,omitempty"` // S3 keys
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}

// ChatRoomID derives the room identifier for a pair of participants. The ids
// are ordered lexicographically so both sides compute the same room.
func ChatRoomID(a, b utils.SixID) string {
	sa, sb := a.String(), b.String()
	if sa > sb {
		sa, sb = sb, sa
	}
	return sa + "_" + sb
}

// RoomMembers splits a room id back into its two participant id strings.
func RoomMembers(roomID string) (string, string, bool) {
	parts := strings.SplitN(roomID, "_", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
