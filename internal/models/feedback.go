package models

import (
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// FeedbackStatus defines the support ticket lifecycle.
type FeedbackStatus string

const (
	FeedbackStatusOpen     FeedbackStatus = "open"
	FeedbackStatusReplied  FeedbackStatus = "replied"
	FeedbackStatusResolved FeedbackStatus = "resolved"
	FeedbackStatusClosed   FeedbackStatus = "closed"
)

// Feedback is a support/feedback ticket raised by a user.
type Feedback struct {
	Base      `bson:",inline"`
	UserID    utils.SixID    `bson:"user_id" json:"user_id"`
	Subject   string         `bson:"subject" json:"subject"`
	Status    FeedbackStatus `bson:"status" json:"status"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

// FeedbackMessage is one message in a ticket thread, from the user or an admin.
type FeedbackMessage struct {
	Base       `bson:",inline"`
	FeedbackID utils.SixID `bson:"feedback_id" json:"feedback_id"`
	AuthorID   utils.SixID `bson:"author_id" json:"author_id"`
	FromAdmin  bool        `bson:"from_admin" json:"from_admin"`
	Content    string      `bson:"content" json:"content"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}
