package models

import (
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// LinkedActionType defines the different types of actions confirmed via links/codes.
type LinkedActionType string

const (
	ActionSetupAccount  LinkedActionType = "setup_account" // Phantom buyer setting a first password
	ActionVerifyEmail   LinkedActionType = "verify_email"
	ActionPasswordReset LinkedActionType = "password_reset"
)

// LinkedAction represents an action that needs to be confirmed, usually via email.
// The _id of this document is used as the secret code in the link.
type LinkedAction struct {
	Base      `bson:",inline"`
	UserID    utils.SixID      `bson:"user_id" json:"user_id"`
	Type      LinkedActionType `bson:"type" json:"type"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time        `bson:"expires_at" json:"expires_at"`
	Executed  *time.Time       `bson:"executed,omitempty" json:"executed,omitempty"`
	// Data holds action-specific info, e.g., the new email for an address change
	Data    map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	Deleted bool                   `bson:"deleted" json:"-"`
}
