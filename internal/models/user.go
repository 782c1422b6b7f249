package models

import (
	"time"
)

// UserRole defines the marketplace role a user acts in.
type UserRole string

const (
	RoleBuyer  UserRole = "buyer"
	RoleSeller UserRole = "seller"
	RoleAdmin  UserRole = "admin"
)

// UserStatus defines the lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusPending  UserStatus = "pending"
	UserStatusBanned   UserStatus = "banned"
)

// CompanyDetails holds the trading information a seller fills in after signup.
type CompanyDetails struct {
	Name           string `bson:"name" json:"name"`
	RegistrationNo string `bson:"registration_no,omitempty" json:"registration_no,omitempty"`
	VATNumber      string `bson:"vat_number,omitempty" json:"vat_number,omitempty"`
	AddressLine1   string `bson:"address_line_1,omitempty" json:"address_line_1,omitempty"`
	AddressLine2   string `bson:"address_line_2,omitempty" json:"address_line_2,omitempty"`
	City           string `bson:"city,omitempty" json:"city,omitempty"`
	Postcode       string `bson:"postcode,omitempty" json:"postcode,omitempty"`
	Country        string `bson:"country,omitempty" json:"country,omitempty"`
	Website        string `bson:"website,omitempty" json:"website,omitempty"`
}

// NotificationPreferences allows users to control email notifications.
type NotificationPreferences struct {
	NewEnquiry      bool `bson:"new_enquiry" json:"new_enquiry"`
	QuotationUpdate bool `bson:"quotation_update" json:"quotation_update"`
	ChatMessage     bool `bson:"chat_message" json:"chat_message"`
	AccountStatus   bool `bson:"account_status" json:"account_status"`
}

// User represents a buyer, seller or admin account.
type User struct {
	Base                    `bson:",inline"`
	Name                    string                   `bson:"name" json:"name"`
	Email                   string                   `bson:"email" json:"email"`
	Phone                   string                   `bson:"phone" json:"phone"`
	PasswordHash            string                   `bson:"password" json:"-"` // Store hash, not plaintext
	Role                    UserRole                 `bson:"role" json:"role"`
	Status                  UserStatus               `bson:"status" json:"status"`
	EmailVerified           bool                     `bson:"email_verified" json:"email_verified"`
	SellerVerified          bool                     `bson:"seller_verified" json:"seller_verified"` // Set by admins after company checks
	Phantom                 bool                     `bson:"phantom" json:"phantom"`                 // Auto-created from an anonymous enquiry, no password set yet
	Company                 *CompanyDetails          `bson:"company,omitempty" json:"company,omitempty"`
	ProfileImage            string                   `bson:"profile_image,omitempty" json:"profile_image,omitempty"` // S3 key
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notification_preferences,omitempty"`
	CreatedAt               time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt               time.Time                `bson:"updated_at" json:"updated_at"`
	Deleted                 bool                     `bson:"deleted" json:"-"` // Soft delete flag
}
