package models

import (
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// EnquiryStatus defines the lifecycle of an enquiry and its items.
type EnquiryStatus string

const (
	EnquiryStatusOpen      EnquiryStatus = "open"
	EnquiryStatusCompleted EnquiryStatus = "completed"
	EnquiryStatusCancelled EnquiryStatus = "cancelled"
)

// MappingStatus defines a seller's interest state towards an enquiry.
type MappingStatus string

const (
	MappingStatusPending  MappingStatus = "pending"
	MappingStatusAccepted MappingStatus = "accepted"
	MappingStatusRejected MappingStatus = "rejected"
)

// Enquiry is a buyer's request for one or more parts for a specific vehicle.
type Enquiry struct {
	Base      `bson:",inline"`
	BuyerID   utils.SixID   `bson:"buyer_id" json:"buyer_id"`
	VehicleID utils.SixID   `bson:"vehicle_id" json:"vehicle_id"`
	Message   string        `bson:"message,omitempty" json:"message,omitempty"`
	Status    EnquiryStatus `bson:"status" json:"status"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}

// EnquiryItem is one requested part under an enquiry. The product type is
// fixed once created.
type EnquiryItem struct {
	Base          `bson:",inline"`
	EnquiryID     utils.SixID   `bson:"enquiry_id" json:"enquiry_id"`
	ProductTypeID utils.SixID   `bson:"product_type_id" json:"product_type_id"`
	Details       string        `bson:"details,omitempty" json:"details,omitempty"`
	Images        []string      `bson:"images,omitempty" json:"images,omitempty"` // S3 keys
	Status        EnquiryStatus `bson:"status" json:"status"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
}

// EnquirySeller maps an enquiry to a matched seller. A unique index over
// (enquiry_id, seller_id) keeps the pair at-most-once.
type EnquirySeller struct {
	Base      `bson:",inline"`
	EnquiryID utils.SixID   `bson:"enquiry_id" json:"enquiry_id"`
	SellerID  utils.SixID   `bson:"seller_id" json:"seller_id"`
	Status    MappingStatus `bson:"status" json:"status"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
