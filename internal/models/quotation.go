package models

import (
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// QuotationItemStatus defines the per-item negotiation state.
type QuotationItemStatus string

const (
	QuotationItemPending   QuotationItemStatus = "pending"
	QuotationItemAccepted  QuotationItemStatus = "accepted"
	QuotationItemRejected  QuotationItemStatus = "rejected"
	QuotationItemCompleted QuotationItemStatus = "completed"
)

// ValidQuotationItemStatus reports whether s is one of the recognized states.
func ValidQuotationItemStatus(s QuotationItemStatus) bool {
	switch s {
	case QuotationItemPending, QuotationItemAccepted, QuotationItemRejected, QuotationItemCompleted:
		return true
	}
	return false
}

// Quotation is a seller's itemized offer against an accepted enquiry.
// A unique index over (enquiry_id, seller_id) keeps the pair at-most-once.
type Quotation struct {
	Base       `bson:",inline"`
	EnquiryID  utils.SixID `bson:"enquiry_id" json:"enquiry_id"`
	SellerID   utils.SixID `bson:"seller_id" json:"seller_id"`
	Notes      string      `bson:"notes,omitempty" json:"notes,omitempty"`
	TotalPrice float64     `bson:"total_price" json:"total_price"` // Sum of item quoted prices, recomputed on write
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `bson:"updated_at" json:"updated_at"`
}

// QuotationItem prices one enquiry item within a quotation.
type QuotationItem struct {
	Base             `bson:",inline"`
	QuotationID      utils.SixID         `bson:"quotation_id" json:"quotation_id"`
	EnquiryItemID    utils.SixID         `bson:"enquiry_item_id" json:"enquiry_item_id"`
	Status           QuotationItemStatus `bson:"status" json:"status"`
	QuotedPrice      float64             `bson:"quoted_price" json:"quoted_price"`
	DeliveryTime     string              `bson:"delivery_time,omitempty" json:"delivery_time,omitempty"`
	DeliveryCharges  float64             `bson:"delivery_charges" json:"delivery_charges"`
	Condition        string              `bson:"condition,omitempty" json:"condition,omitempty"` // e.g., "new", "used", "refurbished"
	Guarantee        string              `bson:"guarantee,omitempty" json:"guarantee,omitempty"`
	InvoiceType      string              `bson:"invoice_type,omitempty" json:"invoice_type,omitempty"`
	Remarks          string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Subtotal         float64             `bson:"subtotal" json:"subtotal"`
	PAndP            float64             `bson:"p_and_p" json:"p_and_p"` // Postage and packing
	Discount         float64             `bson:"discount" json:"discount"`
	TotalExVAT       float64             `bson:"total_ex_vat" json:"total_ex_vat"`
	VATPercent       float64             `bson:"vat_percent" json:"vat_percent"`
	VATAmount        float64             `bson:"vat_amount" json:"vat_amount"`
	GrandTotal       float64             `bson:"grand_total" json:"grand_total"`
	IsFreeDelivery   bool                `bson:"is_free_delivery" json:"is_free_delivery"`
	IsCollectionOnly bool                `bson:"is_collection_only" json:"is_collection_only"`
	IsVATExempt      bool                `bson:"is_vat_exempt" json:"is_vat_exempt"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updated_at"`
}

// QuotationItemPatch is a partial update of a QuotationItem. Nil means the
// field was omitted from the payload; a non-nil pointer applies the value,
// including zero. The status field is not patchable here, it moves through
// its own role-gated operation.
type QuotationItemPatch struct {
	QuotedPrice      *float64 `json:"quoted_price,omitempty"`
	DeliveryTime     *string  `json:"delivery_time,omitempty"`
	DeliveryCharges  *float64 `json:"delivery_charges,omitempty"`
	Condition        *string  `json:"condition,omitempty"`
	Guarantee        *string  `json:"guarantee,omitempty"`
	InvoiceType      *string  `json:"invoice_type,omitempty"`
	Remarks          *string  `json:"remarks,omitempty"`
	Subtotal         *float64 `json:"subtotal,omitempty"`
	PAndP            *float64 `json:"p_and_p,omitempty"`
	Discount         *float64 `json:"discount,omitempty"`
	TotalExVAT       *float64 `json:"total_ex_vat,omitempty"`
	VATPercent       *float64 `json:"vat_percent,omitempty"`
	VATAmount        *float64 `json:"vat_amount,omitempty"`
	GrandTotal       *float64 `json:"grand_total,omitempty"`
	IsFreeDelivery   *bool    `json:"is_free_delivery,omitempty"`
	IsCollectionOnly *bool    `json:"is_collection_only,omitempty"`
	IsVATExempt      *bool    `json:"is_vat_exempt,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p *QuotationItemPatch) IsEmpty() bool {
	return p.QuotedPrice == nil && p.DeliveryTime == nil && p.DeliveryCharges == nil &&
		p.Condition == nil && p.Guarantee == nil && p.InvoiceType == nil && p.Remarks == nil &&
		p.Subtotal == nil && p.PAndP == nil && p.Discount == nil && p.TotalExVAT == nil &&
		p.VATPercent == nil && p.VATAmount == nil && p.GrandTotal == nil &&
		p.IsFreeDelivery == nil && p.IsCollectionOnly == nil && p.IsVATExempt == nil
}
