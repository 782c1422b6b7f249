package models

import (
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// SellerCapability associates a seller with one product type they service.
// At most one document per (seller_id, product_type_id) pair.
type SellerCapability struct {
	Base          `bson:",inline"`
	SellerID      utils.SixID `bson:"seller_id" json:"seller_id"`
	ProductTypeID utils.SixID `bson:"product_type_id" json:"product_type_id"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
}
