package models

import (
	"time"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// ProductType is a category of part. A nil UserID means a standard/global type;
// a non-nil UserID means a custom type scoped to the buyer who created it.
type ProductType struct {
	Base      `bson:",inline"`
	Name      string       `bson:"name" json:"name"`
	UserID    *utils.SixID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	Deleted   bool         `bson:"deleted" json:"-"`
}

// IsStandard reports whether the type belongs to the global catalog.
func (p *ProductType) IsStandard() bool {
	return p.UserID == nil
}
