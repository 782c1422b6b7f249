package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// ICapabilityService manages the seller ↔ product-type associations that
// drive enquiry fan-out.
type ICapabilityService interface {
	// SetCapabilities replaces the seller's configured set with the given
	// product type ids.
	SetCapabilities(ctx context.Context, sellerID utils.SixID, productTypeIDs []utils.SixID) error
	ListForSeller(ctx context.Context, sellerID utils.SixID) ([]models.SellerCapability, error)
	// HasConfig reports whether the seller has configured any capability at
	// all, which decides the received-enquiries branch.
	HasConfig(ctx context.Context, sellerID utils.SixID) (bool, error)
	// GetMatchingSellers returns the deduplicated seller ids servicing any of
	// the given product types.
	GetMatchingSellers(ctx context.Context, productTypeIDs []utils.SixID) ([]utils.SixID, error)
}

type capabilityService struct {
	db *mongo.Database
}

// NewCapabilityService creates a new CapabilityService.
func NewCapabilityService(db *mongo.Database) ICapabilityService {
	return &capabilityService{db: db}
}

// SetCapabilities is a full replace: existing rows not in the new set are
// removed, new ones are upserted behind the (seller_id, product_type_id)
// unique index so repeated submissions are idempotent.
func (s *capabilityService) SetCapabilities(ctx context.Context, sellerID utils.SixID, productTypeIDs []utils.SixID) error {
	collection := s.db.Collection(db.CollSellerCapabilities)

	if _, err := collection.DeleteMany(ctx, bson.M{
		"seller_id":       sellerID,
		"product_type_id": bson.M{"$nin": productTypeIDs},
	}); err != nil {
		return fmt.Errorf("error pruning capabilities for seller %s: %w", sellerID.String(), err)
	}

	now := time.Now().UTC()
	for _, ptID := range productTypeIDs {
		filter := bson.M{"seller_id": sellerID, "product_type_id": ptID}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":             utils.NewSixID(),
				"seller_id":       sellerID,
				"product_type_id": ptID,
				"created_at":      now,
			},
		}
		opts := options.Update().SetUpsert(true)
		if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
			if db.IsMongoDuplicateKeyError(err) {
				continue // Concurrent identical upsert, already present
			}
			return fmt.Errorf("error upserting capability for seller %s: %w", sellerID.String(), err)
		}
	}
	return nil
}

func (s *capabilityService) ListForSeller(ctx context.Context, sellerID utils.SixID) ([]models.SellerCapability, error) {
	cursor, err := s.db.Collection(db.CollSellerCapabilities).Find(ctx, bson.M{"seller_id": sellerID})
	if err != nil {
		return nil, fmt.Errorf("error listing capabilities for seller %s: %w", sellerID.String(), err)
	}
	defer cursor.Close(ctx)

	var caps []models.SellerCapability
	if err = cursor.All(ctx, &caps); err != nil {
		return nil, fmt.Errorf("error decoding capabilities: %w", err)
	}
	return caps, nil
}

func (s *capabilityService) HasConfig(ctx context.Context, sellerID utils.SixID) (bool, error) {
	count, err := s.db.Collection(db.CollSellerCapabilities).CountDocuments(ctx,
		bson.M{"seller_id": sellerID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("error checking capability config for seller %s: %w", sellerID.String(), err)
	}
	return count > 0, nil
}

func (s *capabilityService) GetMatchingSellers(ctx context.Context, productTypeIDs []utils.SixID) ([]utils.SixID, error) {
	if len(productTypeIDs) == 0 {
		return nil, nil
	}

	values, err := s.db.Collection(db.CollSellerCapabilities).Distinct(ctx, "seller_id",
		bson.M{"product_type_id": bson.M{"$in": productTypeIDs}})
	if err != nil {
		return nil, fmt.Errorf("error querying matching sellers: %w", err)
	}

	sellers := make([]utils.SixID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(utils.SixID); ok {
			sellers = append(sellers, id)
			continue
		}
		// Distinct yields primitive.Binary for custom binary _ids.
		if id, ok := utils.SixIDFromBSONValue(v); ok {
			sellers = append(sellers, id)
		}
	}
	return sellers, nil
}
