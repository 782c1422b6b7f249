package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used across the service layer.
const (
	CollUsers              = "users"
	CollVehicles           = "vehicles"
	CollProductTypes       = "product_types"
	CollSellerCapabilities = "seller_capabilities"
	CollEnquiries          = "enquiries"
	CollEnquiryItems       = "enquiry_items"
	CollEnquirySellers     = "enquiry_sellers"
	CollQuotations         = "quotations"
	CollQuotationItems     = "quotation_items"
	CollMessages           = "messages"
	CollFeedback           = "feedback"
	CollFeedbackMessages   = "feedback_messages"
	CollLinkedActions      = "linked_actions"
	CollEmailTemplates     = "email_templates"
)

// EnsureIndexes creates the unique and query indexes the workflows rely on.
// The at-most-once invariants (one mapping per enquiry/seller, one quotation
// per enquiry/seller, one vehicle per fitment tuple) live here, not in
// application-level checks.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	specs := map[string][]mongo.IndexModel{
		CollUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_1")},
			{Keys: bson.D{{Key: "phone", Value: 1}, {Key: "role", Value: 1}}},
		},
		CollVehicles: {
			{Keys: bson.D{
				{Key: "make", Value: 1}, {Key: "model", Value: 1}, {Key: "year", Value: 1},
				{Key: "body_style", Value: 1}, {Key: "trim", Value: 1},
				{Key: "gearbox", Value: 1}, {Key: "fuel", Value: 1},
			}, Options: options.Index().SetUnique(true).SetName("fitment_tuple_1")},
		},
		CollProductTypes: {
			// Missing user_id indexes as null, so standard type names are
			// unique among themselves and custom names unique per buyer.
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "user_id", Value: 1}}, Options: unique},
		},
		CollSellerCapabilities: {
			{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "product_type_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("seller_product_type_1")},
			{Keys: bson.D{{Key: "product_type_id", Value: 1}}},
		},
		CollEnquiries: {
			{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CollEnquiryItems: {
			{Keys: bson.D{{Key: "enquiry_id", Value: 1}}},
		},
		CollEnquirySellers: {
			{Keys: bson.D{{Key: "enquiry_id", Value: 1}, {Key: "seller_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("enquiry_seller_1")},
			{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		CollQuotations: {
			{Keys: bson.D{{Key: "enquiry_id", Value: 1}, {Key: "seller_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("enquiry_seller_quotation_1")},
			{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CollQuotationItems: {
			{Keys: bson.D{{Key: "quotation_id", Value: 1}}},
		},
		CollMessages: {
			{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CollFeedbackMessages: {
			{Keys: bson.D{{Key: "feedback_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		CollLinkedActions: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}

	for coll, models := range specs {
		if _, err := database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", coll, err)
		}
	}
	return nil
}
