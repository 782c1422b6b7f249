package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// IProductTypeService defines the interface for the part category registry.
type IProductTypeService interface {
	FindByID(ctx context.Context, id utils.SixID) (*models.ProductType, error)
	// FindStandardByName looks up a global type only; buyer-custom types
	// never match here.
	FindStandardByName(ctx context.Context, name string) (*models.ProductType, error)
	CreateCustom(ctx context.Context, buyerID utils.SixID, name string) (*models.ProductType, error)
	ListStandard(ctx context.Context) ([]models.ProductType, error)
	// ListForBuyer returns the global catalog plus the buyer's own custom types.
	ListForBuyer(ctx context.Context, buyerID utils.SixID) ([]models.ProductType, error)
}

type productTypeService struct {
	db *mongo.Database
}

// NewProductTypeService creates a new ProductTypeService.
func NewProductTypeService(db *mongo.Database) IProductTypeService {
	return &productTypeService{db: db}
}

func (s *productTypeService) FindByID(ctx context.Context, id utils.SixID) (*models.ProductType, error) {
	var pt models.ProductType
	err := s.db.Collection(db.CollProductTypes).FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&pt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding product type %s: %w", id.String(), err)
	}
	return &pt, nil
}

func (s *productTypeService) FindStandardByName(ctx context.Context, name string) (*models.ProductType, error) {
	var pt models.ProductType
	filter := bson.M{
		"name":    strings.TrimSpace(name),
		"user_id": nil, // Standard types only
		"deleted": false,
	}
	err := s.db.Collection(db.CollProductTypes).FindOne(ctx, filter).Decode(&pt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding standard product type %q: %w", name, err)
	}
	return &pt, nil
}

// CreateCustom creates a buyer-scoped type. Re-creating the same name for the
// same buyer returns the existing document instead of erroring.
func (s *productTypeService) CreateCustom(ctx context.Context, buyerID utils.SixID, name string) (*models.ProductType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("product type name is required")
	}

	collection := s.db.Collection(db.CollProductTypes)
	pt := &models.ProductType{
		Name:      name,
		UserID:    &buyerID,
		CreatedAt: time.Now().UTC(),
	}

	err := db.InsertOne(ctx, collection, pt)
	if err == nil {
		return pt, nil
	}
	if db.IsMongoDuplicateKeyError(err) {
		var existing models.ProductType
		filter := bson.M{"name": name, "user_id": buyerID, "deleted": false}
		if findErr := collection.FindOne(ctx, filter).Decode(&existing); findErr == nil {
			return &existing, nil
		}
	}
	return nil, fmt.Errorf("error creating custom product type %q: %w", name, err)
}

func (s *productTypeService) ListStandard(ctx context.Context) ([]models.ProductType, error) {
	return s.list(ctx, bson.M{"user_id": nil, "deleted": false})
}

func (s *productTypeService) ListForBuyer(ctx context.Context, buyerID utils.SixID) ([]models.ProductType, error) {
	filter := bson.M{
		"deleted": false,
		"$or":     []bson.M{{"user_id": nil}, {"user_id": buyerID}},
	}
	return s.list(ctx, filter)
}

func (s *productTypeService) list(ctx context.Context, filter bson.M) ([]models.ProductType, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(db.CollProductTypes).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing product types: %w", err)
	}
	defer cursor.Close(ctx)

	var types []models.ProductType
	if err = cursor.All(ctx, &types); err != nil {
		return nil, fmt.Errorf("error decoding product types: %w", err)
	}
	return types, nil
}
