package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// VehicleFilter narrows the cascading distinct-value queries. Zero fields
// are ignored, so a caller can filter by any prefix of the fitment tuple.
type VehicleFilter struct {
	Make      string
	Model     string
	Year      int
	BodyStyle string
	Trim      string
	Gearbox   string
}

// IVehicleService defines the interface for vehicle catalog operations.
type IVehicleService interface {
	FindOrCreate(ctx context.Context, fitment models.Vehicle) (*models.Vehicle, error)
	FindByID(ctx context.Context, vehicleID utils.SixID) (*models.Vehicle, error)
	GetMakes(ctx context.Context) ([]string, error)
	GetModels(ctx context.Context, filter VehicleFilter) ([]string, error)
	GetYears(ctx context.Context, filter VehicleFilter) ([]int, error)
	GetBodyStyles(ctx context.Context, filter VehicleFilter) ([]string, error)
	GetTrims(ctx context.Context, filter VehicleFilter) ([]string, error)
	GetGearboxes(ctx context.Context, filter VehicleFilter) ([]string, error)
	GetFuels(ctx context.Context, filter VehicleFilter) ([]string, error)
}

// vehicleService implements IVehicleService. Filter lists are cached in
// Redis since the catalog changes far less often than it is read.
type vehicleService struct {
	db    *mongo.Database
	redis *redis.Client
	cfg   *config.Config
}

// NewVehicleService creates a new VehicleService.
func NewVehicleService(db *mongo.Database, redisClient *redis.Client, cfg *config.Config) IVehicleService {
	return &vehicleService{db: db, redis: redisClient, cfg: cfg}
}

// FindOrCreate returns the vehicle matching the full fitment tuple, creating
// it on first occurrence. The unique fitment index makes concurrent identical
// submissions converge on a single document: a duplicate-key insert falls
// back to re-reading the winner.
func (s *vehicleService) FindOrCreate(ctx context.Context, fitment models.Vehicle) (*models.Vehicle, error) {
	if !fitment.Complete() {
		return nil, fmt.Errorf("incomplete vehicle fitment tuple")
	}

	collection := s.db.Collection(db.CollVehicles)
	filter := fitmentFilter(fitment)

	var existing models.Vehicle
	err := collection.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error looking up vehicle: %w", err)
	}

	fitment.CreatedAt = time.Now().UTC()
	insertErr := db.InsertOne(ctx, collection, &fitment)
	if insertErr == nil {
		s.invalidateFilterCache(ctx)
		return &fitment, nil
	}
	if db.IsMongoDuplicateKeyError(insertErr) {
		// Lost the race to an identical submission; use theirs.
		if err := collection.FindOne(ctx, filter).Decode(&existing); err != nil {
			return nil, fmt.Errorf("error re-reading vehicle after duplicate insert: %w", err)
		}
		return &existing, nil
	}
	return nil, fmt.Errorf("error inserting vehicle: %w", insertErr)
}

// FindByID retrieves a vehicle document.
func (s *vehicleService) FindByID(ctx context.Context, vehicleID utils.SixID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.db.Collection(db.CollVehicles).FindOne(ctx, bson.M{"_id": vehicleID}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding vehicle %s: %w", vehicleID.String(), err)
	}
	return &vehicle, nil
}

func (s *vehicleService) GetMakes(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, "make", VehicleFilter{})
}

func (s *vehicleService) GetModels(ctx context.Context, filter VehicleFilter) ([]string, error) {
	return s.distinctStrings(ctx, "model", filter)
}

func (s *vehicleService) GetYears(ctx context.Context, filter VehicleFilter) ([]int, error) {
	key := s.cacheKey("year", filter)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var years []int
		if json.Unmarshal(cached, &years) == nil {
			return years, nil
		}
	}

	values, err := s.db.Collection(db.CollVehicles).Distinct(ctx, "year", filterQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("error querying distinct years: %w", err)
	}
	years := make([]int, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case int32:
			years = append(years, int(n))
		case int64:
			years = append(years, int(n))
		case float64:
			years = append(years, int(n))
		}
	}
	s.cacheSet(ctx, key, years)
	return years, nil
}

func (s *vehicleService) GetBodyStyles(ctx context.Context, filter VehicleFilter) ([]string, error) {
	return s.distinctStrings(ctx, "body_style", filter)
}

func (s *vehicleService) GetTrims(ctx context.Context, filter VehicleFilter) ([]string, error) {
	return s.distinctStrings(ctx, "trim", filter)
}

func (s *vehicleService) GetGearboxes(ctx context.Context, filter VehicleFilter) ([]string, error) {
	return s.distinctStrings(ctx, "gearbox", filter)
}

func (s *vehicleService) GetFuels(ctx context.Context, filter VehicleFilter) ([]string, error) {
	return s.distinctStrings(ctx, "fuel", filter)
}

func (s *vehicleService) distinctStrings(ctx context.Context, field string, filter VehicleFilter) ([]string, error) {
	key := s.cacheKey(field, filter)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var values []string
		if json.Unmarshal(cached, &values) == nil {
			return values, nil
		}
	}

	raw, err := s.db.Collection(db.CollVehicles).Distinct(ctx, field, filterQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("error querying distinct %s: %w", field, err)
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok && str != "" {
			values = append(values, str)
		}
	}
	s.cacheSet(ctx, key, values)
	return values, nil
}

func fitmentFilter(v models.Vehicle) bson.M {
	return bson.M{
		"make":       v.Make,
		"model":      v.Model,
		"year":       v.Year,
		"body_style": v.BodyStyle,
		"trim":       v.Trim,
		"gearbox":    v.Gearbox,
		"fuel":       v.Fuel,
	}
}

func filterQuery(f VehicleFilter) bson.M {
	query := bson.M{}
	if f.Make != "" {
		query["make"] = f.Make
	}
	if f.Model != "" {
		query["model"] = f.Model
	}
	if f.Year != 0 {
		query["year"] = f.Year
	}
	if f.BodyStyle != "" {
		query["body_style"] = f.BodyStyle
	}
	if f.Trim != "" {
		query["trim"] = f.Trim
	}
	if f.Gearbox != "" {
		query["gearbox"] = f.Gearbox
	}
	return query
}

func (s *vehicleService) cacheKey(field string, f VehicleFilter) string {
	return strings.Join([]string{
		"vehicle_filters", field,
		f.Make, f.Model, fmt.Sprint(f.Year), f.BodyStyle, f.Trim, f.Gearbox,
	}, ":")
}

func (s *vehicleService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *vehicleService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.cfg.GetCacheTTL).Err(); err != nil {
		log.Printf("Failed to cache %s: %v", key, err)
	}
}

// invalidateFilterCache drops every cached filter list. Entries are TTL'd
// anyway; this just shortens the staleness window after a new tuple lands.
func (s *vehicleService) invalidateFilterCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	iter := s.redis.Scan(ctx, 0, "vehicle_filters:*", 100).Iterator()
	for iter.Next(ctx) {
		s.redis.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("Failed to invalidate vehicle filter cache: %v", err)
	}
}
