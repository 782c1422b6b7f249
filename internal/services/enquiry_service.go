package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// EnquiryPartInput is one requested part in a createEnquiry call.
type EnquiryPartInput struct {
	Name     string   `json:"name"`
	Details  string   `json:"details,omitempty"`
	Images   []string `json:"images,omitempty"`
	IsCustom bool     `json:"is_custom,omitempty"`
}

// CreateEnquiryInput carries everything an anonymous buyer submits.
type CreateEnquiryInput struct {
	BuyerName  string             `json:"buyer_name"`
	BuyerEmail string             `json:"buyer_email"`
	BuyerPhone string             `json:"buyer_phone"`
	Vehicle    models.Vehicle     `json:"vehicle"`
	Parts      []EnquiryPartInput `json:"parts"`
	Message    string             `json:"message,omitempty"`
}

// CreateEnquiryResult is what createEnquiry hands back to the caller.
type CreateEnquiryResult struct {
	Enquiry          *models.Enquiry      `json:"enquiry"`
	Items            []models.EnquiryItem `json:"items"`
	MatchedSellerIDs []utils.SixID        `json:"matched_seller_ids"`
	// IsNewUser distinguishes "account auto-created, password-set link
	// emailed" from "existing account, nothing to do".
	IsNewUser bool `json:"is_new_user"`
}

// ReceivedEnquiry is a seller-facing enquiry annotated with quoting state.
type ReceivedEnquiry struct {
	Enquiry       models.Enquiry       `json:"enquiry"`
	Vehicle       *models.Vehicle      `json:"vehicle,omitempty"`
	Items         []models.EnquiryItem `json:"items"`
	MappingStatus models.MappingStatus `json:"mapping_status"`
	// IsAlreadyQuoted reports whether this seller has submitted a quotation.
	IsAlreadyQuoted bool `json:"is_already_quoted"`
	// ApplicantCount is the number of distinct sellers who have quoted.
	ApplicantCount int `json:"applicant_count"`
}

// EnquiryDetail is the full enquiry view for authorized callers.
type EnquiryDetail struct {
	Enquiry  models.Enquiry         `json:"enquiry"`
	Vehicle  *models.Vehicle        `json:"vehicle,omitempty"`
	Items    []models.EnquiryItem   `json:"items"`
	Mappings []models.EnquirySeller `json:"mappings"`
}

// IEnquiryService defines the interface for the enquiry workflow.
type IEnquiryService interface {
	CreateEnquiry(ctx context.Context, input CreateEnquiryInput) (*CreateEnquiryResult, error)
	RespondToEnquiry(ctx context.Context, enquiryID, sellerID utils.SixID, status models.MappingStatus) error
	ListForBuyer(ctx context.Context, buyerID utils.SixID) ([]EnquiryDetail, error)
	ListReceived(ctx context.Context, sellerID utils.SixID) ([]ReceivedEnquiry, error)
	GetDetails(ctx context.Context, enquiryID, callerID utils.SixID, callerRole models.UserRole) (*EnquiryDetail, error)
	// EnsureMapping is the idempotent upsert behind the unconfigured-seller
	// fallback: insert-or-ignore against the (enquiry_id, seller_id) unique
	// index, never check-then-insert.
	EnsureMapping(ctx context.Context, enquiryID, sellerID utils.SixID) error
	GetItems(ctx context.Context, enquiryID utils.SixID) ([]models.EnquiryItem, error)
	FindByID(ctx context.Context, enquiryID utils.SixID) (*models.Enquiry, error)
	FindMapping(ctx context.Context, enquiryID, sellerID utils.SixID) (*models.EnquirySeller, error)
}

// enquiryService implements IEnquiryService.
type enquiryService struct {
	db             *mongo.Database
	userService    IUserService
	vehicleService IVehicleService
	productTypes   IProductTypeService
	capabilities   ICapabilityService
	linkedActions  ILinkedActionService
	notifier       Notifier
}

// NewEnquiryService creates a new EnquiryService.
func NewEnquiryService(
	database *mongo.Database,
	userService IUserService,
	vehicleService IVehicleService,
	productTypes IProductTypeService,
	capabilities ICapabilityService,
	linkedActions ILinkedActionService,
	notifier Notifier,
) IEnquiryService {
	return &enquiryService{
		db:             database,
		userService:    userService,
		vehicleService: vehicleService,
		productTypes:   productTypes,
		capabilities:   capabilities,
		linkedActions:  linkedActions,
		notifier:       notifier,
	}
}

// CreateEnquiry runs the full pipeline: resolve buyer, resolve vehicle,
// persist enquiry + items, fan out to matching sellers, notify. Validation
// failures reject the whole request; a failure partway through the writes
// rolls back what was already inserted.
func (s *enquiryService) CreateEnquiry(ctx context.Context, input CreateEnquiryInput) (*CreateEnquiryResult, error) {
	if err := validateCreateEnquiryInput(input); err != nil {
		return nil, err
	}

	// 1. Resolve buyer by (email, phone, role=buyer); auto-create if absent.
	buyer, isNewUser, err := s.resolveBuyer(ctx, input)
	if err != nil {
		return nil, err
	}

	// 2. Resolve vehicle by the full fitment tuple.
	vehicle, err := s.vehicleService.FindOrCreate(ctx, input.Vehicle)
	if err != nil {
		return nil, apperr.Internal(err, "failed to resolve vehicle")
	}

	// 3. Resolve every part to a product type before writing anything, so a
	// missing standard type aborts with nothing to clean up.
	productTypeIDs := make([]utils.SixID, 0, len(input.Parts))
	for _, part := range input.Parts {
		var pt *models.ProductType
		if part.IsCustom {
			pt, err = s.productTypes.CreateCustom(ctx, buyer.ID, part.Name)
			if err != nil {
				return nil, apperr.Internal(err, "failed to create custom product type %q", part.Name)
			}
		} else {
			pt, err = s.productTypes.FindStandardByName(ctx, part.Name)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					return nil, apperr.NotFound("no standard product type named %q", part.Name)
				}
				return nil, apperr.Internal(err, "failed to look up product type %q", part.Name)
			}
		}
		productTypeIDs = append(productTypeIDs, pt.ID)
	}

	// 4. Create the enquiry.
	now := time.Now().UTC()
	enquiry := &models.Enquiry{
		BuyerID:   buyer.ID,
		VehicleID: vehicle.ID,
		Message:   strings.TrimSpace(input.Message),
		Status:    models.EnquiryStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollEnquiries), enquiry); err != nil {
		return nil, apperr.Internal(err, "failed to create enquiry")
	}

	// 5. Bulk-create the items. On failure, undo the enquiry and any items
	// already written so no half-created enquiry is left visible.
	items := make([]models.EnquiryItem, len(input.Parts))
	itemDocs := make([]interface{}, len(input.Parts))
	for i, part := range input.Parts {
		items[i] = models.EnquiryItem{
			Base:          models.NewBase(),
			EnquiryID:     enquiry.ID,
			ProductTypeID: productTypeIDs[i],
			Details:       strings.TrimSpace(part.Details),
			Images:        part.Images,
			Status:        models.EnquiryStatusOpen,
			CreatedAt:     now,
		}
		itemDocs[i] = items[i]
	}
	if _, err := s.db.Collection(db.CollEnquiryItems).InsertMany(ctx, itemDocs); err != nil {
		s.rollbackEnquiry(ctx, enquiry.ID)
		return nil, apperr.Internal(err, "failed to create enquiry items")
	}

	// 6. Matching seller set: deduplicated sellers whose capability map
	// intersects the enquiry's product types. An empty set is not an error.
	sellerIDs, err := s.capabilities.GetMatchingSellers(ctx, productTypeIDs)
	if err != nil {
		s.rollbackEnquiry(ctx, enquiry.ID)
		return nil, apperr.Internal(err, "failed to compute matching sellers")
	}

	// 7. One pending mapping per matched seller.
	for _, sellerID := range sellerIDs {
		if err := s.EnsureMapping(ctx, enquiry.ID, sellerID); err != nil {
			s.rollbackEnquiry(ctx, enquiry.ID)
			return nil, apperr.Internal(err, "failed to create seller mapping")
		}
	}

	// 8. Notifications, best-effort. Never rolls back the writes above.
	s.notifyEnquiryCreated(ctx, buyer, enquiry, vehicle, sellerIDs)

	return &CreateEnquiryResult{
		Enquiry:          enquiry,
		Items:            items,
		MatchedSellerIDs: sellerIDs,
		IsNewUser:        isNewUser,
	}, nil
}

func validateCreateEnquiryInput(input CreateEnquiryInput) error {
	if strings.TrimSpace(input.BuyerName) == "" ||
		strings.TrimSpace(input.BuyerEmail) == "" ||
		strings.TrimSpace(input.BuyerPhone) == "" {
		return apperr.Validation("buyer name, email and phone are required")
	}
	if !input.Vehicle.Complete() {
		return apperr.Validation("vehicle fitment is incomplete: make, model, year, body_style, trim, gearbox and fuel are all required")
	}
	if len(input.Parts) == 0 {
		return apperr.Validation("at least one part is required")
	}
	for i, part := range input.Parts {
		if strings.TrimSpace(part.Name) == "" {
			return apperr.Validation("part %d has no name", i)
		}
	}
	return nil
}

func (s *enquiryService) resolveBuyer(ctx context.Context, input CreateEnquiryInput) (*models.User, bool, error) {
	buyer, err := s.userService.FindBuyerByEmailPhone(ctx, input.BuyerEmail, input.BuyerPhone)
	if err == nil {
		return buyer, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, apperr.Internal(err, "failed to resolve buyer")
	}

	buyer, err = s.userService.CreatePhantomBuyer(ctx, input.BuyerName, input.BuyerEmail, input.BuyerPhone)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			// Same email registered under a different phone or role.
			return nil, false, apperr.Conflict("email is already registered to another account")
		}
		return nil, false, apperr.Internal(err, "failed to create buyer account")
	}

	// Issue the password-set link. It is purpose-tagged and single use,
	// distinct from any login token.
	action, actionErr := s.linkedActions.CreateSetupAccountAction(ctx, buyer.ID)
	if actionErr != nil {
		log.Printf("Failed to create setup action for new buyer %s: %v", buyer.ID.String(), actionErr)
	} else if notifyErr := s.notifier.SendTemplate(ctx, buyer.Email, "setup_account", map[string]interface{}{
		"name":      buyer.Name,
		"action_id": action.ID.String(),
	}); notifyErr != nil {
		log.Printf("Failed to enqueue setup email for buyer %s: %v", buyer.ID.String(), notifyErr)
	}

	return buyer, true, nil
}

// rollbackEnquiry removes an enquiry and everything hanging off it after a
// failed multi-step create. Best effort; leftovers are orphaned but
// unreachable since the enquiry itself is gone first in reverse order.
func (s *enquiryService) rollbackEnquiry(ctx context.Context, enquiryID utils.SixID) {
	if _, err := s.db.Collection(db.CollEnquirySellers).DeleteMany(ctx, bson.M{"enquiry_id": enquiryID}); err != nil {
		log.Printf("Rollback: failed to delete mappings for enquiry %s: %v", enquiryID.String(), err)
	}
	if _, err := s.db.Collection(db.CollEnquiryItems).DeleteMany(ctx, bson.M{"enquiry_id": enquiryID}); err != nil {
		log.Printf("Rollback: failed to delete items for enquiry %s: %v", enquiryID.String(), err)
	}
	if _, err := s.db.Collection(db.CollEnquiries).DeleteOne(ctx, bson.M{"_id": enquiryID}); err != nil {
		log.Printf("Rollback: failed to delete enquiry %s: %v", enquiryID.String(), err)
	}
}

func (s *enquiryService) notifyEnquiryCreated(ctx context.Context, buyer *models.User, enquiry *models.Enquiry, vehicle *models.Vehicle, sellerIDs []utils.SixID) {
	vehicleLabel := fmt.Sprintf("%s %s %d", vehicle.Make, vehicle.Model, vehicle.Year)

	if err := s.notifier.SendTemplate(ctx, buyer.Email, "enquiry_confirmation", map[string]interface{}{
		"name":       buyer.Name,
		"enquiry_id": enquiry.ID.String(),
		"vehicle":    vehicleLabel,
	}); err != nil {
		log.Printf("Failed to enqueue enquiry confirmation for buyer %s: %v", buyer.ID.String(), err)
	}

	for _, sellerID := range sellerIDs {
		seller, err := s.userService.FindByID(ctx, sellerID)
		if err != nil {
			log.Printf("Failed to load matched seller %s for notification: %v", sellerID.String(), err)
			continue
		}
		if !seller.EmailVerified {
			continue // Only email-verified sellers get alerts
		}
		// Absent preferences mean the defaults, which include enquiry alerts.
		if prefs := seller.NotificationPreferences; prefs != nil && !prefs.NewEnquiry {
			continue
		}
		if err := s.notifier.SendTemplate(ctx, seller.Email, "new_enquiry_alert", map[string]interface{}{
			"name":       seller.Name,
			"enquiry_id": enquiry.ID.String(),
			"vehicle":    vehicleLabel,
		}); err != nil {
			log.Printf("Failed to enqueue new-enquiry alert for seller %s: %v", sellerID.String(), err)
		}
	}
}

// RespondToEnquiry sets the seller's mapping status. Accepted and rejected
// flip freely; rejection is not terminal.
func (s *enquiryService) RespondToEnquiry(ctx context.Context, enquiryID, sellerID utils.SixID, status models.MappingStatus) error {
	if status != models.MappingStatusAccepted && status != models.MappingStatusRejected {
		return apperr.Validation("status must be accepted or rejected")
	}

	result, err := s.db.Collection(db.CollEnquirySellers).UpdateOne(ctx,
		bson.M{"enquiry_id": enquiryID, "seller_id": sellerID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return apperr.Internal(err, "failed to update mapping")
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("no mapping for this enquiry and seller")
	}
	return nil
}

// EnsureMapping inserts a pending mapping if none exists. The unique index
// on (enquiry_id, seller_id) makes concurrent calls converge: the loser's
// duplicate-key error is swallowed as a benign no-op.
func (s *enquiryService) EnsureMapping(ctx context.Context, enquiryID, sellerID utils.SixID) error {
	now := time.Now().UTC()
	filter := bson.M{"enquiry_id": enquiryID, "seller_id": sellerID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        utils.NewSixID(),
			"enquiry_id": enquiryID,
			"seller_id":  sellerID,
			"status":     models.MappingStatusPending,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(db.CollEnquirySellers).UpdateOne(ctx, filter, update, opts)
	if err != nil && !db.IsMongoDuplicateKeyError(err) {
		return fmt.Errorf("failed to ensure mapping for enquiry %s seller %s: %w",
			enquiryID.String(), sellerID.String(), err)
	}
	return nil
}

// ListForBuyer returns the buyer's enquiries, newest first, with vehicle and
// items attached.
func (s *enquiryService) ListForBuyer(ctx context.Context, buyerID utils.SixID) ([]EnquiryDetail, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.CollEnquiries).Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list enquiries")
	}
	defer cursor.Close(ctx)

	var enquiries []models.Enquiry
	if err = cursor.All(ctx, &enquiries); err != nil {
		return nil, apperr.Internal(err, "failed to decode enquiries")
	}

	details := make([]EnquiryDetail, 0, len(enquiries))
	for _, enq := range enquiries {
		detail, err := s.buildDetail(ctx, enq, false)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// ListReceived implements the two seller branches. Configured sellers see
// only their mapped enquiries; unconfigured sellers see every open enquiry,
// with the missing mappings materialized through EnsureMapping.
func (s *enquiryService) ListReceived(ctx context.Context, sellerID utils.SixID) ([]ReceivedEnquiry, error) {
	configured, err := s.capabilities.HasConfig(ctx, sellerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check seller configuration")
	}

	if !configured {
		// Fallback: the seller is eligible for all open enquiries.
		cursor, err := s.db.Collection(db.CollEnquiries).Find(ctx,
			bson.M{"status": models.EnquiryStatusOpen})
		if err != nil {
			return nil, apperr.Internal(err, "failed to list open enquiries")
		}
		var open []models.Enquiry
		if err = cursor.All(ctx, &open); err != nil {
			return nil, apperr.Internal(err, "failed to decode open enquiries")
		}
		for _, enq := range open {
			if err := s.EnsureMapping(ctx, enq.ID, sellerID); err != nil {
				return nil, apperr.Internal(err, "failed to materialize mapping")
			}
		}
	}

	// Both branches read through the mappings from here on.
	cursor, err := s.db.Collection(db.CollEnquirySellers).Find(ctx,
		bson.M{"seller_id": sellerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, apperr.Internal(err, "failed to list seller mappings")
	}
	defer cursor.Close(ctx)

	var mappings []models.EnquirySeller
	if err = cursor.All(ctx, &mappings); err != nil {
		return nil, apperr.Internal(err, "failed to decode seller mappings")
	}

	received := make([]ReceivedEnquiry, 0, len(mappings))
	for _, mapping := range mappings {
		enquiry, err := s.FindByID(ctx, mapping.EnquiryID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue // Mapping outlived its enquiry
			}
			return nil, apperr.Internal(err, "failed to load enquiry %s", mapping.EnquiryID.String())
		}

		items, err := s.GetItems(ctx, enquiry.ID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load enquiry items")
		}

		vehicle, err := s.vehicleService.FindByID(ctx, enquiry.VehicleID)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Internal(err, "failed to load vehicle")
		}

		quoted, applicants, err := s.quotingState(ctx, enquiry.ID, sellerID)
		if err != nil {
			return nil, err
		}

		received = append(received, ReceivedEnquiry{
			Enquiry:         *enquiry,
			Vehicle:         vehicle,
			Items:           items,
			MappingStatus:   mapping.Status,
			IsAlreadyQuoted: quoted,
			ApplicantCount:  applicants,
		})
	}
	return received, nil
}

func (s *enquiryService) quotingState(ctx context.Context, enquiryID, sellerID utils.SixID) (bool, int, error) {
	coll := s.db.Collection(db.CollQuotations)

	count, err := coll.CountDocuments(ctx,
		bson.M{"enquiry_id": enquiryID, "seller_id": sellerID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, 0, apperr.Internal(err, "failed to check quotation state")
	}

	sellers, err := coll.Distinct(ctx, "seller_id", bson.M{"enquiry_id": enquiryID})
	if err != nil {
		return false, 0, apperr.Internal(err, "failed to count quoting sellers")
	}

	return count > 0, len(sellers), nil
}

// GetDetails is authorization-scoped: the enquiry's buyer, a mapped seller,
// or an admin.
func (s *enquiryService) GetDetails(ctx context.Context, enquiryID, callerID utils.SixID, callerRole models.UserRole) (*EnquiryDetail, error) {
	enquiry, err := s.FindByID(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("enquiry not found")
		}
		return nil, apperr.Internal(err, "failed to load enquiry")
	}

	authorized := callerRole == models.RoleAdmin || enquiry.BuyerID == callerID
	if !authorized && callerRole == models.RoleSeller {
		mapping, err := s.FindMapping(ctx, enquiryID, callerID)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Internal(err, "failed to check seller mapping")
		}
		authorized = mapping != nil
	}
	if !authorized {
		return nil, apperr.Forbidden("not authorized to view this enquiry")
	}

	return s.buildDetail(ctx, *enquiry, true)
}

func (s *enquiryService) buildDetail(ctx context.Context, enquiry models.Enquiry, withMappings bool) (*EnquiryDetail, error) {
	items, err := s.GetItems(ctx, enquiry.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load enquiry items")
	}

	vehicle, err := s.vehicleService.FindByID(ctx, enquiry.VehicleID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Internal(err, "failed to load vehicle")
	}

	detail := &EnquiryDetail{Enquiry: enquiry, Vehicle: vehicle, Items: items}

	if withMappings {
		cursor, err := s.db.Collection(db.CollEnquirySellers).Find(ctx, bson.M{"enquiry_id": enquiry.ID})
		if err != nil {
			return nil, apperr.Internal(err, "failed to load mappings")
		}
		if err = cursor.All(ctx, &detail.Mappings); err != nil {
			return nil, apperr.Internal(err, "failed to decode mappings")
		}
	}
	return detail, nil
}

// GetItems returns the enquiry's items in creation order.
func (s *enquiryService) GetItems(ctx context.Context, enquiryID utils.SixID) ([]models.EnquiryItem, error) {
	cursor, err := s.db.Collection(db.CollEnquiryItems).Find(ctx,
		bson.M{"enquiry_id": enquiryID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query items for enquiry %s: %w", enquiryID.String(), err)
	}
	defer cursor.Close(ctx)

	var items []models.EnquiryItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items for enquiry %s: %w", enquiryID.String(), err)
	}
	return items, nil
}

// FindByID retrieves an enquiry document.
func (s *enquiryService) FindByID(ctx context.Context, enquiryID utils.SixID) (*models.Enquiry, error) {
	var enquiry models.Enquiry
	err := s.db.Collection(db.CollEnquiries).FindOne(ctx, bson.M{"_id": enquiryID}).Decode(&enquiry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding enquiry %s: %w", enquiryID.String(), err)
	}
	return &enquiry, nil
}

// FindMapping retrieves the (enquiry, seller) mapping document.
func (s *enquiryService) FindMapping(ctx context.Context, enquiryID, sellerID utils.SixID) (*models.EnquirySeller, error) {
	var mapping models.EnquirySeller
	err := s.db.Collection(db.CollEnquirySellers).FindOne(ctx,
		bson.M{"enquiry_id": enquiryID, "seller_id": sellerID}).Decode(&mapping)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding mapping for enquiry %s seller %s: %w",
			enquiryID.String(), sellerID.String(), err)
	}
	return &mapping, nil
}
