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

// QuotationItemInput is one priced line in a createQuotation call.
type QuotationItemInput struct {
	EnquiryItemID    utils.SixID                `json:"enquiry_item_id"`
	Status           models.QuotationItemStatus `json:"status,omitempty"`
	QuotedPrice      float64                    `json:"quoted_price"`
	DeliveryTime     string                     `json:"delivery_time,omitempty"`
	DeliveryCharges  float64                    `json:"delivery_charges,omitempty"`
	Condition        string                     `json:"condition,omitempty"`
	Guarantee        string                     `json:"guarantee,omitempty"`
	InvoiceType      string                     `json:"invoice_type,omitempty"`
	Remarks          string                     `json:"remarks,omitempty"`
	Subtotal         float64                    `json:"subtotal,omitempty"`
	PAndP            float64                    `json:"p_and_p,omitempty"`
	Discount         float64                    `json:"discount,omitempty"`
	TotalExVAT       float64                    `json:"total_ex_vat,omitempty"`
	VATPercent       float64                    `json:"vat_percent,omitempty"`
	VATAmount        float64                    `json:"vat_amount,omitempty"`
	GrandTotal       float64                    `json:"grand_total,omitempty"`
	IsFreeDelivery   bool                       `json:"is_free_delivery,omitempty"`
	IsCollectionOnly bool                       `json:"is_collection_only,omitempty"`
	IsVATExempt      bool                       `json:"is_vat_exempt,omitempty"`
}

// QuotationWithItems pairs a quotation with its priced lines.
type QuotationWithItems struct {
	Quotation models.Quotation       `json:"quotation"`
	Items     []models.QuotationItem `json:"items"`
}

// IQuotationService defines the interface for the quotation workflow.
type IQuotationService interface {
	Create(ctx context.Context, enquiryID, sellerID utils.SixID, items []QuotationItemInput, notes string) (*QuotationWithItems, error)
	// UpdateItemStatus is role-and-relationship gated: the enquiry's buyer
	// may set accepted/rejected, the quotation's seller may set completed.
	UpdateItemStatus(ctx context.Context, itemID, requesterID utils.SixID, requesterRole models.UserRole, newStatus models.QuotationItemStatus) error
	// EditItem applies a partial update; nil patch fields stay untouched,
	// non-nil fields overwrite including zeros.
	EditItem(ctx context.Context, itemID, sellerID utils.SixID, patch models.QuotationItemPatch) (*models.QuotationItem, error)
	ListByEnquiry(ctx context.Context, enquiryID, callerID utils.SixID, callerRole models.UserRole) ([]QuotationWithItems, error)
	ListBySeller(ctx context.Context, sellerID utils.SixID) ([]QuotationWithItems, error)
	FindByID(ctx context.Context, quotationID utils.SixID) (*models.Quotation, error)
	GetItems(ctx context.Context, quotationID utils.SixID) ([]models.QuotationItem, error)
}

// quotationService implements IQuotationService.
type quotationService struct {
	db          *mongo.Database
	userService IUserService
	enquiries   IEnquiryService
	notifier    Notifier
}

// NewQuotationService creates a new QuotationService.
func NewQuotationService(database *mongo.Database, userService IUserService, enquiries IEnquiryService, notifier Notifier) IQuotationService {
	return &quotationService{
		db:          database,
		userService: userService,
		enquiries:   enquiries,
		notifier:    notifier,
	}
}

// Create runs the precondition chain, then writes the quotation and its
// items, recomputing total_price as the sum of item quoted prices. The
// (enquiry_id, seller_id) unique index backs the at-most-one invariant for
// concurrent submissions; the sequential check keeps the Conflict error
// informative.
func (s *quotationService) Create(ctx context.Context, enquiryID, sellerID utils.SixID, items []QuotationItemInput, notes string) (*QuotationWithItems, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one quotation item is required")
	}

	// Enquiry must exist.
	enquiry, err := s.enquiries.FindByID(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("enquiry not found")
		}
		return nil, apperr.Internal(err, "failed to load enquiry")
	}

	// Mapping must exist with status accepted. Covers both "not matched"
	// and "not yet accepted".
	mapping, err := s.enquiries.FindMapping(ctx, enquiryID, sellerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Forbidden("no accepted mapping for this enquiry")
		}
		return nil, apperr.Internal(err, "failed to check seller mapping")
	}
	if mapping.Status != models.MappingStatusAccepted {
		return nil, apperr.Forbidden("enquiry must be accepted before quoting")
	}

	// No prior quotation for this pair.
	count, err := s.db.Collection(db.CollQuotations).CountDocuments(ctx,
		bson.M{"enquiry_id": enquiryID, "seller_id": sellerID},
		options.Count().SetLimit(1))
	if err != nil {
		return nil, apperr.Internal(err, "failed to check existing quotation")
	}
	if count > 0 {
		return nil, apperr.Conflict("a quotation for this enquiry already exists")
	}

	// Every item must reference one of the enquiry's own items.
	enquiryItems, err := s.enquiries.GetItems(ctx, enquiryID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load enquiry items")
	}
	valid := make(map[utils.SixID]bool, len(enquiryItems))
	for _, item := range enquiryItems {
		valid[item.ID] = true
	}
	for _, input := range items {
		if !valid[input.EnquiryItemID] {
			return nil, apperr.Validation("item %s does not belong to this enquiry", input.EnquiryItemID.String())
		}
		if input.Status != "" && !models.ValidQuotationItemStatus(input.Status) {
			return nil, apperr.Validation("invalid item status %q", input.Status)
		}
	}

	now := time.Now().UTC()
	quotation := &models.Quotation{
		EnquiryID: enquiryID,
		SellerID:  sellerID,
		Notes:     strings.TrimSpace(notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollQuotations), quotation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			// Lost a concurrent race for the same pair.
			return nil, apperr.Conflict("a quotation for this enquiry already exists")
		}
		return nil, apperr.Internal(err, "failed to create quotation")
	}

	var total float64
	quotationItems := make([]models.QuotationItem, len(items))
	itemDocs := make([]interface{}, len(items))
	for i, input := range items {
		status := input.Status
		if status == "" {
			status = models.QuotationItemPending
		}
		quotationItems[i] = models.QuotationItem{
			Base:             models.NewBase(),
			QuotationID:      quotation.ID,
			EnquiryItemID:    input.EnquiryItemID,
			Status:           status,
			QuotedPrice:      input.QuotedPrice,
			DeliveryTime:     input.DeliveryTime,
			DeliveryCharges:  input.DeliveryCharges,
			Condition:        input.Condition,
			Guarantee:        input.Guarantee,
			InvoiceType:      input.InvoiceType,
			Remarks:          input.Remarks,
			Subtotal:         input.Subtotal,
			PAndP:            input.PAndP,
			Discount:         input.Discount,
			TotalExVAT:       input.TotalExVAT,
			VATPercent:       input.VATPercent,
			VATAmount:        input.VATAmount,
			GrandTotal:       input.GrandTotal,
			IsFreeDelivery:   input.IsFreeDelivery,
			IsCollectionOnly: input.IsCollectionOnly,
			IsVATExempt:      input.IsVATExempt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		itemDocs[i] = quotationItems[i]
		total += input.QuotedPrice
	}

	if _, err := s.db.Collection(db.CollQuotationItems).InsertMany(ctx, itemDocs); err != nil {
		// Undo the quotation so no empty shell is left behind.
		s.rollbackQuotation(ctx, quotation.ID)
		return nil, apperr.Internal(err, "failed to create quotation items")
	}

	if _, err := s.db.Collection(db.CollQuotations).UpdateByID(ctx, quotation.ID,
		bson.M{"$set": bson.M{"total_price": total, "updated_at": time.Now().UTC()}}); err != nil {
		s.rollbackQuotation(ctx, quotation.ID)
		return nil, apperr.Internal(err, "failed to persist quotation total")
	}
	quotation.TotalPrice = total

	s.notifyQuotationCreated(ctx, enquiry, quotation, len(quotationItems))

	return &QuotationWithItems{Quotation: *quotation, Items: quotationItems}, nil
}

func (s *quotationService) rollbackQuotation(ctx context.Context, quotationID utils.SixID) {
	if _, err := s.db.Collection(db.CollQuotationItems).DeleteMany(ctx, bson.M{"quotation_id": quotationID}); err != nil {
		log.Printf("Rollback: failed to delete items for quotation %s: %v", quotationID.String(), err)
	}
	if _, err := s.db.Collection(db.CollQuotations).DeleteOne(ctx, bson.M{"_id": quotationID}); err != nil {
		log.Printf("Rollback: failed to delete quotation %s: %v", quotationID.String(), err)
	}
}

func (s *quotationService) notifyQuotationCreated(ctx context.Context, enquiry *models.Enquiry, quotation *models.Quotation, itemCount int) {
	buyer, err := s.userService.FindByID(ctx, enquiry.BuyerID)
	if err != nil {
		log.Printf("Failed to load buyer %s for quotation notification: %v", enquiry.BuyerID.String(), err)
		return
	}
	if prefs := buyer.NotificationPreferences; prefs != nil && !prefs.QuotationUpdate {
		return
	}
	if err := s.notifier.SendTemplate(ctx, buyer.Email, "quotation_received", map[string]interface{}{
		"name":         buyer.Name,
		"enquiry_id":   enquiry.ID.String(),
		"quotation_id": quotation.ID.String(),
		"item_count":   itemCount,
		"total_price":  fmt.Sprintf("%.2f", quotation.TotalPrice),
	}); err != nil {
		log.Printf("Failed to enqueue quotation notification for buyer %s: %v", buyer.ID.String(), err)
	}
}

// UpdateItemStatus transitions one item. Each item is independently gated;
// there is no requirement that completed was previously accepted.
func (s *quotationService) UpdateItemStatus(ctx context.Context, itemID, requesterID utils.SixID, requesterRole models.UserRole, newStatus models.QuotationItemStatus) error {
	if !models.ValidQuotationItemStatus(newStatus) {
		return apperr.Validation("invalid status %q", newStatus)
	}

	item, quotation, enquiry, err := s.loadItemChain(ctx, itemID)
	if err != nil {
		return err
	}

	switch newStatus {
	case models.QuotationItemAccepted, models.QuotationItemRejected:
		// Only the enquiry's buyer.
		if enquiry.BuyerID != requesterID {
			return apperr.Forbidden("only the enquiry's buyer may %s an item", newStatus)
		}
	case models.QuotationItemCompleted:
		// Only the quotation's seller.
		if quotation.SellerID != requesterID {
			return apperr.Forbidden("only the quotation's seller may complete an item")
		}
	default:
		// pending is the initial state, not a transition target.
		return apperr.Forbidden("cannot move an item to %s", newStatus)
	}

	_, err = s.db.Collection(db.CollQuotationItems).UpdateByID(ctx, item.ID,
		bson.M{"$set": bson.M{"status": newStatus, "updated_at": time.Now().UTC()}})
	if err != nil {
		return apperr.Internal(err, "failed to update item status")
	}

	s.notifyItemStatus(ctx, quotation, enquiry, newStatus)
	return nil
}

func (s *quotationService) notifyItemStatus(ctx context.Context, quotation *models.Quotation, enquiry *models.Enquiry, status models.QuotationItemStatus) {
	// Status set by the buyer notifies the seller, and vice versa.
	recipientID := quotation.SellerID
	if status == models.QuotationItemCompleted {
		recipientID = enquiry.BuyerID
	}
	recipient, err := s.userService.FindByID(ctx, recipientID)
	if err != nil {
		log.Printf("Failed to load user %s for status notification: %v", recipientID.String(), err)
		return
	}
	if prefs := recipient.NotificationPreferences; prefs != nil && !prefs.QuotationUpdate {
		return
	}
	if err := s.notifier.SendTemplate(ctx, recipient.Email, "quotation_status_update", map[string]interface{}{
		"name":         recipient.Name,
		"quotation_id": quotation.ID.String(),
		"status":       string(status),
	}); err != nil {
		log.Printf("Failed to enqueue status notification: %v", err)
	}
}

// EditItem applies the patch. Only the owning quotation's seller may edit.
// Applying the same patch twice yields the same stored state.
func (s *quotationService) EditItem(ctx context.Context, itemID, sellerID utils.SixID, patch models.QuotationItemPatch) (*models.QuotationItem, error) {
	item, quotation, _, err := s.loadItemChain(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if quotation.SellerID != sellerID {
		return nil, apperr.Forbidden("only the quotation's seller may edit its items")
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	applyPatch(set, patch)
	if len(set) == 1 && patch.IsEmpty() {
		// Nothing to change; return current state.
		return item, nil
	}

	if _, err := s.db.Collection(db.CollQuotationItems).UpdateByID(ctx, item.ID, bson.M{"$set": set}); err != nil {
		return nil, apperr.Internal(err, "failed to edit quotation item")
	}

	// Re-sum the quotation total if the quoted price moved.
	if patch.QuotedPrice != nil {
		if err := s.recomputeTotal(ctx, quotation.ID); err != nil {
			return nil, err
		}
	}

	var updated models.QuotationItem
	if err := s.db.Collection(db.CollQuotationItems).FindOne(ctx, bson.M{"_id": item.ID}).Decode(&updated); err != nil {
		return nil, apperr.Internal(err, "failed to re-read quotation item")
	}
	return &updated, nil
}

// applyPatch copies the provided fields into the $set document. Explicit
// zeros are applied; omitted (nil) fields are not.
func applyPatch(set bson.M, patch models.QuotationItemPatch) {
	if patch.QuotedPrice != nil {
		set["quoted_price"] = *patch.QuotedPrice
	}
	if patch.DeliveryTime != nil {
		set["delivery_time"] = *patch.DeliveryTime
	}
	if patch.DeliveryCharges != nil {
		set["delivery_charges"] = *patch.DeliveryCharges
	}
	if patch.Condition != nil {
		set["condition"] = *patch.Condition
	}
	if patch.Guarantee != nil {
		set["guarantee"] = *patch.Guarantee
	}
	if patch.InvoiceType != nil {
		set["invoice_type"] = *patch.InvoiceType
	}
	if patch.Remarks != nil {
		set["remarks"] = *patch.Remarks
	}
	if patch.Subtotal != nil {
		set["subtotal"] = *patch.Subtotal
	}
	if patch.PAndP != nil {
		set["p_and_p"] = *patch.PAndP
	}
	if patch.Discount != nil {
		set["discount"] = *patch.Discount
	}
	if patch.TotalExVAT != nil {
		set["total_ex_vat"] = *patch.TotalExVAT
	}
	if patch.VATPercent != nil {
		set["vat_percent"] = *patch.VATPercent
	}
	if patch.VATAmount != nil {
		set["vat_amount"] = *patch.VATAmount
	}
	if patch.GrandTotal != nil {
		set["grand_total"] = *patch.GrandTotal
	}
	if patch.IsFreeDelivery != nil {
		set["is_free_delivery"] = *patch.IsFreeDelivery
	}
	if patch.IsCollectionOnly != nil {
		set["is_collection_only"] = *patch.IsCollectionOnly
	}
	if patch.IsVATExempt != nil {
		set["is_vat_exempt"] = *patch.IsVATExempt
	}
}

func (s *quotationService) recomputeTotal(ctx context.Context, quotationID utils.SixID) error {
	items, err := s.GetItems(ctx, quotationID)
	if err != nil {
		return apperr.Internal(err, "failed to load items for total recompute")
	}
	var total float64
	for _, item := range items {
		total += item.QuotedPrice
	}
	if _, err := s.db.Collection(db.CollQuotations).UpdateByID(ctx, quotationID,
		bson.M{"$set": bson.M{"total_price": total, "updated_at": time.Now().UTC()}}); err != nil {
		return apperr.Internal(err, "failed to persist recomputed total")
	}
	return nil
}

// loadItemChain resolves item → quotation → enquiry, the authorization
// context every item operation needs.
func (s *quotationService) loadItemChain(ctx context.Context, itemID utils.SixID) (*models.QuotationItem, *models.Quotation, *models.Enquiry, error) {
	var item models.QuotationItem
	err := s.db.Collection(db.CollQuotationItems).FindOne(ctx, bson.M{"_id": itemID}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, nil, apperr.NotFound("quotation item not found")
		}
		return nil, nil, nil, apperr.Internal(err, "failed to load quotation item")
	}

	quotation, err := s.FindByID(ctx, item.QuotationID)
	if err != nil {
		return nil, nil, nil, apperr.Internal(err, "failed to load parent quotation")
	}

	enquiry, err := s.enquiries.FindByID(ctx, quotation.EnquiryID)
	if err != nil {
		return nil, nil, nil, apperr.Internal(err, "failed to load parent enquiry")
	}

	return &item, quotation, enquiry, nil
}

// ListByEnquiry returns all quotations against an enquiry. The buyer and
// admins see all of them; a seller sees only their own.
func (s *quotationService) ListByEnquiry(ctx context.Context, enquiryID, callerID utils.SixID, callerRole models.UserRole) ([]QuotationWithItems, error) {
	enquiry, err := s.enquiries.FindByID(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("enquiry not found")
		}
		return nil, apperr.Internal(err, "failed to load enquiry")
	}

	filter := bson.M{"enquiry_id": enquiryID}
	switch {
	case callerRole == models.RoleAdmin, enquiry.BuyerID == callerID:
		// Full view.
	case callerRole == models.RoleSeller:
		filter["seller_id"] = callerID
	default:
		return nil, apperr.Forbidden("not authorized to view these quotations")
	}

	return s.listWithItems(ctx, filter)
}

// ListBySeller returns the seller's quotations, newest first.
func (s *quotationService) ListBySeller(ctx context.Context, sellerID utils.SixID) ([]QuotationWithItems, error) {
	return s.listWithItems(ctx, bson.M{"seller_id": sellerID})
}

func (s *quotationService) listWithItems(ctx context.Context, filter bson.M) ([]QuotationWithItems, error) {
	cursor, err := s.db.Collection(db.CollQuotations).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, apperr.Internal(err, "failed to list quotations")
	}
	defer cursor.Close(ctx)

	var quotations []models.Quotation
	if err = cursor.All(ctx, &quotations); err != nil {
		return nil, apperr.Internal(err, "failed to decode quotations")
	}

	result := make([]QuotationWithItems, 0, len(quotations))
	for _, q := range quotations {
		items, err := s.GetItems(ctx, q.ID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load quotation items")
		}
		result = append(result, QuotationWithItems{Quotation: q, Items: items})
	}
	return result, nil
}

// FindByID retrieves a quotation document.
func (s *quotationService) FindByID(ctx context.Context, quotationID utils.SixID) (*models.Quotation, error) {
	var quotation models.Quotation
	err := s.db.Collection(db.CollQuotations).FindOne(ctx, bson.M{"_id": quotationID}).Decode(&quotation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding quotation %s: %w", quotationID.String(), err)
	}
	return &quotation, nil
}

// GetItems returns a quotation's items.
func (s *quotationService) GetItems(ctx context.Context, quotationID utils.SixID) ([]models.QuotationItem, error) {
	cursor, err := s.db.Collection(db.CollQuotationItems).Find(ctx, bson.M{"quotation_id": quotationID})
	if err != nil {
		return nil, fmt.Errorf("failed to query items for quotation %s: %w", quotationID.String(), err)
	}
	defer cursor.Close(ctx)

	var items []models.QuotationItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items for quotation %s: %w", quotationID.String(), err)
	}
	return items, nil
}
