package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// ILinkedActionService defines the interface for managing linked actions.
type ILinkedActionService interface {
	CreateSetupAccountAction(ctx context.Context, userID utils.SixID) (*models.LinkedAction, error)
	CreateVerifyEmailAction(ctx context.Context, userID utils.SixID) (*models.LinkedAction, error)
	CreatePasswordResetAction(ctx context.Context, userID utils.SixID) (*models.LinkedAction, error)
	FindAndValidateAction(ctx context.Context, actionIDStr string, expectedType models.LinkedActionType) (*models.LinkedAction, error)
	MarkActionExecuted(ctx context.Context, actionID utils.SixID) error
	FindByID(ctx context.Context, actionID utils.SixID) (*models.LinkedAction, error)
}

// linkedActionService implements ILinkedActionService.
type linkedActionService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewLinkedActionService creates a new LinkedActionService.
func NewLinkedActionService(db *mongo.Database, cfg *config.Config) ILinkedActionService {
	return &linkedActionService{db: db, cfg: cfg}
}

// CreateSetupAccountAction issues the password-set link for a phantom buyer.
// Distinct from the login token: the action id is the secret, it is single
// use, and it expires on its own schedule.
func (s *linkedActionService) CreateSetupAccountAction(ctx context.Context, userID utils.SixID) (*models.LinkedAction, error) {
	return s.createAction(ctx, userID, models.ActionSetupAccount, s.cfg.SetupAccountTTL, nil)
}

// CreateVerifyEmailAction issues the email verification link sent on signup.
func (s *linkedActionService) CreateVerifyEmailAction(ctx context.Context, userID utils.SixID) (*models.LinkedAction, error) {
	return s.createAction(ctx, userID, models.ActionVerifyEmail, s.cfg.VerifyEmailTTL, nil)
}

// CreatePasswordResetAction issues a forgot-password link.
func (s *linkedActionService) CreatePasswordResetAction(ctx context.Context, userID utils.SixID) (*models.LinkedAction, error) {
	return s.createAction(ctx, userID, models.ActionPasswordReset, s.cfg.ResetAccessLinkTTL, nil)
}

// createAction is a helper to create different types of linked actions.
func (s *linkedActionService) createAction(ctx context.Context, userID utils.SixID, actionType models.LinkedActionType, ttl time.Duration, data map[string]interface{}) (*models.LinkedAction, error) {
	now := time.Now().UTC()
	action := &models.LinkedAction{
		UserID:    userID,
		Type:      actionType,
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Executed:  nil,
		Deleted:   false,
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollLinkedActions), action); err != nil {
		return nil, fmt.Errorf("failed to create %s action for user %s: %w", actionType, userID.String(), err)
	}
	return action, nil
}

// FindAndValidateAction finds and validates a linked action by ID.
// Checks expiry, execution status, deletion status and the expected type.
// actionIDStr is the Crockford Base32 representation of the SixID.
func (s *linkedActionService) FindAndValidateAction(ctx context.Context, actionIDStr string, expectedType models.LinkedActionType) (*models.LinkedAction, error) {
	actionID, err := utils.ParseSixID(actionIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid action ID format")
	}

	collection := s.db.Collection(db.CollLinkedActions)
	filter := bson.M{
		"_id":        actionID,
		"executed":   nil,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
		"deleted":    false,
	}
	if expectedType != "" {
		filter["type"] = expectedType
	}

	var action models.LinkedAction
	err = collection.FindOne(ctx, filter).Decode(&action)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("action link is invalid, expired, or already used")
		}
		return nil, fmt.Errorf("database error validating action %s: %w", actionIDStr, err)
	}

	return &action, nil
}

// MarkActionExecuted marks a linked action as executed.
func (s *linkedActionService) MarkActionExecuted(ctx context.Context, actionID utils.SixID) error {
	collection := s.db.Collection(db.CollLinkedActions)
	now := time.Now().UTC()
	// Filter on executed=nil so concurrent redemptions race to a single winner.
	result, err := collection.UpdateOne(ctx,
		bson.M{"_id": actionID, "executed": nil},
		bson.M{"$set": bson.M{"executed": now}})
	if err != nil {
		return fmt.Errorf("failed to mark action %s as executed: %w", actionID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("action %s not found or already executed", actionID.String())
	}
	return nil
}

// FindByID retrieves a linked action by its ID, regardless of its status.
func (s *linkedActionService) FindByID(ctx context.Context, actionID utils.SixID) (*models.LinkedAction, error) {
	collection := s.db.Collection(db.CollLinkedActions)
	var action models.LinkedAction
	err := collection.FindOne(ctx, bson.M{"_id": actionID}).Decode(&action)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("action with ID %s not found", actionID.String())
		}
		return nil, fmt.Errorf("database error finding action %s: %w", actionID.String(), err)
	}
	return &action, nil
}
