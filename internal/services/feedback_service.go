package services

import (
	"context"
	"errors"
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

// FeedbackThread is a ticket together with its message history.
type FeedbackThread struct {
	Feedback models.Feedback          `json:"feedback"`
	Messages []models.FeedbackMessage `json:"messages"`
}

// IFeedbackService manages support/feedback tickets.
type IFeedbackService interface {
	Submit(ctx context.Context, userID utils.SixID, subject, content string) (*FeedbackThread, error)
	// Reply appends a message to a ticket. Replies from admins move an open
	// ticket to replied and trigger an email to the ticket owner.
	Reply(ctx context.Context, feedbackID, authorID utils.SixID, authorRole models.UserRole, content string) (*models.FeedbackMessage, error)
	Thread(ctx context.Context, feedbackID, callerID utils.SixID, callerRole models.UserRole) (*FeedbackThread, error)
	ListForUser(ctx context.Context, userID utils.SixID) ([]models.Feedback, error)
	// ListAll is the admin inbox, optionally filtered by status.
	ListAll(ctx context.Context, status models.FeedbackStatus, page, pageSize int64) ([]models.Feedback, int64, error)
	UpdateStatus(ctx context.Context, feedbackID utils.SixID, status models.FeedbackStatus) error
}

// feedbackService implements IFeedbackService.
type feedbackService struct {
	db          *mongo.Database
	userService IUserService
	notifier    Notifier
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(database *mongo.Database, userService IUserService, notifier Notifier) IFeedbackService {
	return &feedbackService{
		db:          database,
		userService: userService,
		notifier:    notifier,
	}
}

func (s *feedbackService) Submit(ctx context.Context, userID utils.SixID, subject, content string) (*FeedbackThread, error) {
	subject = strings.TrimSpace(subject)
	content = strings.TrimSpace(content)
	if subject == "" {
		return nil, apperr.Validation("subject is required")
	}
	if content == "" {
		return nil, apperr.Validation("message content is required")
	}

	now := time.Now().UTC()
	feedback := &models.Feedback{
		UserID:    userID,
		Subject:   subject,
		Status:    models.FeedbackStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollFeedback), feedback); err != nil {
		return nil, apperr.Internal(err, "failed to create feedback ticket")
	}

	message := &models.FeedbackMessage{
		FeedbackID: feedback.ID,
		AuthorID:   userID,
		Content:    content,
		CreatedAt:  now,
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollFeedbackMessages), message); err != nil {
		// Remove the shell ticket so it does not show up empty.
		if _, derr := s.db.Collection(db.CollFeedback).DeleteOne(ctx, bson.M{"_id": feedback.ID}); derr != nil {
			log.Printf("Rollback: failed to delete feedback %s: %v", feedback.ID.String(), derr)
		}
		return nil, apperr.Internal(err, "failed to store feedback message")
	}

	return &FeedbackThread{Feedback: *feedback, Messages: []models.FeedbackMessage{*message}}, nil
}

func (s *feedbackService) Reply(ctx context.Context, feedbackID, authorID utils.SixID, authorRole models.UserRole, content string) (*models.FeedbackMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("message content is required")
	}

	feedback, err := s.findFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	fromAdmin := authorRole == models.RoleAdmin
	if !fromAdmin && feedback.UserID != authorID {
		return nil, apperr.Forbidden("not your ticket")
	}
	if feedback.Status == models.FeedbackStatusClosed {
		return nil, apperr.Conflict("ticket is closed")
	}

	message := &models.FeedbackMessage{
		FeedbackID: feedbackID,
		AuthorID:   authorID,
		FromAdmin:  fromAdmin,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.CollFeedbackMessages), message); err != nil {
		return nil, apperr.Internal(err, "failed to store reply")
	}

	update := bson.M{"updated_at": time.Now().UTC()}
	if fromAdmin && feedback.Status == models.FeedbackStatusOpen {
		update["status"] = models.FeedbackStatusReplied
	}
	if _, err := s.db.Collection(db.CollFeedback).UpdateByID(ctx, feedbackID, bson.M{"$set": update}); err != nil {
		log.Printf("Failed to bump feedback %s after reply: %v", feedbackID.String(), err)
	}

	if fromAdmin {
		s.notifyOwner(ctx, feedback)
	}
	return message, nil
}

func (s *feedbackService) notifyOwner(ctx context.Context, feedback *models.Feedback) {
	owner, err := s.userService.FindByID(ctx, feedback.UserID)
	if err != nil {
		log.Printf("Failed to load owner of feedback %s: %v", feedback.ID.String(), err)
		return
	}
	if !owner.EmailVerified {
		return
	}
	if err := s.notifier.SendTemplate(ctx, owner.Email, "feedback_reply", map[string]interface{}{
		"name":    owner.Name,
		"subject": feedback.Subject,
	}); err != nil {
		log.Printf("Failed to enqueue feedback reply notification: %v", err)
	}
}

func (s *feedbackService) Thread(ctx context.Context, feedbackID, callerID utils.SixID, callerRole models.UserRole) (*FeedbackThread, error) {
	feedback, err := s.findFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if callerRole != models.RoleAdmin && feedback.UserID != callerID {
		return nil, apperr.Forbidden("not your ticket")
	}

	cursor, err := s.db.Collection(db.CollFeedbackMessages).Find(ctx,
		bson.M{"feedback_id": feedbackID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal(err, "failed to query ticket messages")
	}
	defer cursor.Close(ctx)

	var messages []models.FeedbackMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, apperr.Internal(err, "failed to decode ticket messages")
	}
	return &FeedbackThread{Feedback: *feedback, Messages: messages}, nil
}

func (s *feedbackService) ListForUser(ctx context.Context, userID utils.SixID) ([]models.Feedback, error) {
	cursor, err := s.db.Collection(db.CollFeedback).Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, apperr.Internal(err, "failed to list tickets")
	}
	defer cursor.Close(ctx)

	var tickets []models.Feedback
	if err = cursor.All(ctx, &tickets); err != nil {
		return nil, apperr.Internal(err, "failed to decode tickets")
	}
	return tickets, nil
}

func (s *feedbackService) ListAll(ctx context.Context, status models.FeedbackStatus, page, pageSize int64) ([]models.Feedback, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	coll := s.db.Collection(db.CollFeedback)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to count tickets")
	}

	cursor, err := coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip((page-1)*pageSize).
		SetLimit(pageSize))
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to list tickets")
	}
	defer cursor.Close(ctx)

	var tickets []models.Feedback
	if err = cursor.All(ctx, &tickets); err != nil {
		return nil, 0, apperr.Internal(err, "failed to decode tickets")
	}
	return tickets, total, nil
}

func (s *feedbackService) UpdateStatus(ctx context.Context, feedbackID utils.SixID, status models.FeedbackStatus) error {
	switch status {
	case models.FeedbackStatusOpen, models.FeedbackStatusReplied, models.FeedbackStatusResolved, models.FeedbackStatusClosed:
	default:
		return apperr.Validation("invalid ticket status %q", status)
	}

	result, err := s.db.Collection(db.CollFeedback).UpdateByID(ctx, feedbackID,
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return apperr.Internal(err, "failed to update ticket status")
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("ticket not found")
	}
	return nil
}

func (s *feedbackService) findFeedback(ctx context.Context, feedbackID utils.SixID) (*models.Feedback, error) {
	var feedback models.Feedback
	err := s.db.Collection(db.CollFeedback).FindOne(ctx, bson.M{"_id": feedbackID}).Decode(&feedback)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("ticket not found")
		}
		return nil, apperr.Internal(err, "failed to load ticket")
	}
	return &feedback, nil
}
