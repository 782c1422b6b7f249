package services

import (
	"context"
	"fmt"

	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"setup_account": {
		TemplateID: "setup_account",
		Locale:     "en-GB",
		Subject:    "Your parts enquiry: set up your account",
		Body:       "Hi {{.name}}, your enquiry has been sent to matching sellers. Set a password to track quotations: /la/{{.action_id}}",
	},
	"verify_email": {
		TemplateID: "verify_email",
		Locale:     "en-GB",
		Subject:    "Verify your email address",
		Body:       "Hi {{.name}}, please click here to verify your email address: /la/{{.action_id}}",
	},
	"password_reset": {
		TemplateID: "password_reset",
		Locale:     "en-GB",
		Subject:    "Reset your password",
		Body:       "Click here to choose a new password: /la/{{.action_id}}. The link expires shortly.",
	},
	"enquiry_confirmation": {
		TemplateID: "enquiry_confirmation",
		Locale:     "en-GB",
		Subject:    "We received your enquiry",
		Body:       "Hi {{.name}}, your enquiry {{.enquiry_id}} for a {{.vehicle}} has been sent to matching sellers. You will be emailed as quotations arrive.",
	},
	"new_enquiry_alert": {
		TemplateID: "new_enquiry_alert",
		Locale:     "en-GB",
		Subject:    "New parts enquiry matching your catalogue",
		Body:       "Hi {{.name}}, enquiry {{.enquiry_id}} for a {{.vehicle}} matches the product types you sell. Log in to respond.",
	},
	"quotation_received": {
		TemplateID: "quotation_received",
		Locale:     "en-GB",
		Subject:    "You have a new quotation",
		Body:       "Hi {{.name}}, a seller quoted {{.item_count}} item(s) totalling {{.total_price}} on your enquiry. Log in to review it.",
	},
	"quotation_status_update": {
		TemplateID: "quotation_status_update",
		Locale:     "en-GB",
		Subject:    "Quotation update",
		Body:       "Hi {{.name}}, an item on quotation {{.quotation_id}} is now {{.status}}.",
	},
	"chat_message": {
		TemplateID: "chat_message",
		Locale:     "en-GB",
		Subject:    "New message from {{.sender_name}}",
		Body:       "Hi {{.name}}, {{.sender_name}} sent you a message. Log in to read and reply.",
	},
	"feedback_reply": {
		TemplateID: "feedback_reply",
		Locale:     "en-GB",
		Subject:    "Re: {{.subject}}",
		Body:       "Hi {{.name}}, our team replied to your ticket \"{{.subject}}\". Log in to view the reply.",
	},
	"account_status": {
		TemplateID: "account_status",
		Locale:     "en-GB",
		Subject:    "Your account status changed",
		Body:       "Hi {{.name}}, your account is now {{.status}}. Contact support if you believe this is a mistake.",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: db,
	}
}

// GetTemplate retrieves an email template by ID and locale
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	collection := s.db.Collection(db.CollEmailTemplates)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := collection.FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// If template not found in DB, try to get from defaults
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	collection := s.db.Collection(db.CollEmailTemplates)
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}

	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}

	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	collection := s.db.Collection(db.CollEmailTemplates)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	_, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}

	return nil
}
