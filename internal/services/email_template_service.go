package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
)

// Template IDs of the notifications the system sends.
const (
	TemplateWelcome          = "welcome"
	TemplateBookingRequested = "booking_requested"
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCanceled  = "booking_canceled"
)

// DefaultLocale is used when the recipient has no locale preference.
const DefaultLocale = "en-US"

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateWelcome: {
		TemplateID: TemplateWelcome,
		Locale:     DefaultLocale,
		Subject:    "Welcome to {{.app_name}}",
		Body:       "Hi {{.username}}, your {{.role}} account is ready.",
	},
	TemplateBookingRequested: {
		TemplateID: TemplateBookingRequested,
		Locale:     DefaultLocale,
		Subject:    "New booking request for {{.listing_title}}",
		Body:       "{{.tenant}} asked to stay at {{.listing_title}} from {{.start_date}} to {{.end_date}}. Booking {{.booking_id}} is pending your confirmation.",
	},
	TemplateBookingConfirmed: {
		TemplateID: TemplateBookingConfirmed,
		Locale:     DefaultLocale,
		Subject:    "Your booking at {{.listing_title}} is confirmed",
		Body:       "Your stay at {{.listing_title}}, {{.location}}, from {{.start_date}} to {{.end_date}} is confirmed.",
	},
	TemplateBookingCanceled: {
		TemplateID: TemplateBookingCanceled,
		Locale:     DefaultLocale,
		Subject:    "Booking at {{.listing_title}} canceled",
		Body:       "The booking {{.booking_id}} at {{.listing_title}} from {{.start_date}} to {{.end_date}} has been canceled.",
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

// GetTemplate retrieves an email template by ID and locale, falling back to the built-in default.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := s.db.Collection(db.EmailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate upserts an email template.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	template.GenIDIfEmpty()
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}
	update := bson.M{
		"$set":         bson.M{"subject": template.Subject, "body": template.Body},
		"$setOnInsert": bson.M{"_id": template.ID},
	}

	_, err := s.db.Collection(db.EmailTemplatesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	_, err := s.db.Collection(db.EmailTemplatesCollection).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}
