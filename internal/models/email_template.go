package models

// EmailTemplate is a notification template stored in the DB.
// Subject and Body use {{.key}} placeholders filled from the task payload.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"template_id"` // e.g., "booking_confirmed"
	Locale     string `bson:"locale" json:"locale"`
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
