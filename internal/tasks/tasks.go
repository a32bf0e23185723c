package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/config"
	"greendrake/rentals/internal/email"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/services"
	"greendrake/rentals/internal/utils"
)

// Task types.
const (
	TypeEmailDelivery       = "email:deliver"
	TypeBookingNotification = "booking:notify"
)

// BookingEvent names what happened to a booking.
type BookingEvent string

const (
	BookingRequested BookingEvent = "requested"
	BookingConfirmed BookingEvent = "confirmed"
	BookingCanceled  BookingEvent = "canceled"
)

// EventFor maps a booking status to the event announcing it.
func EventFor(status models.BookingStatus) (BookingEvent, bool) {
	switch status {
	case models.BookingPending:
		return BookingRequested, true
	case models.BookingConfirmed:
		return BookingConfirmed, true
	case models.BookingCanceled:
		return BookingCanceled, true
	}
	return "", false
}

// --- Task Client (Enqueuing tasks) ---

func redisClientOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisClientOpt(rdb))
}

// Enqueuer is the subset of asynq.Client used to enqueue tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EmailTaskPayload is a templated email to one recipient.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
}

// BookingNotificationPayload identifies the booking an event is about.
type BookingNotificationPayload struct {
	BookingID string       `json:"booking_id"`
	Event     BookingEvent `json:"event"`
}

func NewEmailDeliveryTask(payload EmailTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

func NewBookingNotificationTask(bookingID utils.SixID, event BookingEvent) (*asynq.Task, error) {
	data, err := json.Marshal(BookingNotificationPayload{BookingID: bookingID.String(), Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking notification payload: %w", err)
	}
	return asynq.NewTask(TypeBookingNotification, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// Notifier enqueues notification tasks. Failures are logged, never returned:
// a lost notification must not fail the request that caused it.
type Notifier struct {
	client Enqueuer
}

func NewNotifier(client Enqueuer) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task) {
	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("Error enqueuing %s task: %v", task.Type(), err)
		return
	}
	log.Printf("Enqueued %s task %s", task.Type(), info.ID)
}

// Welcome sends the welcome email to a newly registered user.
func (n *Notifier) Welcome(ctx context.Context, user *models.User, appName string) {
	task, err := NewEmailDeliveryTask(EmailTaskPayload{
		To:         user.Email,
		TemplateID: services.TemplateWelcome,
		Data: map[string]interface{}{
			"app_name": appName,
			"username": user.Username,
			"role":     string(user.Role),
		},
	})
	if err != nil {
		log.Printf("Error building welcome email for %s: %v", user.ID, err)
		return
	}
	n.enqueue(ctx, task)
}

// BookingChanged announces a booking's current status to the interested parties.
func (n *Notifier) BookingChanged(ctx context.Context, booking *models.Booking) {
	event, ok := EventFor(booking.Status)
	if !ok {
		return
	}
	task, err := NewBookingNotificationTask(booking.ID, event)
	if err != nil {
		log.Printf("Error building notification for booking %s: %v", booking.ID, err)
		return
	}
	n.enqueue(ctx, task)
}

// --- Task Server (Processing tasks) ---

// UserFinder looks up notification recipients.
type UserFinder interface {
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
}

// ListingFinder looks up the listing a booking belongs to.
type ListingFinder interface {
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
}

// BookingFinder looks up the booking a notification is about.
type BookingFinder interface {
	FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error)
}

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	emailTemplateService services.IEmailTemplateService
	userService          UserFinder
	listingService       ListingFinder
	bookingService       BookingFinder
	now                  func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	emailTemplateService services.IEmailTemplateService,
	userService UserFinder,
	listingService ListingFinder,
	bookingService BookingFinder,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		emailTemplateService: emailTemplateService,
		userService:          userService,
		listingService:       listingService,
		bookingService:       bookingService,
		now:                  time.Now,
	}
}

// SetupServer configures an Asynq server and the mux of task handlers it runs.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisClientOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeBookingNotification, processor.HandleBookingNotificationTask)
	fmt.Println("Registered background task handlers.")
	return srv, mux
}

// --- Task Handlers ---

// render substitutes {{.key}} placeholders with values from data.
func render(template string, data map[string]interface{}) string {
	for key, val := range data {
		template = strings.ReplaceAll(template, fmt.Sprintf("{{.%s}}", key), fmt.Sprintf("%v", val))
	}
	return template
}

// deliver renders a template and sends it.
func (p *TaskProcessor) deliver(ctx context.Context, payload EmailTaskPayload) error {
	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	msg := email.Message{
		From:       fromAddress,
		To:         payload.To,
		Subject:    render(tmpl.Subject, payload.Data),
		Body:       render(tmpl.Body, payload.Data),
		TemplateID: payload.TemplateID,
		Date:       p.now(),
	}
	if err := p.emailSender.Send(ctx, []string{payload.To}, msg.Subject, msg.Bytes()); err != nil {
		log.Printf("Email sending failed for %s (%s): %v", payload.To, payload.TemplateID, err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// HandleEmailDeliveryTask processes email delivery tasks.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}
	return p.deliver(ctx, payload)
}

// skipIfMissing turns a missing document into a non-retryable error.
func skipIfMissing(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s not found: %w", what, asynq.SkipRetry)
	}
	return fmt.Errorf("loading %s: %w", what, err)
}

// HandleBookingNotificationTask emails the parties of a booking about its latest event.
// Requests go to the landlord, confirmations to the tenant, cancellations to both.
// Events that no longer match the booking's status are dropped.
func (p *TaskProcessor) HandleBookingNotificationTask(ctx context.Context, t *asynq.Task) error {
	var payload BookingNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal booking notification payload: %v: %w", err, asynq.SkipRetry)
	}
	bookingID, err := utils.ParseSixID(payload.BookingID)
	if err != nil {
		return fmt.Errorf("invalid booking ID in payload: %w", asynq.SkipRetry)
	}

	booking, err := p.bookingService.FindBookingByID(ctx, bookingID)
	if err != nil {
		return skipIfMissing(err, "booking "+payload.BookingID)
	}
	if current, _ := EventFor(booking.Status); current != payload.Event {
		log.Printf("Booking %s is now %s, dropping stale %s notification", booking.ID, booking.Status, payload.Event)
		return nil
	}

	listing, err := p.listingService.FindListingByID(ctx, booking.ListingID)
	if err != nil {
		return skipIfMissing(err, "listing "+booking.ListingID.String())
	}
	tenant, err := p.userService.FindByID(ctx, booking.UserID)
	if err != nil {
		return skipIfMissing(err, "tenant "+booking.UserID.String())
	}
	landlord, err := p.userService.FindByID(ctx, listing.OwnerID)
	if err != nil {
		return skipIfMissing(err, "landlord "+listing.OwnerID.String())
	}

	data := map[string]interface{}{
		"booking_id":    booking.ID.String(),
		"listing_title": listing.Title,
		"location":      listing.Location,
		"start_date":    booking.StartDate.String(),
		"end_date":      booking.EndDate.String(),
		"tenant":        tenant.Username,
	}

	var templateID string
	var recipients []string
	switch payload.Event {
	case BookingRequested:
		templateID, recipients = services.TemplateBookingRequested, []string{landlord.Email}
	case BookingConfirmed:
		templateID, recipients = services.TemplateBookingConfirmed, []string{tenant.Email}
	case BookingCanceled:
		templateID, recipients = services.TemplateBookingCanceled, []string{tenant.Email, landlord.Email}
	default:
		return fmt.Errorf("unknown booking event %q: %w", payload.Event, asynq.SkipRetry)
	}

	for _, to := range recipients {
		if err := p.deliver(ctx, EmailTaskPayload{To: to, TemplateID: templateID, Data: data}); err != nil {
			return err
		}
	}
	return nil
}
