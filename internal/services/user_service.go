package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/auth"
	"greendrake/rentals/internal/config"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrUsernameExists is returned when the requested username is taken.
var ErrUsernameExists = errors.New("username already taken")

const maxUsernameLength = 50

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	RePassword string
	Role       string
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// userService implements IUserService.
type userService struct {
	db         *mongo.Database
	validate   *validator.Validate
	passwordRe *regexp.Regexp
}

// NewUserService creates a new UserService. cfg.PasswordRegexp is validated by config.Load.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	return &userService{
		db:         db,
		validate:   validator.New(),
		passwordRe: regexp.MustCompile(cfg.PasswordRegexp),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks the input and returns the parsed role.
func (s *userService) validateRegistration(in RegisterInput) (models.Role, error) {
	verr := &apperr.ValidationError{}

	switch {
	case in.Username == "":
		verr.Add("username", "this field is required")
	case len(in.Username) > maxUsernameLength:
		verr.Add("username", fmt.Sprintf("ensure this field has no more than %d characters", maxUsernameLength))
	case !usernameRe.MatchString(in.Username):
		verr.Add("username", "may contain only letters, numbers and @/./+/-/_ characters")
	}

	if in.Email == "" {
		verr.Add("email", "this field is required")
	} else if err := s.validate.Var(in.Email, "email,max=254"); err != nil {
		verr.Add("email", "enter a valid email address")
	}

	if in.Password == "" {
		verr.Add("password", "this field is required")
	} else if !s.passwordRe.MatchString(in.Password) {
		verr.Add("password", "password does not meet the requirements")
	}
	if in.Password != in.RePassword {
		verr.Add("re_password", "passwords do not match")
	}

	role, ok := models.ParseRole(in.Role)
	if !ok {
		verr.Add("role", fmt.Sprintf("%q is not a valid choice", in.Role))
	}
	return role, verr.OrNil()
}

// Register creates an active account with a hashed password.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	role, err := s.validateRegistration(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.UsersCollection)
	now := time.Now().UTC()
	var newUser *models.User

	operation := func() error {
		newUser = &models.User{
			Base:         models.NewBase(),
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		switch db.DuplicateKeyIndex(err) {
		case db.IndexUserEmail:
			return nil, ErrEmailExists
		case db.IndexUserUsername:
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("error inserting user %s: %w", in.Email, err)
	}

	log.Printf("Registered user %s (%s) with role %s", newUser.ID, newUser.Email, newUser.Role)
	return newUser, nil
}

// Authenticate checks credentials and records the login time.
// Unknown emails, wrong passwords and inactive accounts all yield apperr.ErrAuthentication.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			auth.BurnPasswordCheck(password)
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrAuthentication)
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) || !user.IsActive {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrAuthentication)
	}

	now := time.Now().UTC()
	_, err = s.db.Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"last_login": now}},
	)
	if err != nil {
		log.Printf("Warning: failed to record last login for user %s: %v", user.ID, err)
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": email, "deleted": false}

	err := s.db.Collection(db.UsersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	filter := bson.M{"_id": userID, "deleted": false}

	err := s.db.Collection(db.UsersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID, err)
	}
	return &user, nil
}

// ListUsers returns all non-deleted users, oldest first.
func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return users, nil
}
