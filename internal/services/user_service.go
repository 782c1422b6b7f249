package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pratik860s/Autopart-Backend/internal/auth"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned when email/password authentication fails.
var ErrInvalidCredentials = errors.New("invalid email or password")

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     models.UserRole
}

// UserListFilter narrows admin user listings.
type UserListFilter struct {
	Role   models.UserRole
	Status models.UserStatus
	Search string // Matches name or email, case-insensitive
	Page   int
	Limit  int
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindBuyerByEmailPhone(ctx context.Context, email, phone string) (*models.User, error)
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	CreatePhantomBuyer(ctx context.Context, name, email, phone string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	SetUserCredentials(ctx context.Context, userID utils.SixID, password string) error
	MarkEmailVerified(ctx context.Context, userID utils.SixID) error
	UpdateProfile(ctx context.Context, userID utils.SixID, name, phone, profileImage string) error
	CompleteSellerSignup(ctx context.Context, userID utils.SixID, company models.CompanyDetails) error
	SetUserStatus(ctx context.Context, userID, adminUserID utils.SixID, status models.UserStatus) error
	SetSellerVerified(ctx context.Context, userID utils.SixID, verified bool) error
	ListUsers(ctx context.Context, filter UserListFilter) ([]models.User, int64, error)
	GetAllPhantomUserIDs(ctx context.Context) ([]utils.SixID, error)
	DeletePhantomUser(ctx context.Context, userID utils.SixID, maxAge time.Duration) error
}

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(db.CollUsers)
	filter := bson.M{"email": normalizeEmail(email), "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(db.CollUsers)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// FindBuyerByEmailPhone matches the buyer-resolution key used on anonymous
// enquiry submission: same email, same phone, buyer role.
func (s *userService) FindBuyerByEmailPhone(ctx context.Context, email, phone string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(db.CollUsers)
	filter := bson.M{
		"email":   normalizeEmail(email),
		"phone":   strings.TrimSpace(phone),
		"role":    models.RoleBuyer,
		"deleted": false,
	}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding buyer by email/phone: %w", err)
	}
	return &user, nil
}

// Register creates a credentialed account. Sellers start with status pending
// until an admin verifies them; buyers are active immediately but unverified
// by email.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	collection := s.db.Collection(db.CollUsers)

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	status := models.UserStatusActive
	if input.Role == models.RoleSeller {
		status = models.UserStatusPending
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:          strings.TrimSpace(input.Name),
		Email:         normalizeEmail(input.Email),
		Phone:         strings.TrimSpace(input.Phone),
		PasswordHash:  hashed,
		Role:          input.Role,
		Status:        status,
		EmailVerified: false,
		Phantom:       false,
		CreatedAt:     now,
		UpdatedAt:     now,
		NotificationPreferences: &models.NotificationPreferences{
			NewEnquiry:      true,
			QuotationUpdate: true,
			ChatMessage:     true,
			AccountStatus:   true,
		},
	}

	err = db.InsertOne(ctx, collection, user)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) && strings.Contains(err.Error(), "email_1") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting new user for %s: %w", input.Email, err)
	}

	return user, nil
}

// CreatePhantomBuyer creates a buyer account on behalf of an anonymous
// enquirer. A random placeholder password is set; the buyer claims the
// account through the password-set link emailed separately.
func (s *userService) CreatePhantomBuyer(ctx context.Context, name, email, phone string) (*models.User, error) {
	collection := s.db.Collection(db.CollUsers)

	placeholder, err := randomPassword()
	if err != nil {
		return nil, err
	}
	hashed, err := auth.HashPassword(placeholder)
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:          strings.TrimSpace(name),
		Email:         normalizeEmail(email),
		Phone:         strings.TrimSpace(phone),
		PasswordHash:  hashed,
		Role:          models.RoleBuyer,
		Status:        models.UserStatusActive,
		EmailVerified: false,
		Phantom:       true,
		CreatedAt:     now,
		UpdatedAt:     now,
		NotificationPreferences: &models.NotificationPreferences{
			NewEnquiry:      true,
			QuotationUpdate: true,
			ChatMessage:     true,
			AccountStatus:   true,
		},
	}

	err = db.InsertOne(ctx, collection, user)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) && strings.Contains(err.Error(), "email_1") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting phantom buyer for %s: %w", email, err)
	}

	return user, nil
}

// Authenticate verifies email/password and returns the account.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Phantom {
		// Account exists but was never claimed; the placeholder password is
		// unknown to everyone, so fail the same way as a wrong password.
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == models.UserStatusBanned {
		return nil, fmt.Errorf("account is banned")
	}
	return user, nil
}

// SetUserCredentials updates the user's password hash. It also clears the
// phantom flag and marks the email verified, since the link proving control
// of the mailbox was just used.
func (s *userService) SetUserCredentials(ctx context.Context, userID utils.SixID, password string) error {
	collection := s.db.Collection(db.CollUsers)

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password for user %s: %w", userID.String(), err)
	}

	update := bson.M{
		"$set": bson.M{
			"password":       hashed,
			"phantom":        false,
			"email_verified": true,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := collection.UpdateByID(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("error updating credentials for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	log.Printf("Credentials set for user %s", userID.String())
	return nil
}

// MarkEmailVerified flags the address as verified.
func (s *userService) MarkEmailVerified(ctx context.Context, userID utils.SixID) error {
	collection := s.db.Collection(db.CollUsers)
	update := bson.M{"$set": bson.M{"email_verified": true, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("error marking email verified for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdateProfile applies non-empty profile fields.
func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, name, phone, profileImage string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if name != "" {
		set["name"] = strings.TrimSpace(name)
	}
	if phone != "" {
		set["phone"] = strings.TrimSpace(phone)
	}
	if profileImage != "" {
		set["profile_image"] = profileImage
	}

	collection := s.db.Collection(db.CollUsers)
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error updating profile for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// CompleteSellerSignup stores the seller's company details. The account stays
// pending until an admin verifies it.
func (s *userService) CompleteSellerSignup(ctx context.Context, userID utils.SixID, company models.CompanyDetails) error {
	collection := s.db.Collection(db.CollUsers)
	filter := bson.M{"_id": userID, "role": models.RoleSeller, "deleted": false}
	update := bson.M{"$set": bson.M{"company": company, "updated_at": time.Now().UTC()}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error completing seller signup for %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetUserStatus is the admin status transition. An admin cannot change their
// own status.
func (s *userService) SetUserStatus(ctx context.Context, userID, adminUserID utils.SixID, status models.UserStatus) error {
	if userID == adminUserID {
		return fmt.Errorf("admin cannot change their own status")
	}
	collection := s.db.Collection(db.CollUsers)
	filter := bson.M{"_id": userID, "deleted": false}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error setting status for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	log.Printf("User %s status set to %s by admin %s", userID.String(), status, adminUserID.String())
	return nil
}

// SetSellerVerified flips the admin verification flag. Verifying also
// activates a pending seller.
func (s *userService) SetSellerVerified(ctx context.Context, userID utils.SixID, verified bool) error {
	collection := s.db.Collection(db.CollUsers)
	set := bson.M{"seller_verified": verified, "updated_at": time.Now().UTC()}
	if verified {
		set["status"] = models.UserStatusActive
	}
	filter := bson.M{"_id": userID, "role": models.RoleSeller, "deleted": false}
	result, err := collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("db error verifying seller %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListUsers is the paginated admin listing.
func (s *userService) ListUsers(ctx context.Context, filter UserListFilter) ([]models.User, int64, error) {
	collection := s.db.Collection(db.CollUsers)

	query := bson.M{"deleted": false}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		query["$or"] = []bson.M{
			{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
			{"email": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

// GetAllPhantomUserIDs retrieves the IDs of all non-deleted phantom users.
func (s *userService) GetAllPhantomUserIDs(ctx context.Context) ([]utils.SixID, error) {
	collection := s.db.Collection(db.CollUsers)
	filter := bson.M{"deleted": false, "phantom": true}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query phantom user IDs: %w", err)
	}
	defer cursor.Close(ctx)
	var results []struct {
		ID utils.SixID `bson:"_id"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode phantom user IDs: %w", err)
	}
	ids := make([]utils.SixID, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	return ids, nil
}

// DeletePhantomUser soft-deletes a phantom buyer older than maxAge that never
// claimed their account. Run from the background cleanup task.
func (s *userService) DeletePhantomUser(ctx context.Context, userID utils.SixID, maxAge time.Duration) error {
	collection := s.db.Collection(db.CollUsers)
	now := time.Now().UTC()
	filter := bson.M{
		"_id":        userID,
		"phantom":    true,
		"deleted":    false,
		"created_at": bson.M{"$lt": now.Add(-maxAge)},
	}
	update := bson.M{"$set": bson.M{"deleted": true, "deleted_at": now, "updated_at": now}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error deleting phantom user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		// Either claimed in the meantime or not old enough. Both fine.
		return nil
	}
	log.Printf("Cleaned up unclaimed phantom user %s", userID.String())
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
