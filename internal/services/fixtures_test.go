package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// allCollections is the full set dropped before each service test so state
// never leaks between runs sharing a database name.
var allCollections = []string{
	db.CollUsers, db.CollVehicles, db.CollProductTypes, db.CollSellerCapabilities,
	db.CollEnquiries, db.CollEnquiryItems, db.CollEnquirySellers,
	db.CollQuotations, db.CollQuotationItems, db.CollMessages,
	db.CollFeedback, db.CollFeedbackMessages, db.CollLinkedActions, db.CollEmailTemplates,
}

func setupServiceTestDB(t *testing.T, dbName string) *mongo.Database {
	database := utils.SetupTestDB(t, dbName, allCollections...)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))
	return database
}

func testConfig() *config.Config {
	return &config.Config{
		SetupAccountTTL:    48 * time.Hour,
		VerifyEmailTTL:     30 * time.Minute,
		ResetAccessLinkTTL: 30 * time.Minute,
		GetCacheTTL:        time.Minute,
		MaxPhantomAge:      30 * 24 * time.Hour,
	}
}

// recordedSend is one notification captured by recordingNotifier.
type recordedSend struct {
	To         string
	TemplateID string
	Data       map[string]interface{}
}

// recordingNotifier captures enqueued notifications so tests can assert who
// was (and was not) emailed.
type recordingNotifier struct {
	mu    sync.Mutex
	sends []recordedSend
}

func (n *recordingNotifier) SendTemplate(ctx context.Context, to, templateID string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, recordedSend{To: to, TemplateID: templateID, Data: data})
	return nil
}

// recipients returns the addresses that received the given template.
func (n *recordingNotifier) recipients(templateID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sends {
		if s.TemplateID == templateID {
			out = append(out, s.To)
		}
	}
	return out
}

func insertTestUser(t *testing.T, database *mongo.Database, role models.UserRole, email string) *models.User {
	now := time.Now().UTC()
	user := &models.User{
		Base:          models.NewBase(),
		Name:          "Test " + string(role),
		Email:         email,
		Phone:         "07000000000",
		PasswordHash:  "x",
		Role:          role,
		Status:        models.UserStatusActive,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := database.Collection(db.CollUsers).InsertOne(context.Background(), user)
	require.NoError(t, err)
	return user
}

func insertStandardProductType(t *testing.T, database *mongo.Database, name string) *models.ProductType {
	pt := &models.ProductType{
		Base:      models.NewBase(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := database.Collection(db.CollProductTypes).InsertOne(context.Background(), pt)
	require.NoError(t, err)
	return pt
}

func testVehicle() models.Vehicle {
	return models.Vehicle{
		Make:      "Ford",
		Model:     "Focus",
		Year:      2018,
		BodyStyle: "Hatchback",
		Trim:      "Titanium",
		Gearbox:   "Manual",
		Fuel:      "Petrol",
	}
}
