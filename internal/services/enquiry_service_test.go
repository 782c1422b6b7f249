package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

func newEnquiryServiceForTest(database *mongo.Database) (IEnquiryService, IUserService, ICapabilityService) {
	cfg := testConfig()
	userSvc := NewUserService(database)
	vehicleSvc := NewVehicleService(database, nil, cfg)
	productTypeSvc := NewProductTypeService(database)
	capabilitySvc := NewCapabilityService(database)
	linkedActionSvc := NewLinkedActionService(database, cfg)
	enquirySvc := NewEnquiryService(database, userSvc, vehicleSvc, productTypeSvc, capabilitySvc, linkedActionSvc, NopNotifier{})
	return enquirySvc, userSvc, capabilitySvc
}

func TestEnquiryService_CreateEnquiry_FullPipeline(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_create")
	svc, _, capSvc := newEnquiryServiceForTest(database)
	ctx := context.Background()

	brakePads := insertStandardProductType(t, database, "Brake Pads")
	alternator := insertStandardProductType(t, database, "Alternator")

	// One seller services brake pads, another services something unrelated.
	matched := insertTestUser(t, database, models.RoleSeller, "matched@example.com")
	unmatched := insertTestUser(t, database, models.RoleSeller, "unmatched@example.com")
	exhaust := insertStandardProductType(t, database, "Exhaust")
	require.NoError(t, capSvc.SetCapabilities(ctx, matched.ID, []utils.SixID{brakePads.ID}))
	require.NoError(t, capSvc.SetCapabilities(ctx, unmatched.ID, []utils.SixID{exhaust.ID}))

	input := CreateEnquiryInput{
		BuyerName:  "Alice",
		BuyerEmail: "alice@example.com",
		BuyerPhone: "07123456789",
		Vehicle:    testVehicle(),
		Parts: []EnquiryPartInput{
			{Name: "Brake Pads", Details: "Front axle"},
			{Name: "Alternator"},
		},
		Message: "Need these urgently",
	}

	result, err := svc.CreateEnquiry(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Buyer was auto-created as a phantom account.
	assert.True(t, result.IsNewUser)
	var buyer models.User
	err = database.Collection(db.CollUsers).FindOne(ctx, bson.M{"email": "alice@example.com"}).Decode(&buyer)
	require.NoError(t, err)
	assert.True(t, buyer.Phantom)
	assert.Equal(t, models.RoleBuyer, buyer.Role)
	assert.Equal(t, buyer.ID, result.Enquiry.BuyerID)

	// A setup-account link was issued for the new buyer.
	actionCount, err := database.Collection(db.CollLinkedActions).CountDocuments(ctx,
		bson.M{"user_id": buyer.ID, "type": models.ActionSetupAccount})
	require.NoError(t, err)
	assert.Equal(t, int64(1), actionCount)

	// One item per requested part, resolved against the standard catalog.
	require.Len(t, result.Items, 2)
	assert.Equal(t, brakePads.ID, result.Items[0].ProductTypeID)
	assert.Equal(t, alternator.ID, result.Items[1].ProductTypeID)
	assert.Equal(t, "Front axle", result.Items[0].Details)

	// Only the seller whose capabilities intersect was matched, with a
	// pending mapping persisted.
	require.Len(t, result.MatchedSellerIDs, 1)
	assert.Equal(t, matched.ID, result.MatchedSellerIDs[0])
	var mapping models.EnquirySeller
	err = database.Collection(db.CollEnquirySellers).FindOne(ctx,
		bson.M{"enquiry_id": result.Enquiry.ID, "seller_id": matched.ID}).Decode(&mapping)
	require.NoError(t, err)
	assert.Equal(t, models.MappingStatusPending, mapping.Status)

	// The fitment tuple landed in the vehicle catalog exactly once.
	vehicleCount, err := database.Collection(db.CollVehicles).CountDocuments(ctx, bson.M{"make": "Ford"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), vehicleCount)
}

func TestEnquiryService_CreateEnquiry_ExistingBuyerReused(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_existing_buyer")
	svc, _, _ := newEnquiryServiceForTest(database)
	ctx := context.Background()

	insertStandardProductType(t, database, "Radiator")
	input := CreateEnquiryInput{
		BuyerName:  "Bob",
		BuyerEmail: "bob@example.com",
		BuyerPhone: "07111222333",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Radiator"}},
	}

	first, err := svc.CreateEnquiry(ctx, input)
	require.NoError(t, err)
	assert.True(t, first.IsNewUser)

	second, err := svc.CreateEnquiry(ctx, input)
	require.NoError(t, err)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.Enquiry.BuyerID, second.Enquiry.BuyerID)

	// Still a single account for the pair.
	count, err := database.Collection(db.CollUsers).CountDocuments(ctx, bson.M{"email": "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEnquiryService_CreateEnquiry_EmailRegisteredToOtherAccount(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_email_conflict")
	svc, _, _ := newEnquiryServiceForTest(database)
	ctx := context.Background()

	// The email exists on a seller account, so the anonymous flow can
	// neither match nor silently create a buyer under it.
	insertTestUser(t, database, models.RoleSeller, "taken@example.com")
	insertStandardProductType(t, database, "Radiator")

	_, err := svc.CreateEnquiry(ctx, CreateEnquiryInput{
		BuyerName:  "Eve",
		BuyerEmail: "taken@example.com",
		BuyerPhone: "07999888777",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Radiator"}},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestEnquiryService_CreateEnquiry_Validation(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_validation")
	svc, _, _ := newEnquiryServiceForTest(database)
	ctx := context.Background()

	valid := CreateEnquiryInput{
		BuyerName:  "Carol",
		BuyerEmail: "carol@example.com",
		BuyerPhone: "07000111222",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Radiator"}},
	}

	missingEmail := valid
	missingEmail.BuyerEmail = ""
	_, err := svc.CreateEnquiry(ctx, missingEmail)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	incompleteVehicle := valid
	incompleteVehicle.Vehicle.Fuel = ""
	_, err = svc.CreateEnquiry(ctx, incompleteVehicle)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	noParts := valid
	noParts.Parts = nil
	_, err = svc.CreateEnquiry(ctx, noParts)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// A non-custom part naming an unknown standard type aborts before any
	// enquiry document is written.
	unknownPart := valid
	unknownPart.Parts = []EnquiryPartInput{{Name: "Flux Capacitor"}}
	_, err = svc.CreateEnquiry(ctx, unknownPart)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	count, err := database.Collection(db.CollEnquiries).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestEnquiryService_CreateEnquiry_CustomPart(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_custom_part")
	svc, _, _ := newEnquiryServiceForTest(database)
	ctx := context.Background()

	result, err := svc.CreateEnquiry(ctx, CreateEnquiryInput{
		BuyerName:  "Dave",
		BuyerEmail: "dave@example.com",
		BuyerPhone: "07333444555",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Roof Rail Clip", IsCustom: true}},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	var pt models.ProductType
	err = database.Collection(db.CollProductTypes).FindOne(ctx, bson.M{"_id": result.Items[0].ProductTypeID}).Decode(&pt)
	require.NoError(t, err)
	require.NotNil(t, pt.UserID)
	assert.Equal(t, result.Enquiry.BuyerID, *pt.UserID)
	assert.Equal(t, "Roof Rail Clip", pt.Name)
}

func TestEnquiryService_RespondToEnquiry(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_respond")
	svc, _, capSvc := newEnquiryServiceForTest(database)
	ctx := context.Background()

	pt := insertStandardProductType(t, database, "Brake Pads")
	seller := insertTestUser(t, database, models.RoleSeller, "seller@example.com")
	require.NoError(t, capSvc.SetCapabilities(ctx, seller.ID, []utils.SixID{pt.ID}))

	result, err := svc.CreateEnquiry(ctx, CreateEnquiryInput{
		BuyerName:  "Alice",
		BuyerEmail: "alice@example.com",
		BuyerPhone: "07123456789",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Brake Pads"}},
	})
	require.NoError(t, err)
	enquiryID := result.Enquiry.ID

	// Accept, then change of heart: rejection is not terminal either way.
	require.NoError(t, svc.RespondToEnquiry(ctx, enquiryID, seller.ID, models.MappingStatusAccepted))
	mapping, err := svc.FindMapping(ctx, enquiryID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MappingStatusAccepted, mapping.Status)

	require.NoError(t, svc.RespondToEnquiry(ctx, enquiryID, seller.ID, models.MappingStatusRejected))
	mapping, err = svc.FindMapping(ctx, enquiryID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MappingStatusRejected, mapping.Status)

	require.NoError(t, svc.RespondToEnquiry(ctx, enquiryID, seller.ID, models.MappingStatusAccepted))

	// Pending is not a valid response target.
	err = svc.RespondToEnquiry(ctx, enquiryID, seller.ID, models.MappingStatusPending)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// An unmapped seller has nothing to respond to.
	stranger := insertTestUser(t, database, models.RoleSeller, "stranger@example.com")
	err = svc.RespondToEnquiry(ctx, enquiryID, stranger.ID, models.MappingStatusAccepted)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestEnquiryService_ListReceived_UnconfiguredSellerFallback(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_unconfigured")
	svc, _, capSvc := newEnquiryServiceForTest(database)
	ctx := context.Background()

	insertStandardProductType(t, database, "Brake Pads")
	_, err := svc.CreateEnquiry(ctx, CreateEnquiryInput{
		BuyerName:  "Alice",
		BuyerEmail: "alice@example.com",
		BuyerPhone: "07123456789",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Brake Pads"}},
	})
	require.NoError(t, err)

	// The seller never configured capabilities, so the fan-out skipped
	// them, but the received list must still surface every open enquiry
	// and materialize the missing mapping.
	seller := insertTestUser(t, database, models.RoleSeller, "late@example.com")
	received, err := svc.ListReceived(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, models.MappingStatusPending, received[0].MappingStatus)
	assert.False(t, received[0].IsAlreadyQuoted)
	assert.Equal(t, 0, received[0].ApplicantCount)
	require.NotNil(t, received[0].Vehicle)
	assert.Equal(t, "Ford", received[0].Vehicle.Make)
	assert.Len(t, received[0].Items, 1)

	// Listing twice does not duplicate the mapping.
	_, err = svc.ListReceived(ctx, seller.ID)
	require.NoError(t, err)
	count, err := database.Collection(db.CollEnquirySellers).CountDocuments(ctx, bson.M{"seller_id": seller.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Once configured with a non-matching set, only mapped enquiries show.
	other := insertStandardProductType(t, database, "Wing Mirror")
	require.NoError(t, capSvc.SetCapabilities(ctx, seller.ID, []utils.SixID{other.ID}))
	received, err = svc.ListReceived(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, received, 1) // Mapping from the fallback run persists
}

func TestEnquiryService_GetDetails_Scoping(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_details")
	svc, _, capSvc := newEnquiryServiceForTest(database)
	ctx := context.Background()

	pt := insertStandardProductType(t, database, "Brake Pads")
	seller := insertTestUser(t, database, models.RoleSeller, "seller@example.com")
	require.NoError(t, capSvc.SetCapabilities(ctx, seller.ID, []utils.SixID{pt.ID}))

	result, err := svc.CreateEnquiry(ctx, CreateEnquiryInput{
		BuyerName:  "Alice",
		BuyerEmail: "alice@example.com",
		BuyerPhone: "07123456789",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Brake Pads"}},
	})
	require.NoError(t, err)
	enquiryID := result.Enquiry.ID
	buyerID := result.Enquiry.BuyerID

	// Buyer sees the enquiry with its mappings.
	detail, err := svc.GetDetails(ctx, enquiryID, buyerID, models.RoleBuyer)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)
	assert.Len(t, detail.Mappings, 1)

	// A mapped seller sees it too.
	_, err = svc.GetDetails(ctx, enquiryID, seller.ID, models.RoleSeller)
	require.NoError(t, err)

	// An unrelated seller does not.
	stranger := insertTestUser(t, database, models.RoleSeller, "stranger@example.com")
	_, err = svc.GetDetails(ctx, enquiryID, stranger.ID, models.RoleSeller)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// An unrelated buyer does not.
	otherBuyer := insertTestUser(t, database, models.RoleBuyer, "other@example.com")
	_, err = svc.GetDetails(ctx, enquiryID, otherBuyer.ID, models.RoleBuyer)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// Admins always do.
	admin := insertTestUser(t, database, models.RoleAdmin, "admin@example.com")
	_, err = svc.GetDetails(ctx, enquiryID, admin.ID, models.RoleAdmin)
	require.NoError(t, err)

	// Unknown enquiry.
	_, err = svc.GetDetails(ctx, utils.NewSixID(), buyerID, models.RoleBuyer)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestEnquiryService_ListForBuyer(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_enquiry_list_buyer")
	svc, _, _ := newEnquiryServiceForTest(database)
	ctx := context.Background()

	insertStandardProductType(t, database, "Brake Pads")
	input := CreateEnquiryInput{
		BuyerName:  "Alice",
		BuyerEmail: "alice@example.com",
		BuyerPhone: "07123456789",
		Vehicle:    testVehicle(),
		Parts:      []EnquiryPartInput{{Name: "Brake Pads"}},
	}
	first, err := svc.CreateEnquiry(ctx, input)
	require.NoError(t, err)
	_, err = svc.CreateEnquiry(ctx, input)
	require.NoError(t, err)

	list, err := svc.ListForBuyer(ctx, first.Enquiry.BuyerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	other := insertTestUser(t, database, models.RoleBuyer, "nobody@example.com")
	list, err = svc.ListForBuyer(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
