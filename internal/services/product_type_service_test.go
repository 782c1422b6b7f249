package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

func TestProductTypeService_StandardLookup(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_product_type_standard")
	svc := NewProductTypeService(database)
	ctx := context.Background()

	pads := insertStandardProductType(t, database, "Brake Pads")

	found, err := svc.FindStandardByName(ctx, "Brake Pads")
	require.NoError(t, err)
	assert.Equal(t, pads.ID, found.ID)
	assert.True(t, found.IsStandard())

	// Lookup trims surrounding whitespace.
	found, err = svc.FindStandardByName(ctx, "  Brake Pads  ")
	require.NoError(t, err)
	assert.Equal(t, pads.ID, found.ID)

	_, err = svc.FindStandardByName(ctx, "Flux Capacitor")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestProductTypeService_CustomTypes(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_product_type_custom")
	svc := NewProductTypeService(database)
	ctx := context.Background()

	buyerA := utils.NewSixID()
	buyerB := utils.NewSixID()

	custom, err := svc.CreateCustom(ctx, buyerA, "Roof Rail Clip")
	require.NoError(t, err)
	require.NotNil(t, custom.UserID)
	assert.Equal(t, buyerA, *custom.UserID)

	// Re-creating the same name for the same buyer converges on the
	// existing document instead of erroring.
	again, err := svc.CreateCustom(ctx, buyerA, "Roof Rail Clip")
	require.NoError(t, err)
	assert.Equal(t, custom.ID, again.ID)

	// A different buyer gets their own document under the same name.
	other, err := svc.CreateCustom(ctx, buyerB, "Roof Rail Clip")
	require.NoError(t, err)
	assert.NotEqual(t, custom.ID, other.ID)

	// Custom types never satisfy a standard lookup.
	_, err = svc.FindStandardByName(ctx, "Roof Rail Clip")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	_, err = svc.CreateCustom(ctx, buyerA, "   ")
	assert.Error(t, err)
}

func TestProductTypeService_Listing(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_product_type_listing")
	svc := NewProductTypeService(database)
	ctx := context.Background()

	insertStandardProductType(t, database, "Alternator")
	insertStandardProductType(t, database, "Brake Pads")
	buyer := utils.NewSixID()
	_, err := svc.CreateCustom(ctx, buyer, "Roof Rail Clip")
	require.NoError(t, err)

	standard, err := svc.ListStandard(ctx)
	require.NoError(t, err)
	require.Len(t, standard, 2)
	// Sorted by name.
	assert.Equal(t, "Alternator", standard[0].Name)
	assert.Equal(t, "Brake Pads", standard[1].Name)

	// The buyer's view is the catalog plus their own customs.
	mine, err := svc.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	// Someone else sees only the catalog.
	theirs, err := svc.ListForBuyer(ctx, utils.NewSixID())
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}
