package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

func TestCapabilityService_SetCapabilities_FullReplace(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_capability_replace")
	svc := NewCapabilityService(database)
	ctx := context.Background()

	seller := insertTestUser(t, database, models.RoleSeller, "seller@example.com")
	pads := insertStandardProductType(t, database, "Brake Pads")
	discs := insertStandardProductType(t, database, "Brake Discs")
	filters := insertStandardProductType(t, database, "Oil Filter")

	hasConfig, err := svc.HasConfig(ctx, seller.ID)
	require.NoError(t, err)
	assert.False(t, hasConfig)

	require.NoError(t, svc.SetCapabilities(ctx, seller.ID, []utils.SixID{pads.ID, discs.ID}))
	caps, err := svc.ListForSeller(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, caps, 2)

	hasConfig, err = svc.HasConfig(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, hasConfig)

	// Replace: discs drops out, filters comes in, pads survives.
	require.NoError(t, svc.SetCapabilities(ctx, seller.ID, []utils.SixID{pads.ID, filters.ID}))
	caps, err = svc.ListForSeller(ctx, seller.ID)
	require.NoError(t, err)
	got := make([]utils.SixID, len(caps))
	for i, c := range caps {
		got[i] = c.ProductTypeID
	}
	assert.ElementsMatch(t, []utils.SixID{pads.ID, filters.ID}, got)

	// Resubmitting the identical set is idempotent.
	require.NoError(t, svc.SetCapabilities(ctx, seller.ID, []utils.SixID{pads.ID, filters.ID}))
	caps, err = svc.ListForSeller(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, caps, 2)

	// An empty set clears the configuration entirely.
	require.NoError(t, svc.SetCapabilities(ctx, seller.ID, nil))
	hasConfig, err = svc.HasConfig(ctx, seller.ID)
	require.NoError(t, err)
	assert.False(t, hasConfig)
}

func TestCapabilityService_GetMatchingSellers(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_capability_matching")
	svc := NewCapabilityService(database)
	ctx := context.Background()

	pads := insertStandardProductType(t, database, "Brake Pads")
	discs := insertStandardProductType(t, database, "Brake Discs")
	exhaust := insertStandardProductType(t, database, "Exhaust")

	both := insertTestUser(t, database, models.RoleSeller, "both@example.com")
	padsOnly := insertTestUser(t, database, models.RoleSeller, "pads@example.com")
	exhaustOnly := insertTestUser(t, database, models.RoleSeller, "exhaust@example.com")

	require.NoError(t, svc.SetCapabilities(ctx, both.ID, []utils.SixID{pads.ID, discs.ID}))
	require.NoError(t, svc.SetCapabilities(ctx, padsOnly.ID, []utils.SixID{pads.ID}))
	require.NoError(t, svc.SetCapabilities(ctx, exhaustOnly.ID, []utils.SixID{exhaust.ID}))

	// A seller servicing several requested types appears once.
	matched, err := svc.GetMatchingSellers(ctx, []utils.SixID{pads.ID, discs.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []utils.SixID{both.ID, padsOnly.ID}, matched)

	matched, err = svc.GetMatchingSellers(ctx, []utils.SixID{exhaust.ID})
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{exhaustOnly.ID}, matched)

	// No requested types, no sellers.
	matched, err = svc.GetMatchingSellers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, matched)

	// An unknown type matches nobody.
	matched, err = svc.GetMatchingSellers(ctx, []utils.SixID{utils.NewSixID()})
	require.NoError(t, err)
	assert.Empty(t, matched)
}
