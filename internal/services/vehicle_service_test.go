package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
)

func seedVehicles(t *testing.T, svc IVehicleService) {
	ctx := context.Background()
	fitments := []models.Vehicle{
		{Make: "Ford", Model: "Focus", Year: 2018, BodyStyle: "Hatchback", Trim: "Titanium", Gearbox: "Manual", Fuel: "Petrol"},
		{Make: "Ford", Model: "Focus", Year: 2019, BodyStyle: "Hatchback", Trim: "ST-Line", Gearbox: "Automatic", Fuel: "Diesel"},
		{Make: "Ford", Model: "Fiesta", Year: 2018, BodyStyle: "Hatchback", Trim: "Zetec", Gearbox: "Manual", Fuel: "Petrol"},
		{Make: "Audi", Model: "A3", Year: 2020, BodyStyle: "Saloon", Trim: "Sport", Gearbox: "Automatic", Fuel: "Petrol"},
	}
	for _, f := range fitments {
		_, err := svc.FindOrCreate(ctx, f)
		require.NoError(t, err)
	}
}

func TestVehicleService_FindOrCreate_Dedupes(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_vehicle_dedupe")
	svc := NewVehicleService(database, nil, testConfig())
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, testVehicle())
	require.NoError(t, err)
	second, err := svc.FindOrCreate(ctx, testVehicle())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := database.Collection(db.CollVehicles).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Any differing field of the tuple is a new vehicle.
	other := testVehicle()
	other.Gearbox = "Automatic"
	third, err := svc.FindOrCreate(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	// Partial tuples are refused.
	incomplete := testVehicle()
	incomplete.Trim = ""
	_, err = svc.FindOrCreate(ctx, incomplete)
	assert.Error(t, err)
}

func TestVehicleService_CascadingFilters(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_vehicle_filters")
	svc := NewVehicleService(database, nil, testConfig())
	ctx := context.Background()
	seedVehicles(t, svc)

	makes, err := svc.GetMakes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ford", "Audi"}, makes)

	fordModels, err := svc.GetModels(ctx, VehicleFilter{Make: "Ford"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Focus", "Fiesta"}, fordModels)

	focusYears, err := svc.GetYears(ctx, VehicleFilter{Make: "Ford", Model: "Focus"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2018, 2019}, focusYears)

	trims, err := svc.GetTrims(ctx, VehicleFilter{Make: "Ford", Model: "Focus", Year: 2019})
	require.NoError(t, err)
	assert.Equal(t, []string{"ST-Line"}, trims)

	gearboxes, err := svc.GetGearboxes(ctx, VehicleFilter{Make: "Ford", Model: "Focus", Year: 2019, Trim: "ST-Line"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Automatic"}, gearboxes)

	fuels, err := svc.GetFuels(ctx, VehicleFilter{Make: "Audi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Petrol"}, fuels)

	// A filter matching nothing yields an empty list, not an error.
	none, err := svc.GetModels(ctx, VehicleFilter{Make: "Lada"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
