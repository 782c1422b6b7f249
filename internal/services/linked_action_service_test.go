package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

func TestLinkedActionService_CreateAndValidate(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_linked_action_validate")
	svc := NewLinkedActionService(database, testConfig())
	ctx := context.Background()
	userID := utils.NewSixID()

	action, err := svc.CreateSetupAccountAction(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSetupAccount, action.Type)
	assert.Equal(t, userID, action.UserID)
	assert.Nil(t, action.Executed)
	assert.True(t, action.ExpiresAt.After(time.Now().UTC()))

	// The Crockford string form of the id is the link token.
	found, err := svc.FindAndValidateAction(ctx, action.ID.String(), models.ActionSetupAccount)
	require.NoError(t, err)
	assert.Equal(t, action.ID, found.ID)

	// Wrong purpose tag fails even though the action exists.
	_, err = svc.FindAndValidateAction(ctx, action.ID.String(), models.ActionPasswordReset)
	assert.Error(t, err)

	// Malformed and unknown ids fail.
	_, err = svc.FindAndValidateAction(ctx, "not-a-real-id", models.ActionSetupAccount)
	assert.Error(t, err)
	_, err = svc.FindAndValidateAction(ctx, utils.NewSixID().String(), models.ActionSetupAccount)
	assert.Error(t, err)
}

func TestLinkedActionService_SingleUse(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_linked_action_single_use")
	svc := NewLinkedActionService(database, testConfig())
	ctx := context.Background()

	action, err := svc.CreateVerifyEmailAction(ctx, utils.NewSixID())
	require.NoError(t, err)

	require.NoError(t, svc.MarkActionExecuted(ctx, action.ID))

	// A second redemption loses the executed=nil race.
	err = svc.MarkActionExecuted(ctx, action.ID)
	assert.Error(t, err)

	// And validation no longer accepts it.
	_, err = svc.FindAndValidateAction(ctx, action.ID.String(), models.ActionVerifyEmail)
	assert.Error(t, err)

	// FindByID still sees it regardless of state.
	executed, err := svc.FindByID(ctx, action.ID)
	require.NoError(t, err)
	assert.NotNil(t, executed.Executed)
}

func TestLinkedActionService_Expiry(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_linked_action_expiry")
	svc := NewLinkedActionService(database, testConfig())
	ctx := context.Background()

	action, err := svc.CreatePasswordResetAction(ctx, utils.NewSixID())
	require.NoError(t, err)

	// Push the expiry into the past.
	_, err = database.Collection(db.CollLinkedActions).UpdateByID(ctx, action.ID,
		bson.M{"$set": bson.M{"expires_at": time.Now().UTC().Add(-time.Minute)}})
	require.NoError(t, err)

	_, err = svc.FindAndValidateAction(ctx, action.ID.String(), models.ActionPasswordReset)
	assert.Error(t, err)
}
