package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

func TestFeedbackService_SubmitAndThread(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_feedback_submit")
	svc := NewFeedbackService(database, NewUserService(database), NopNotifier{})
	ctx := context.Background()

	user := insertTestUser(t, database, models.RoleBuyer, "buyer@example.com")

	thread, err := svc.Submit(ctx, user.ID, "Wrong part delivered", "The pads don't fit my Focus.")
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackStatusOpen, thread.Feedback.Status)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, user.ID, thread.Messages[0].AuthorID)
	assert.False(t, thread.Messages[0].FromAdmin)

	// Owner and admin may read the thread; anyone else may not.
	_, err = svc.Thread(ctx, thread.Feedback.ID, user.ID, models.RoleBuyer)
	require.NoError(t, err)
	admin := insertTestUser(t, database, models.RoleAdmin, "admin@example.com")
	_, err = svc.Thread(ctx, thread.Feedback.ID, admin.ID, models.RoleAdmin)
	require.NoError(t, err)
	other := insertTestUser(t, database, models.RoleBuyer, "other@example.com")
	_, err = svc.Thread(ctx, thread.Feedback.ID, other.ID, models.RoleBuyer)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// Validation.
	_, err = svc.Submit(ctx, user.ID, "", "body")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Submit(ctx, user.ID, "subject", "  ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestFeedbackService_ReplyFlow(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_feedback_reply")
	svc := NewFeedbackService(database, NewUserService(database), NopNotifier{})
	ctx := context.Background()

	user := insertTestUser(t, database, models.RoleBuyer, "buyer@example.com")
	admin := insertTestUser(t, database, models.RoleAdmin, "admin@example.com")
	thread, err := svc.Submit(ctx, user.ID, "Billing question", "Was I charged twice?")
	require.NoError(t, err)
	ticketID := thread.Feedback.ID

	// A user reply keeps the ticket open.
	_, err = svc.Reply(ctx, ticketID, user.ID, models.RoleBuyer, "Adding my order number: 123")
	require.NoError(t, err)
	current, err := svc.Thread(ctx, ticketID, user.ID, models.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackStatusOpen, current.Feedback.Status)
	assert.Len(t, current.Messages, 2)

	// An admin reply flips open to replied.
	reply, err := svc.Reply(ctx, ticketID, admin.ID, models.RoleAdmin, "Checking with billing now.")
	require.NoError(t, err)
	assert.True(t, reply.FromAdmin)
	current, err = svc.Thread(ctx, ticketID, user.ID, models.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackStatusReplied, current.Feedback.Status)

	// Strangers cannot post into the thread.
	other := insertTestUser(t, database, models.RoleBuyer, "other@example.com")
	_, err = svc.Reply(ctx, ticketID, other.ID, models.RoleBuyer, "me too")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// Closed tickets accept no further replies, from anyone.
	require.NoError(t, svc.UpdateStatus(ctx, ticketID, models.FeedbackStatusClosed))
	_, err = svc.Reply(ctx, ticketID, user.ID, models.RoleBuyer, "one more thing")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	_, err = svc.Reply(ctx, ticketID, admin.ID, models.RoleAdmin, "final word")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestFeedbackService_ListsAndStatus(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_feedback_lists")
	svc := NewFeedbackService(database, NewUserService(database), NopNotifier{})
	ctx := context.Background()

	alice := insertTestUser(t, database, models.RoleBuyer, "alice@example.com")
	bob := insertTestUser(t, database, models.RoleSeller, "bob@example.com")

	first, err := svc.Submit(ctx, alice.ID, "Ticket one", "body")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, alice.ID, "Ticket two", "body")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, bob.ID, "Seller ticket", "body")
	require.NoError(t, err)

	mine, err := svc.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, total, err := svc.ListAll(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	require.NoError(t, svc.UpdateStatus(ctx, first.Feedback.ID, models.FeedbackStatusResolved))
	resolved, total, err := svc.ListAll(ctx, models.FeedbackStatusResolved, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, resolved, 1)
	assert.Equal(t, first.Feedback.ID, resolved[0].ID)

	// Status writes are validated and target-checked.
	err = svc.UpdateStatus(ctx, first.Feedback.ID, "escalated")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	err = svc.UpdateStatus(ctx, utils.NewSixID(), models.FeedbackStatusClosed)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
