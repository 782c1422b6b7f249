package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// captureSender records what would have been handed to SMTP.
type captureSender struct {
	to      []string
	subject string
	raw     []byte
	err     error
}

func (c *captureSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	c.to = to
	c.subject = subject
	c.raw = rawMessage
	return c.err
}

func newEmailTask(t *testing.T, payload EmailTaskPayload) *asynq.Task {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TypeEmailDelivery, data)
}

func setupEmailProcessor(t *testing.T, sender *captureSender) (*TaskProcessor, *services.EmailTemplateService) {
	database := utils.SetupTestDB(t, "testdb_tasks_email", db.CollEmailTemplates)
	templates := services.NewEmailTemplateService(database)
	cfg := &config.Config{SmtpFromAddress: "noreply@parts.example.com"}
	processor := NewTaskProcessor(cfg, sender, nil, templates, nil, nil)
	return processor, templates
}

func TestHandleEmailDeliveryTask_RendersTemplate(t *testing.T) {
	sender := &captureSender{}
	processor, templates := setupEmailProcessor(t, sender)
	ctx := context.Background()

	require.NoError(t, templates.SaveTemplate(ctx, &models.EmailTemplate{
		TemplateID: "quotation_received",
		Locale:     "en-GB",
		Subject:    "Quotation for enquiry {{.enquiry_id}}",
		Body:       "Hi {{.name}}, {{.item_count}} item(s) quoted at {{.total_price}} total.",
	}))

	task := newEmailTask(t, EmailTaskPayload{
		To:         "alice@example.com",
		TemplateID: "quotation_received",
		Data: map[string]interface{}{
			"name":        "Alice",
			"enquiry_id":  "0123456789",
			"item_count":  2,
			"total_price": "125.00",
		},
	})
	require.NoError(t, processor.HandleEmailDeliveryTask(ctx, task))

	assert.Equal(t, []string{"alice@example.com"}, sender.to)
	assert.Equal(t, "Quotation for enquiry 0123456789", sender.subject)
	raw := string(sender.raw)
	assert.Contains(t, raw, "To: alice@example.com\r\n")
	assert.Contains(t, raw, "From: noreply@parts.example.com\r\n")
	assert.Contains(t, raw, "Hi Alice, 2 item(s) quoted at 125.00 total.")
	assert.NotContains(t, raw, "{{.") // Every placeholder resolved
}

func TestHandleEmailDeliveryTask_DefaultTemplateAndLocale(t *testing.T) {
	sender := &captureSender{}
	processor, _ := setupEmailProcessor(t, sender)

	// No stored template and no locale in the payload: the built-in
	// en-GB default is used.
	task := newEmailTask(t, EmailTaskPayload{
		To:         "bob@example.com",
		TemplateID: "setup_account",
		Data: map[string]interface{}{
			"name":      "Bob",
			"action_id": "ZZZZZZZZZZ",
		},
	})
	require.NoError(t, processor.HandleEmailDeliveryTask(context.Background(), task))
	assert.Contains(t, string(sender.raw), "/la/ZZZZZZZZZZ")
}

func TestHandleEmailDeliveryTask_MissingTemplateSkipsRetry(t *testing.T) {
	sender := &captureSender{}
	processor, _ := setupEmailProcessor(t, sender)

	task := newEmailTask(t, EmailTaskPayload{To: "x@example.com", TemplateID: "no_such_template"})
	err := processor.HandleEmailDeliveryTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Nil(t, sender.raw)
}

func TestHandleEmailDeliveryTask_SenderFailurePropagates(t *testing.T) {
	sendErr := errors.New("smtp unavailable")
	sender := &captureSender{err: sendErr}
	processor, _ := setupEmailProcessor(t, sender)

	task := newEmailTask(t, EmailTaskPayload{
		To:         "x@example.com",
		TemplateID: "password_reset",
		Data:       map[string]interface{}{"action_id": "ABC"},
	})
	err := processor.HandleEmailDeliveryTask(context.Background(), task)
	assert.ErrorIs(t, err, sendErr)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
