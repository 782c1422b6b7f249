package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik860s/Autopart-Backend/internal/models"
)

func TestEmailTemplateService_DefaultsAndOverrides(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_email_templates")
	svc := NewEmailTemplateService(database)
	ctx := context.Background()

	// With nothing stored, the built-in default is served.
	tmpl, err := svc.GetTemplate(ctx, "setup_account", "en-GB")
	require.NoError(t, err)
	assert.Contains(t, tmpl.Body, "{{.action_id}}")

	// Unknown templates have no fallback.
	_, err = svc.GetTemplate(ctx, "no_such_template", "en-GB")
	assert.Error(t, err)

	// A stored template overrides the default for its locale.
	custom := &models.EmailTemplate{
		TemplateID: "setup_account",
		Locale:     "en-GB",
		Subject:    "Welcome aboard",
		Body:       "Set your password here: /la/{{.action_id}}",
	}
	require.NoError(t, svc.SaveTemplate(ctx, custom))
	tmpl, err = svc.GetTemplate(ctx, "setup_account", "en-GB")
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard", tmpl.Subject)

	// Saving again updates in place rather than duplicating.
	custom.Subject = "Welcome aboard v2"
	require.NoError(t, svc.SaveTemplate(ctx, custom))
	tmpl, err = svc.GetTemplate(ctx, "setup_account", "en-GB")
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard v2", tmpl.Subject)

	// Deleting the override restores the default.
	require.NoError(t, svc.DeleteTemplate(ctx, "setup_account", "en-GB"))
	tmpl, err = svc.GetTemplate(ctx, "setup_account", "en-GB")
	require.NoError(t, err)
	assert.NotEqual(t, "Welcome aboard v2", tmpl.Subject)

	// Every default template's placeholders use the {{.key}} form.
	for id := range defaultEmailTemplates {
		d, err := svc.GetTemplate(ctx, id, "en-GB")
		require.NoError(t, err)
		assert.NotEmpty(t, d.Subject)
		assert.NotEmpty(t, d.Body)
	}
}
