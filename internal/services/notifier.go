package services

import "context"

// Notifier enqueues a templated email for background delivery. Implemented
// by the asynq-backed dispatcher; services treat every send as best-effort
// and never fail a write because a notification could not be enqueued.
type Notifier interface {
	SendTemplate(ctx context.Context, to, templateID string, data map[string]interface{}) error
}

// NopNotifier discards notifications. Used in tests and tooling that has no
// queue attached.
type NopNotifier struct{}

func (NopNotifier) SendTemplate(ctx context.Context, to, templateID string, data map[string]interface{}) error {
	return nil
}
