package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
)

// Notifier posts messages to a Slack incoming webhook
type Notifier struct {
	webhookURL string
}

var _ interfaces.Notifier = (*Notifier)(nil)

// NewNotifier creates a new Notifier for the incoming webhook URL
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL}
}

// Notify posts message as a plain text webhook message
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if err := slack.PostWebhookContext(ctx, n.webhookURL, &slack.WebhookMessage{Text: message}); err != nil {
		return goerr.Wrap(err, "failed to post slack webhook")
	}
	return nil
}
