package config

import "github.com/urfave/cli/v3"

// Slack holds completion notification configuration
type Slack struct {
	WebhookURL string `masq:"secret"`
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook notified after every book",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("COMICDL_SLACK_WEBHOOK_URL"),
		},
	}
}
