package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/bazelbuild/bazel-bench/internal/report"
)

// Notifier delivers a finished message somewhere.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SlackPoster is the part of *slack.Client the bot notifier uses.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Settings selects the Slack delivery. A bot token wins over a webhook.
type Settings struct {
	Enabled    bool
	Channel    string
	BotToken   string
	WebhookURL string
}

// Manager fans a message out to every configured notifier.
type Manager struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewManager builds the notifiers described by s. A disabled or incomplete
// configuration yields a Manager that does nothing.
func NewManager(s Settings, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}
	if !s.Enabled {
		return m
	}
	switch {
	case s.BotToken != "":
		m.notifiers = append(m.notifiers, NewBotNotifier(slack.New(s.BotToken), s.Channel))
	case s.WebhookURL != "":
		m.notifiers = append(m.notifiers, NewSlackNotifier(s.WebhookURL))
	default:
		logger.Warn("slack notifications enabled but neither SLACK_BOT_USER_TOKEN nor a webhook URL is set")
	}
	return m
}

// NewManagerWith wraps explicit notifiers.
func NewManagerWith(logger *slog.Logger, notifiers ...Notifier) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{notifiers: notifiers, logger: logger}
}

// Enabled reports whether any notifier is configured.
func (m *Manager) Enabled() bool { return len(m.notifiers) > 0 }

// Notify sends message to every notifier. Failures are logged and joined.
func (m *Manager) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, message); err != nil {
			m.logger.Warn("failed to send notification", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifySummaries posts the rendered results table of a session.
func (m *Manager) NotifySummaries(ctx context.Context, uid, projectSource string, summaries []report.Summary) error {
	if !m.Enabled() {
		return nil
	}
	return m.Notify(ctx, FormatSummaries(uid, projectSource, summaries))
}

// FormatSummaries renders summaries as a Slack message with the table in a
// code block.
func FormatSummaries(uid, projectSource string, summaries []report.Summary) string {
	var table strings.Builder
	if err := report.Render(&table, summaries, projectSource, false); err != nil {
		table.WriteString(err.Error())
	}
	return fmt.Sprintf("bazel-bench session *%s* finished.\n```%s```", uid, strings.TrimRight(table.String(), "\n"))
}

// BotNotifier posts with a bot token through the Slack Web API.
type BotNotifier struct {
	client  SlackPoster
	channel string
}

// NewBotNotifier posts to channel, "#general" when empty.
func NewBotNotifier(client SlackPoster, channel string) *BotNotifier {
	if channel == "" {
		channel = "#general"
	}
	return &BotNotifier{client: client, channel: channel}
}

func (b *BotNotifier) Notify(ctx context.Context, message string) error {
	_, _, err := b.client.PostMessageContext(ctx, b.channel, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", b.channel, err)
	}
	return nil
}
