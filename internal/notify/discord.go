package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/cricket-auction/internal/event"
)

// ErrInvalidWebhook is returned for URLs that are not Discord webhook URLs.
var ErrInvalidWebhook = errors.New("invalid discord webhook url")

const queueSize = 64

// WebhookExecutor posts webhook messages. *discordgo.Session implements it.
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord announces auction events to a channel webhook.
type Discord struct {
	exec   WebhookExecutor
	id     string
	token  string
	queue  chan string
	logger *slog.Logger
}

// NewDiscord validates webhookURL and returns an announcer. Call Run to
// start delivery.
func NewDiscord(exec WebhookExecutor, webhookURL string, logger *slog.Logger) (*Discord, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	return &Discord{
		exec:   exec,
		id:     id,
		token:  token,
		queue:  make(chan string, queueSize),
		logger: logger,
	}, nil
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhook, raw)
}

// Handle queues an announcement without blocking the auction. Messages are
// dropped when the queue is full.
func (d *Discord) Handle(ctx context.Context, e event.Event) {
	msg, ok := Format(e)
	if !ok {
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.logger.WarnContext(ctx, "discord queue full, dropping announcement", slog.String("type", string(e.Type)))
	}
}

// Run delivers queued announcements until ctx is done.
func (d *Discord) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-d.queue:
			if _, err := d.exec.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{Content: msg}); err != nil {
				d.logger.ErrorContext(ctx, "failed to post discord announcement", slog.Any("error", err))
			}
		}
	}
}

// Format renders the announcement for e, if it has one.
func Format(e event.Event) (string, bool) {
	switch e.Type {
	case event.PlayerSelected:
		var d event.PlayerSelectedData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("Up next: **#%d %s** (%s), base price %d", d.PlayerNo, d.PlayerName, d.Role, d.BasePrice), true
	case event.PlayerSold:
		var d event.ResolvedData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("SOLD: **%s** to **%s** for **%d**", d.PlayerName, d.Team, d.Price), true
	case event.PlayerUnsold:
		var d event.ResolvedData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("**%s** goes unsold", d.PlayerName), true
	case event.RosterExhausted:
		return "All players have been auctioned.", true
	case event.AuctionRestarted:
		return "The auction has been restarted.", true
	}
	return "", false
}
