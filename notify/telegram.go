package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lukamindo/tiktok_live_go/live"
)

// Telegram sends HTML messages to one chat or channel.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	// channel is used instead of chatID for @username destinations.
	channel string
}

// NewTelegram resolves the destination without contacting Telegram, so
// an API outage only fails individual sends. endpoint is a tgbotapi
// endpoint format; empty means the public Bot API.
func NewTelegram(token, chatID, endpoint string) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot := &tgbotapi.BotAPI{
		Token:  token,
		Buffer: 100,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	bot.SetAPIEndpoint(endpoint)

	t := &Telegram{bot: bot}
	chatID = strings.TrimSpace(chatID)
	if strings.HasPrefix(chatID, "@") {
		t.channel = chatID
		return t, nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CHAT_ID %q", live.ErrConfig, chatID)
	}
	t.chatID = id
	return t, nil
}

// BotName asks Telegram which bot the token belongs to.
func (t *Telegram) BotName() (string, error) {
	me, err := t.bot.GetMe()
	if err != nil {
		return "", fmt.Errorf("identifying telegram bot: %w", err)
	}
	return me.UserName, nil
}

// Send delivers text with HTML formatting and link previews disabled.
// The Bot API client has no context support, so ctx is only checked
// before sending.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

var _ live.Notifier = (*Telegram)(nil)
