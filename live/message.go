package live

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const timeFormat = "Jan 2 15:04:05"

// FormatMessage renders the Telegram HTML text announcing a live session.
func FormatMessage(ev NotificationEvent, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔴 <b>%s</b> is LIVE!\n", html.EscapeString(string(ev.Account)))
	if ev.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", html.EscapeString(ev.Title))
	}
	fmt.Fprintf(&b, "Time: %s\n", ev.Timestamp.In(loc).Format(timeFormat))
	fmt.Fprintf(&b, "Watch: %s\n", ev.LiveURL)
	fmt.Fprintf(&b, "Profile: %s", ev.ProfileURL)
	return b.String()
}

// PingMessage confirms the bot token and chat are usable.
func PingMessage() string {
	return "✅ Ping OK: token and chat are valid."
}

// TestMessage mimics a live alert for acc without checking anything.
func TestMessage(acc Account) string {
	return fmt.Sprintf("🔴 <b>TEST</b>: pretending %s is LIVE.\nWatch: %s",
		html.EscapeString(string(acc)), acc.LiveURL())
}
