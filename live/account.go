package live

import (
	"fmt"
	"strings"
	"time"
)

const baseURL = "https://www.tiktok.com"

// Account is the handle of a TikTok profile being monitored.
type Account string

// NormalizeAccount trims whitespace and a leading "@" from a handle.
func NormalizeAccount(s string) Account {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	return Account(strings.TrimSpace(s))
}

// ProfileURL returns the public profile page of the account.
func (a Account) ProfileURL() string {
	return fmt.Sprintf("%s/@%s", baseURL, string(a))
}

// LiveURL returns the page that plays the account's live broadcast.
func (a Account) LiveURL() string {
	return a.ProfileURL() + "/live"
}

// StateKey is the key the account's TrackedState is stored under.
func (a Account) StateKey() string {
	return "live:" + string(a)
}

// Verdict is the result of inspecting one rendered profile page.
// Empty RoomID and Title mean the value was not found.
type Verdict struct {
	Live   bool   `json:"live"`
	RoomID string `json:"roomId,omitempty"`
	Title  string `json:"title,omitempty"`
}

// TrackedState is what is remembered about an account between checks.
type TrackedState struct {
	Live   bool
	RoomID string
}

// NotificationEvent carries everything needed to format one alert.
type NotificationEvent struct {
	Account    Account
	Title      string
	ProfileURL string
	LiveURL    string
	Timestamp  time.Time
}
