package live

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLiveCooldown    = 2 * time.Hour
	DefaultOfflineCooldown = 10 * time.Minute
)

// Tracker turns verdicts into notify decisions. The live cooldown keeps a
// running session from alerting again on every tick; the shorter offline
// cooldown lets a finished session's record lapse before the next one.
type Tracker struct {
	LiveCooldown    time.Duration
	OfflineCooldown time.Duration
	// RefreshWhileLive rewrites the live record on every tick that still
	// sees the account live, extending its expiry for the whole session.
	RefreshWhileLive bool
}

// Decision is the outcome of one Decide call.
type Decision struct {
	Notify bool
	Event  *NotificationEvent
	Next   TrackedState
	TTL    time.Duration
	// Write is false when the stored record must be left untouched.
	Write bool
}

// DefaultTracker uses the 2h live and 10m offline cooldowns.
func DefaultTracker() Tracker {
	return Tracker{
		LiveCooldown:    DefaultLiveCooldown,
		OfflineCooldown: DefaultOfflineCooldown,
	}
}

// Validate requires a positive offline cooldown shorter than the live one.
func (t Tracker) Validate() error {
	if t.OfflineCooldown <= 0 {
		return fmt.Errorf("%w: offline cooldown must be positive", ErrConfig)
	}
	if t.LiveCooldown <= t.OfflineCooldown {
		return fmt.Errorf("%w: live cooldown (%s) must exceed offline cooldown (%s)",
			ErrConfig, t.LiveCooldown, t.OfflineCooldown)
	}
	return nil
}

// Decide compares the current verdict with the prior state of the account.
// A nil prior means nothing is known, which counts as offline.
func (t Tracker) Decide(acc Account, v Verdict, prior *TrackedState, now time.Time) Decision {
	wasLive := prior != nil && prior.Live

	if !v.Live {
		return Decision{
			Next:  TrackedState{Live: false},
			TTL:   t.OfflineCooldown,
			Write: true,
		}
	}

	if wasLive {
		next := TrackedState{Live: true, RoomID: v.RoomID}
		if next.RoomID == "" {
			next.RoomID = prior.RoomID
		}
		return Decision{
			Next:  next,
			TTL:   t.LiveCooldown,
			Write: t.RefreshWhileLive,
		}
	}

	return Decision{
		Notify: true,
		Event: &NotificationEvent{
			Account:    acc,
			Title:      v.Title,
			ProfileURL: acc.ProfileURL(),
			LiveURL:    acc.LiveURL(),
			Timestamp:  now,
		},
		Next:  TrackedState{Live: true, RoomID: v.RoomID},
		TTL:   t.LiveCooldown,
		Write: true,
	}
}

// EncodeState renders a state as "0", "1" or "1:<roomId>".
func EncodeState(s TrackedState) string {
	if !s.Live {
		return "0"
	}
	if s.RoomID == "" {
		return "1"
	}
	return "1:" + s.RoomID
}

// DecodeState parses a stored value. Anything but a live marker is
// treated as offline.
func DecodeState(value string) TrackedState {
	flag, room, _ := strings.Cut(strings.TrimSpace(value), ":")
	if flag != "1" {
		return TrackedState{}
	}
	return TrackedState{Live: true, RoomID: room}
}
