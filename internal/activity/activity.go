// Package activity decides whether a bot is inside its daily speaking window.
package activity

import (
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/botchat/internal/models"
)

// parseClock reads "HH:MM". Any part that is missing or not a number is 0.
func parseClock(s string) (hour, minute int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	hour, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		minute, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return hour, minute
}

// at builds the instant for clock on the calendar day of t.
func at(t time.Time, clock string) time.Time {
	h, m := parseClock(clock)
	y, mo, d := t.Date()
	return time.Date(y, mo, d, h, m, 0, 0, t.Location())
}

// bounds returns the start and end instants of the window on t's day.
func bounds(bot models.Bot, t time.Time) (start, end time.Time) {
	return at(t, bot.ActiveStart), at(t, bot.ActiveEnd)
}

// IsActive reports whether t falls inside the bot's active window.
// Windows whose start is after their end wrap around midnight.
func IsActive(bot models.Bot, t time.Time) bool {
	start, end := bounds(bot, t)
	if !start.After(end) {
		return !t.Before(start) && !t.After(end)
	}
	return !t.Before(start) || !t.After(end)
}

// Eligible reports whether the bot may be scheduled at t.
func Eligible(bot models.Bot, t time.Time) bool {
	return bot.Online && IsActive(bot, t)
}

// EligibleBots filters a roster down to the bots that may speak at t.
func EligibleBots(bots []models.Bot, t time.Time) []models.Bot {
	var out []models.Bot
	for _, b := range bots {
		if Eligible(b, t) {
			out = append(out, b)
		}
	}
	return out
}

// UntilEnd returns how long remains before the window that contains t
// closes. ok is false when t is outside the window.
func UntilEnd(bot models.Bot, t time.Time) (time.Duration, bool) {
	if !IsActive(bot, t) {
		return 0, false
	}
	start, end := bounds(bot, t)
	if start.After(end) && !t.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end.Sub(t), true
}
