package models

import (
	"time"

	"github.com/google/uuid"
)

// UserAuthor is the author label of messages typed by the human user.
const UserAuthor = "You"

const (
	MinDelaySec    = 3
	MinDelaySpread = 2
)

// Reason describes why a bot was scheduled to speak.
type Reason string

const (
	ReasonUser   Reason = "user"
	ReasonRandom Reason = "random"
	ReasonManual Reason = "manual"
)

// Bot is a simulated chat participant with its scheduling configuration
// and mutable runtime state.
type Bot struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Persona         string    `json:"persona"`
	Subject         string    `json:"subject"`
	Topics          []string  `json:"topics"`
	SlangLevel      int       `json:"slang_level"`
	TalkFrequency   float64   `json:"talk_frequency"`
	DelayMinSec     int       `json:"delay_min_sec"`
	DelayMaxSec     int       `json:"delay_max_sec"`
	ActiveStart     string    `json:"active_start"`
	ActiveEnd       string    `json:"active_end"`
	TeachNewcomers  bool      `json:"teach_newcomers"`
	HumanRandomness int       `json:"human_randomness"`
	Farewell        string    `json:"farewell"`
	Online          bool      `json:"online"`
	LastSpokeAt     time.Time `json:"last_spoke_at"`
}

// DefaultBot returns the starter bot every new roster begins with.
func DefaultBot() Bot {
	return Bot{
		ID:              uuid.New().String(),
		Name:            "ChillBro",
		Persona:         "chill, lowercase, says yo wsg gtg sometimes",
		Subject:         "random vibes",
		Topics:          []string{},
		SlangLevel:      80,
		TalkFrequency:   10,
		DelayMinSec:     20,
		DelayMaxSec:     90,
		ActiveStart:     "10:00",
		ActiveEnd:       "22:00",
		TeachNewcomers:  true,
		HumanRandomness: 60,
		Farewell:        "gtg, ttyl",
		Online:          true,
	}
}

// Normalize clamps the delay range so that DelayMinSec >= 3 and
// DelayMaxSec >= DelayMinSec+2.
func (b *Bot) Normalize() {
	b.DelayMinSec, b.DelayMaxSec = ClampDelays(b.DelayMinSec, b.DelayMaxSec)
	if b.TalkFrequency < 0 {
		b.TalkFrequency = 0
	}
	if b.Topics == nil {
		b.Topics = []string{}
	}
}

// ClampDelays applies the delay invariants to a raw min/max pair.
func ClampDelays(minSec, maxSec int) (int, int) {
	if minSec < MinDelaySec {
		minSec = MinDelaySec
	}
	if maxSec < minSec+MinDelaySpread {
		maxSec = minSec + MinDelaySpread
	}
	return minSec, maxSec
}

// BotPatch is a partial bot update. Nil fields are left untouched.
type BotPatch struct {
	Name            *string   `json:"name,omitempty"`
	Persona         *string   `json:"persona,omitempty"`
	Subject         *string   `json:"subject,omitempty"`
	Topics          *[]string `json:"topics,omitempty"`
	SlangLevel      *int      `json:"slang_level,omitempty"`
	TalkFrequency   *float64  `json:"talk_frequency,omitempty"`
	DelayMinSec     *int      `json:"delay_min_sec,omitempty"`
	DelayMaxSec     *int      `json:"delay_max_sec,omitempty"`
	ActiveStart     *string   `json:"active_start,omitempty"`
	ActiveEnd       *string   `json:"active_end,omitempty"`
	TeachNewcomers  *bool     `json:"teach_newcomers,omitempty"`
	HumanRandomness *int      `json:"human_randomness,omitempty"`
	Farewell        *string   `json:"farewell,omitempty"`
	Online          *bool     `json:"online,omitempty"`
}

// Apply copies every set field of p onto b and normalizes the result.
func (p BotPatch) Apply(b *Bot) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Persona != nil {
		b.Persona = *p.Persona
	}
	if p.Subject != nil {
		b.Subject = *p.Subject
	}
	if p.Topics != nil {
		b.Topics = append([]string(nil), (*p.Topics)...)
	}
	if p.SlangLevel != nil {
		b.SlangLevel = *p.SlangLevel
	}
	if p.TalkFrequency != nil {
		b.TalkFrequency = *p.TalkFrequency
	}
	if p.DelayMinSec != nil {
		b.DelayMinSec = *p.DelayMinSec
	}
	if p.DelayMaxSec != nil {
		b.DelayMaxSec = *p.DelayMaxSec
	}
	if p.ActiveStart != nil {
		b.ActiveStart = *p.ActiveStart
	}
	if p.ActiveEnd != nil {
		b.ActiveEnd = *p.ActiveEnd
	}
	if p.TeachNewcomers != nil {
		b.TeachNewcomers = *p.TeachNewcomers
	}
	if p.HumanRandomness != nil {
		b.HumanRandomness = *p.HumanRandomness
	}
	if p.Farewell != nil {
		b.Farewell = *p.Farewell
	}
	if p.Online != nil {
		b.Online = *p.Online
	}
	b.Normalize()
}

// Message is an immutable entry in the shared conversation.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
}

// NewMessage stamps a message with a fresh id.
func NewMessage(author, text string, ts time.Time) Message {
	return Message{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Author:    author,
		Text:      text,
	}
}

// ScheduledItem is a pending speak intent. It lives only in memory.
type ScheduledItem struct {
	BotID  string    `json:"bot_id"`
	Due    time.Time `json:"due"`
	Reason Reason    `json:"reason"`
}
