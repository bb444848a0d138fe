package models

import "strings"

// DefaultModel is the chat-completion model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Settings configures text generation.
type Settings struct {
	UseOpenAI bool   `json:"use_openai"`
	APIKey    string `json:"openai_key"`
	Model     string `json:"model"`
}

func DefaultSettings() Settings {
	return Settings{Model: DefaultModel}
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	UseOpenAI *bool   `json:"use_openai,omitempty"`
	APIKey    *string `json:"openai_key,omitempty"`
	Model     *string `json:"model,omitempty"`
}

func (p SettingsPatch) Apply(s *Settings) {
	if p.UseOpenAI != nil {
		s.UseOpenAI = *p.UseOpenAI
	}
	if p.APIKey != nil {
		s.APIKey = *p.APIKey
	}
	if p.Model != nil {
		s.Model = *p.Model
	}
}

// State is everything the persistence layer stores.
type State struct {
	Bots     []Bot     `json:"bots"`
	Messages []Message `json:"messages"`
	Topics   []string  `json:"topics"`
	Settings Settings  `json:"settings"`
}

// DefaultState is what an uninitialized store loads as.
func DefaultState() *State {
	return &State{
		Bots:     []Bot{DefaultBot()},
		Messages: []Message{},
		Topics:   []string{},
		Settings: DefaultSettings(),
	}
}

// Bot returns a pointer into the roster, or nil for an unknown id.
func (s *State) Bot(id string) *Bot {
	for i := range s.Bots {
		if s.Bots[i].ID == id {
			return &s.Bots[i]
		}
	}
	return nil
}

// BotByName matches exactly first, then case-insensitively.
func (s *State) BotByName(name string) *Bot {
	for i := range s.Bots {
		if s.Bots[i].Name == name {
			return &s.Bots[i]
		}
	}
	for i := range s.Bots {
		if strings.EqualFold(strings.TrimSpace(s.Bots[i].Name), strings.TrimSpace(name)) {
			return &s.Bots[i]
		}
	}
	return nil
}

// AddTopic appends topic unless it is already present.
func (s *State) AddTopic(topic string) bool {
	for _, t := range s.Topics {
		if t == topic {
			return false
		}
	}
	s.Topics = append(s.Topics, topic)
	return true
}

// Normalize fills nil collections and default settings left by older or
// partial saves.
func (s *State) Normalize() {
	if s.Bots == nil {
		s.Bots = []Bot{}
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Topics == nil {
		s.Topics = []string{}
	}
	if s.Settings.Model == "" {
		s.Settings.Model = DefaultModel
	}
	for i := range s.Bots {
		s.Bots[i].Normalize()
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() *State {
	out := &State{
		Bots:     make([]Bot, len(s.Bots)),
		Messages: append([]Message{}, s.Messages...),
		Topics:   append([]string{}, s.Topics...),
		Settings: s.Settings,
	}
	for i, b := range s.Bots {
		b.Topics = append([]string{}, b.Topics...)
		out.Bots[i] = b
	}
	return out
}
