package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDelays(t *testing.T) {
	tests := []struct {
		name             string
		min, max         int
		wantMin, wantMax int
	}{
		{"zero", 0, 1, 3, 5},
		{"negative", -10, -4, 3, 5},
		{"spread too small", 10, 11, 10, 12},
		{"already valid", 20, 90, 20, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax := ClampDelays(tt.min, tt.max)
			assert.Equal(t, tt.wantMin, gotMin)
			assert.Equal(t, tt.wantMax, gotMax)
		})
	}
}

func TestBotPatch_Apply(t *testing.T) {
	b := DefaultBot()
	name := "HypeDude"
	online := false
	delayMin := 1
	BotPatch{Name: &name, Online: &online, DelayMinSec: &delayMin}.Apply(&b)

	assert.Equal(t, "HypeDude", b.Name)
	assert.False(t, b.Online)
	assert.Equal(t, 3, b.DelayMinSec)
	assert.Equal(t, 90, b.DelayMaxSec)
	assert.Equal(t, "random vibes", b.Subject)
}

func TestState_AddTopicKeepsOrder(t *testing.T) {
	st := DefaultState()
	assert.True(t, st.AddTopic("beaming"))
	assert.True(t, st.AddTopic("music"))
	assert.False(t, st.AddTopic("beaming"))
	assert.Equal(t, []string{"beaming", "music"}, st.Topics)
}

func TestState_CloneIsDeep(t *testing.T) {
	st := DefaultState()
	st.Bots[0].Topics = []string{"a"}
	cp := st.Clone()
	cp.Bots[0].Name = "Other"
	cp.Bots[0].Topics[0] = "b"
	cp.Topics = append(cp.Topics, "x")

	assert.Equal(t, "ChillBro", st.Bots[0].Name)
	assert.Equal(t, []string{"a"}, st.Bots[0].Topics)
	assert.Empty(t, st.Topics)
}

func TestState_BotLookup(t *testing.T) {
	st := DefaultState()
	id := st.Bots[0].ID

	require.NotNil(t, st.Bot(id))
	assert.Nil(t, st.Bot("missing"))
	require.NotNil(t, st.BotByName("chillbro"))
	assert.Equal(t, id, st.BotByName("chillbro").ID)
}

func TestState_NormalizeFillsDefaults(t *testing.T) {
	st := &State{}
	st.Normalize()
	assert.NotNil(t, st.Bots)
	assert.NotNil(t, st.Messages)
	assert.NotNil(t, st.Topics)
	assert.Equal(t, DefaultModel, st.Settings.Model)
}
