package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	m := NewManager("")
	assert.True(t, m.Enabled(LiveFeed, 0))
	assert.True(t, m.Enabled(Thumbnails, 7))
	assert.False(t, m.Enabled(Flag("unknown"), 7))
}

func TestBooleanValues(t *testing.T) {
	m := NewManager("live_feed=off, Thumbnails = FALSE ,a=1,b=0,garbage,=on")

	assert.False(t, m.Enabled(LiveFeed, 1))
	assert.False(t, m.Enabled(Thumbnails, 1))
	assert.True(t, m.Enabled(Flag("a"), 1))
	assert.False(t, m.Enabled(Flag("b"), 1))
}

func TestPercentageRollout(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,broken=x%")

	assert.True(t, m.Enabled(Flag("always"), 0))
	assert.False(t, m.Enabled(Flag("never"), 1))
	assert.False(t, m.Enabled(Flag("broken"), 1))
	assert.False(t, m.Enabled(Flag("canary"), 0), "guests are outside partial rollouts")

	first := m.Enabled(Flag("canary"), 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled(Flag("canary"), 42))
	}

	enabled := 0
	for uid := uint(1); uid <= 1000; uid++ {
		if m.Enabled(Flag("canary"), uid) {
			enabled++
		}
	}
	assert.InDelta(t, 250, enabled, 80)
}

func TestNilManagerUsesDefaults(t *testing.T) {
	var m *Manager
	assert.True(t, m.Enabled(LiveFeed, 0))
}

func TestSnapshot(t *testing.T) {
	snap := NewManager("thumbnails=off").Snapshot(3)
	assert.Equal(t, map[Flag]bool{LiveFeed: true, Thumbnails: false}, snap)
}
