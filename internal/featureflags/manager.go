// Package featureflags evaluates runtime toggles read from FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flag names a toggle.
type Flag string

const (
	// LiveFeed enables the /ws/feed websocket and the "new posts" banner on the index page.
	LiveFeed Flag = "live_feed"
	// Thumbnails enables WebP thumbnail generation for uploaded images.
	Thumbnails Flag = "thumbnails"
)

// Defaults applies when FEATURE_FLAGS does not mention a flag.
var Defaults = map[Flag]string{
	LiveFeed:   "on",
	Thumbnails: "on",
}

// Manager evaluates flags from a comma separated list such as
// "live_feed=on,thumbnails=off" or "live_feed=25%".
type Manager struct {
	flags map[Flag]string
}

// NewManager parses raw on top of Defaults. Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	out := make(map[Flag]string, len(Defaults))
	for k, v := range Defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[Flag(key)] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether flag is on for the user. Percentage rollouts are
// deterministic per user and never include guests (userID 0).
func (m *Manager) Enabled(flag Flag, userID uint) bool {
	if m == nil {
		return Defaults[flag] == "on"
	}

	switch value := m.flags[flag]; value {
	case "on", "true", "1":
		return true
	case "", "off", "false", "0":
		return false
	default:
		pct, ok := percent(value)
		if !ok || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if userID == 0 {
			return false
		}
		return rolloutBucket(flag, userID) < pct
	}
}

// Snapshot returns every flag evaluated for one user.
func (m *Manager) Snapshot(userID uint) map[Flag]bool {
	out := make(map[Flag]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func percent(value string) (int, bool) {
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(flag Flag, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", flag, userID)
	return int(h.Sum32() % 100)
}
