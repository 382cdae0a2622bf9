package database

import (
	"testing"

	modelspkg "inkwell/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_LikesMigrateAfterParents(t *testing.T) {
	index := map[string]int{}
	for i, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.User:
			index["user"] = i
		case *modelspkg.Post:
			index["post"] = i
		case *modelspkg.Like:
			index["like"] = i
		}
	}
	require.Len(t, index, 3)
	require.Greater(t, index["like"], index["user"])
	require.Greater(t, index["like"], index["post"])
}
