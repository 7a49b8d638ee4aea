package plans

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeCatalog(t, `{
		"plans": [
			{"id": "free", "name": "Starter", "daily_message_limit": 10},
			{"id": "pro", "name": "Professional", "price_monthly_cents": 2900, "highlight": true}
		]
	}`)

	reg, err := LoadFromFile(path)
	require.NoError(t, err)

	require.True(t, reg.Exists("free"))
	require.True(t, reg.Exists("pro"))
	require.False(t, reg.Exists("enterprise"))
	require.Equal(t, "Professional", reg.Get("pro").Name)

	all := reg.All()
	require.Len(t, all, 2)
	require.Equal(t, "free", all[0].ID, "catalog order must be preserved")
	require.Equal(t, "pro", all[1].ID)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = LoadFromFile(writeCatalog(t, `{not json`))
	require.Error(t, err)
}

func TestDailyMessageLimit(t *testing.T) {
	path := writeCatalog(t, `{
		"plans": [
			{"id": "free", "daily_message_limit": 10},
			{"id": "pro", "daily_message_limit": 0}
		]
	}`)
	reg, err := LoadFromFile(path)
	require.NoError(t, err)

	require.Equal(t, 10, reg.DailyMessageLimit("free"))
	require.Equal(t, 0, reg.DailyMessageLimit("pro"), "0 means unlimited")
	require.Equal(t, 10, reg.DailyMessageLimit("unknown"), "unknown tiers fall back to free")
}
