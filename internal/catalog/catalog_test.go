package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "home.json")
	pages := []Page{{
		Name:    "Phim Bộ/horizontal",
		HasNext: true,
		Items: []Item{
			{ID: "a1", Title: "One", URL: "https://api.example/content/a1", PosterURL: "https://img/a1.jpg", Quality: Tier4K},
			{ID: "l1", Title: "VTV1", URL: "https://api.example/livetv/detail/l1", Live: true},
		},
	}}
	require.NoError(t, Save(path, pages))

	var got []Page
	require.NoError(t, Load(path, &got))
	if diff := cmp.Diff(pages, got); diff != "" {
		t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_atomic_noPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "home.json")
	require.NoError(t, Save(path, Page{Name: "x"}))
	require.NoError(t, Save(path, Page{Name: "y"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "home.json", entries[0].Name())

	var p Page
	require.NoError(t, Load(path, &p))
	assert.Equal(t, "y", p.Name)
}

func TestLoad_errors(t *testing.T) {
	var p Page
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.json"), &p))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	assert.Error(t, Load(bad, &p))
}

func TestResolutionTier_Dimensions(t *testing.T) {
	tests := []struct {
		tier ResolutionTier
		w, h int
	}{
		{Tier4K, 3840, 2160},
		{Tier2K, 2560, 1440},
		{TierFullHD, 1920, 1080},
		{TierHD, 1280, 720},
		{ResolutionTier("8K"), 0, 0},
	}
	for _, tt := range tests {
		w, h := tt.tier.Dimensions()
		assert.Equal(t, tt.w, w, tt.tier)
		assert.Equal(t, tt.h, h, tt.tier)
	}
	assert.Equal(t, []ResolutionTier{TierFullHD, Tier4K, Tier2K, TierHD}, PlaybackTiers)
}
