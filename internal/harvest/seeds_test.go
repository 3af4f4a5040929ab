package harvest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/classify"
)

func writeSeeds(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSeedsURLList(t *testing.T) {
	path := writeSeeds(t, "seeds.txt", `# sample seeds
https://archive.example.org/IO_1/

  https://archive.example.org/IO_2/
#https://archive.example.org/IO_skipped/
https://archive.example.org/IO_3/
`)
	list, err := LoadSeeds(path, 0)
	require.NoError(t, err)
	assert.Equal(t, classify.DefaultGeneric, list.DefaultMedia)
	assert.Equal(t, []string{
		"https://archive.example.org/IO_1/",
		"https://archive.example.org/IO_2/",
		"https://archive.example.org/IO_3/",
	}, list.URLs())

	capped, err := LoadSeeds(path, 2)
	require.NoError(t, err)
	assert.Len(t, capped.Seeds, 2)
}

func TestLoadSeedsYAML(t *testing.T) {
	list, err := LoadSeeds(writeSeeds(t, "seeds.yaml", `
- url: https://archive.example.org/IO_1/
  title: Override Title
  mediaType: Audio
  creators: [Jane Doe]
- url: https://archive.example.org/IO_2/
  advisory: true
`), 0)
	require.NoError(t, err)
	assert.Equal(t, classify.DefaultDetail, list.DefaultMedia)
	require.Len(t, list.Seeds, 2)
	assert.Equal(t, archive.SeedRecord{
		URL:       "https://archive.example.org/IO_1/",
		Title:     "Override Title",
		MediaType: archive.MediaAudio,
		Creators:  []string{"Jane Doe"},
	}, list.Seeds[0])
	assert.True(t, list.Seeds[1].Advisory)

	wrapped, err := LoadSeeds(writeSeeds(t, "seeds.yml", `
items:
  - url: https://archive.example.org/IO_9/
    collection: Municipal Films
`), 0)
	require.NoError(t, err)
	require.Len(t, wrapped.Seeds, 1)
	assert.Equal(t, "Municipal Films", wrapped.Seeds[0].Collection)
}

func TestLoadSeedsErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"empty list", "seeds.txt", "# nothing\n\n", "no seeds found"},
		{"relative url", "seeds.txt", "/IO_1/\n", "not an absolute url"},
		{"bad yaml", "seeds.yaml", "- url: [unclosed\n", "parse seeds"},
		{"scalar yaml", "seeds.yaml", "just a string\n", "expected a list"},
		{"bad media type", "seeds.yaml", "- url: https://a.example.org/x\n  mediaType: hologram\n", "unknown media type"},
		{"overlong line", "seeds.txt", "https://a.example.org/1\nhttps://a.example.org/" + strings.Repeat("x", 70*1024) + "\nhttps://a.example.org/3\n", "token too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeeds(writeSeeds(t, tt.file, tt.body), 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadSeeds(filepath.Join(t.TempDir(), "missing.txt"), 0)
	require.Error(t, err)
}
