package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

func TestFindMediaPrefersMetaThenElements(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<meta property="og:video:secure_url" content="https://cdn.example.org/clip.mp4">
</head><body>
<audio src="/audio/track.mp3"></audio>
</body></html>`

	got, ok, err := FindMedia([]byte(html), "https://example.org/item/1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MediaCandidate{URL: "https://cdn.example.org/clip.mp4", Kind: archive.MediaVideo}, got)

	got, ok, err = FindMedia([]byte(html), "https://example.org/item/1", archive.MediaAudio)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MediaCandidate{URL: "https://example.org/audio/track.mp3", Kind: archive.MediaAudio}, got)
}

func TestFindMediaScansEscapedScripts(t *testing.T) {
	t.Parallel()

	html := `<html><body><script>var player = {"file":"https:\/\/stream.example.org\/hls\/master.m3u8?token=abc"};</script></body></html>`

	got, ok, err := FindMedia([]byte(html), "https://example.org/item/2", archive.MediaVideo)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://stream.example.org/hls/master.m3u8?token=abc", got.URL)
	assert.Equal(t, archive.MediaVideo, got.Kind)
}

func TestFindMediaImpliedKind(t *testing.T) {
	t.Parallel()

	html := `<html><body><video><source src="/stream?id=9"></video></body></html>`

	got, ok, err := FindMedia([]byte(html), "https://example.org/v", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MediaCandidate{URL: "https://example.org/stream?id=9", Kind: archive.MediaVideo}, got)
}

func TestFindMediaNone(t *testing.T) {
	t.Parallel()

	_, ok, err := FindMedia([]byte(`<html><body><img src="/a.jpg"></body></html>`), "https://example.org/", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = FindMedia(nil, "relative/path", "")
	assert.Error(t, err)
}
