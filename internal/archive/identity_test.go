package archive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
)

func TestIdentityFromURLIsStable(t *testing.T) {
	t.Parallel()

	const canonical = "https://archives.example.org/items/42"
	id1, sum1 := IdentityFromURL(canonical)
	id2, sum2 := IdentityFromURL(canonical)

	require.Equal(t, id1, id2)
	require.Equal(t, sum1, sum2)
	assert.Len(t, id1, IDLength)
	assert.Len(t, sum1, 64)
	assert.Equal(t, sha256.SumString(canonical)[:IDLength], id1)
	assert.Equal(t, sum1[:IDLength], id1)

	other, _ := IdentityFromURL(canonical + "/")
	assert.NotEqual(t, id1, other)
}

func TestIdentityFromContent(t *testing.T) {
	t.Parallel()

	id, sum, err := IdentityFromContent(sha256.New(), []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", sum)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfa", id)

	_, _, err = IdentityFromContent(failingHasher{}, []byte("x"))
	require.ErrorContains(t, err, "hash content")
}

type failingHasher struct{}

func (failingHasher) Hash([]byte) (string, error) { return "", errors.New("digest unavailable") }

func TestUnion(t *testing.T) {
	t.Parallel()

	got := Union([]string{" Alice ", "Bob", ""}, []string{"Bob", "Carol"}, nil)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, got)
	assert.Nil(t, Union(nil, []string{"  "}))
}

func TestParseMediaType(t *testing.T) {
	t.Parallel()

	m, ok := ParseMediaType(" Video ")
	require.True(t, ok)
	assert.Equal(t, MediaVideo, m)
	assert.True(t, m.Playable())
	assert.False(t, MediaPDF.Playable())

	_, ok = ParseMediaType("hologram")
	assert.False(t, ok)
	assert.False(t, MediaType("").Valid())
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}
