package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetaFromPath(t *testing.T) {
	t.Parallel()

	m := MetaFromPath("2025-10-18/sample/note.md")
	assert.Equal(t, "sample", m.Collection)
	assert.Equal(t, "2025-10-18", m.Date)
	assert.Equal(t, "note", m.Title)
	assert.Empty(t, m.Series)
	assert.False(t, m.Advisory)
	assert.Equal(t, "note. sample. 2025-10-18. Repo path: 2025-10-18/sample/note.md.", m.Citation)
}

func TestMetaFromPathSeriesAndAdvisory(t *testing.T) {
	t.Parallel()

	m := MetaFromPath("root/mayoral/harmful-content/1975/press_release-draft.pdf")
	assert.Equal(t, "mayoral", m.Collection)
	assert.Equal(t, "harmful-content / 1975", m.Series)
	assert.Equal(t, "press release draft", m.Title)
	assert.True(t, m.Advisory)
	assert.Equal(t, "Contains potentially harmful content.", m.Rights)
	assert.Empty(t, m.Date)
	assert.Equal(t, "press release draft. mayoral. Date unknown. Repo path: root/mayoral/harmful-content/1975/press_release-draft.pdf.", m.Citation)
}

func TestMetaFromPathSourceURL(t *testing.T) {
	t.Parallel()

	m := MetaFromPath("root/web/https:/archives.example.org/item/7/page.txt")
	assert.Equal(t, "https://archives.example.org/item/7/page.txt", m.SourceURL)
}

func TestMetaFromPathBareFile(t *testing.T) {
	t.Parallel()

	m := MetaFromPath("loose.txt")
	assert.Empty(t, m.Collection)
	assert.Equal(t, "loose. NYC DORIS collections. Date unknown. Repo path: loose.txt.", m.Citation)
}
