package ingest

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
)

var fixedNow = func() time.Time { return time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC) }

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestReadMarkdownWithFrontMatter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	body := "---\ntitle: Meeting Notes\ncreators: [Jane Doe, Jane Doe, Sam Poe]\nsubjects:\n  - zoning\n---\nFirst line\n\nSecond line\nThird line\n"
	full := filepath.Join(dir, "2025-10-18", "council", "notes.md")
	writeFile(t, full, []byte(body))

	r := NewFileReader(filepath.Join(dir, "thumbs"), nil, fixedNow, zap.NewNop())
	item, err := r.Read(full, "2025-10-18/council/notes.md")
	require.NoError(t, err)

	sum := sha256.Sum([]byte(body))
	assert.Equal(t, sum[:archive.IDLength], item.ID)
	assert.Equal(t, sum, item.ChecksumSHA256)
	assert.Equal(t, "Meeting Notes", item.Title)
	assert.Equal(t, "Second line Third line", item.Description)
	assert.Equal(t, []string{"Jane Doe", "Sam Poe"}, item.Creators)
	assert.Equal(t, []string{"zoning"}, item.Subjects)
	assert.Equal(t, archive.MediaText, item.MediaType)
	assert.Equal(t, "council", item.Collection)
	assert.Equal(t, "2025-10-18", item.Date)
	assert.Equal(t, "2025-10-18/council/notes.md", item.LocalPath)
	assert.Equal(t, "First line\n\nSecond line\nThird line\n", item.TranscriptText)
	assert.Equal(t, "2025-10-18T08:00:00.000Z", item.AddedAt)
}

func TestReadTextFallsBackToFirstLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	full := filepath.Join(dir, "r", "c", "letter.txt")
	writeFile(t, full, []byte("\n  Dear Commissioner  \nbody\n"))

	item, err := NewFileReader(dir, nil, fixedNow, nil).Read(full, "r/c/letter.txt")
	require.NoError(t, err)
	assert.Equal(t, "Dear Commissioner", item.Title)

	empty := filepath.Join(dir, "r", "c", "blank_page.txt")
	writeFile(t, empty, []byte("\n\n"))
	item, err = NewFileReader(dir, nil, fixedNow, nil).Read(empty, "r/c/blank_page.txt")
	require.NoError(t, err)
	assert.Equal(t, "blank_page", item.Title)
}

func TestSplitFrontMatter(t *testing.T) {
	t.Parallel()

	fm, body, err := splitFrontMatter([]byte("---\r\ntitle: T\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "T", fm.Title)
	assert.Equal(t, "body", body)

	fm, body, err = splitFrontMatter([]byte("---\nunterminated"))
	require.NoError(t, err)
	assert.Empty(t, fm.Title)
	assert.Equal(t, "---\nunterminated", body)

	_, body, err = splitFrontMatter([]byte("---\ntitle: [oops\n---\nrest"))
	assert.Error(t, err)
	assert.Equal(t, "rest", body)
}

func TestReadImageWritesThumbnail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 1600, 400))
	for x := 0; x < 1600; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	full := filepath.Join(dir, "root", "photos", "bridge.png")
	writeFile(t, full, buf.Bytes())

	thumbs := filepath.Join(dir, "public", "thumbnails")
	item, err := NewFileReader(thumbs, nil, fixedNow, nil).Read(full, "root/photos/bridge.png")
	require.NoError(t, err)
	assert.Equal(t, archive.MediaImage, item.MediaType)
	assert.Equal(t, item.ChecksumSHA256[:16]+".jpg", item.Thumbnail)

	f, err := os.Open(filepath.Join(thumbs, item.Thumbnail))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestReadImageRejectsCorruptData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	full := filepath.Join(dir, "root", "c", "broken.jpg")
	writeFile(t, full, []byte("not an image"))

	_, err := NewFileReader(dir, nil, fixedNow, nil).Read(full, "root/c/broken.jpg")
	assert.Error(t, err)
}

func TestReadMediaUsesAdjacentTranscript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	media := filepath.Join(dir, "root", "oral", "audio.mp3")
	writeFile(t, media, []byte("ID3 fake audio"))
	writeFile(t, filepath.Join(dir, "root", "oral", "audio.txt"), []byte("Audio transcript line one\nline two\n"))
	video := filepath.Join(dir, "root", "oral", "clip.mp4")
	writeFile(t, video, []byte("fake video"))

	r := NewFileReader(dir, nil, fixedNow, nil)
	item, err := r.Read(media, "root/oral/audio.mp3")
	require.NoError(t, err)
	assert.Equal(t, archive.MediaAudio, item.MediaType)
	assert.Contains(t, item.TranscriptText, "Audio transcript line one")
	assert.Equal(t, "Audio transcript line one line two", item.Description)

	item, err = r.Read(video, "root/oral/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, archive.MediaVideo, item.MediaType)
	assert.Empty(t, item.TranscriptText)
	assert.Equal(t, "clip", item.Description)
}

func TestReadUnparseablePDFKeepsItem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	full := filepath.Join(dir, "root", "c", "scan.pdf")
	writeFile(t, full, []byte("%PDF-1.4 truncated"))

	item, err := NewFileReader(dir, nil, fixedNow, nil).Read(full, "root/c/scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, archive.MediaPDF, item.MediaType)
	assert.Empty(t, item.OCRText)
	assert.Equal(t, "scan", item.Title)
}

func TestReadPDFTextLayer(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("testdata", "survey.pdf"))
	require.NoError(t, err)
	dir := t.TempDir()
	full := filepath.Join(dir, "root", "surveys", "survey.pdf")
	writeFile(t, full, data)

	item, err := NewFileReader(dir, nil, fixedNow, zap.NewNop()).Read(full, "root/surveys/survey.pdf")
	require.NoError(t, err)
	assert.Equal(t, archive.MediaPDF, item.MediaType)
	assert.Contains(t, item.OCRText, "Parade route survey 1952")
	assert.Contains(t, item.Description, "Parade route survey 1952")
	assert.Equal(t, sha256.Sum(data), item.ChecksumSHA256)
}

type stubHasher struct {
	sum string
	err error
}

func (h stubHasher) Hash([]byte) (string, error) { return h.sum, h.err }

func TestReadUsesInjectedHasher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	full := filepath.Join(dir, "root", "c", "note.txt")
	writeFile(t, full, []byte("hello"))

	digest := strings.Repeat("ab", 32)
	item, err := NewFileReader(dir, stubHasher{sum: digest}, fixedNow, nil).Read(full, "root/c/note.txt")
	require.NoError(t, err)
	assert.Equal(t, digest, item.ChecksumSHA256)
	assert.Equal(t, digest[:archive.IDLength], item.ID)

	_, err = NewFileReader(dir, stubHasher{err: errors.New("no digest")}, fixedNow, nil).Read(full, "root/c/note.txt")
	require.ErrorContains(t, err, "identify root/c/note.txt")
}

func TestReadRejectsUnsupported(t *testing.T) {
	t.Parallel()

	_, err := NewFileReader(t.TempDir(), nil, fixedNow, nil).Read("x.docx", "root/x.docx")
	assert.Error(t, err)
}

func TestFitInside(t *testing.T) {
	t.Parallel()

	tests := []struct{ w, h, wantW, wantH int }{
		{1600, 400, 800, 200},
		{400, 1600, 200, 800},
		{640, 480, 640, 480},
		{5000, 1, 800, 1},
	}
	for _, tt := range tests {
		w, h := fitInside(tt.w, tt.h, 800)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
