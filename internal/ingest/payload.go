package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // decoders for image.Decode
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
)

// Thumbnail geometry for image items.
const (
	ThumbnailMaxEdge = 800
	ThumbnailQuality = 80
)

// Extensions lists the local file types the ingester reads, keyed by
// lowercase extension.
var Extensions = map[string]archive.MediaType{
	".md":   archive.MediaText,
	".txt":  archive.MediaText,
	".pdf":  archive.MediaPDF,
	".jpg":  archive.MediaImage,
	".jpeg": archive.MediaImage,
	".png":  archive.MediaImage,
	".gif":  archive.MediaImage,
	".mp3":  archive.MediaAudio,
	".wav":  archive.MediaAudio,
	".mp4":  archive.MediaVideo,
}

// descriptionLines caps how many content lines feed a description.
const descriptionLines = 5

// FileReader turns local files into items.
type FileReader struct {
	thumbDir string
	hasher   archive.Hasher
	now      func() time.Time
	logger   *zap.Logger
}

// NewFileReader returns a FileReader writing thumbnails under thumbDir. A nil
// hasher means SHA-256.
func NewFileReader(thumbDir string, hasher archive.Hasher, now func() time.Time, logger *zap.Logger) *FileReader {
	if hasher == nil {
		hasher = sha256.New()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileReader{thumbDir: thumbDir, hasher: hasher, now: now, logger: logger}
}

// Read builds an item for the file at full, where rel is its slash path
// starting with the root directory's name. Identity is the digest of the
// file bytes.
func (r *FileReader) Read(full, rel string) (archive.Item, error) {
	ext := strings.ToLower(filepath.Ext(full))
	media, ok := Extensions[ext]
	if !ok {
		return archive.Item{}, fmt.Errorf("unsupported file type %q", ext)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return archive.Item{}, fmt.Errorf("read %s: %w", rel, err)
	}
	id, checksum, err := archive.IdentityFromContent(r.hasher, data)
	if err != nil {
		return archive.Item{}, fmt.Errorf("identify %s: %w", rel, err)
	}
	meta := MetaFromPath(rel)

	item := archive.Item{
		Record: archive.Record{
			ID:             id,
			Title:          meta.Title,
			Date:           meta.Date,
			Collection:     meta.Collection,
			Series:         meta.Series,
			SourceURL:      meta.SourceURL,
			Rights:         meta.Rights,
			Citation:       meta.Citation,
			Advisory:       meta.Advisory,
			MediaType:      media,
			ChecksumSHA256: checksum,
			AddedAt:        r.now().UTC().Format(archive.TimeLayout),
		},
		LocalPath: rel,
	}

	switch media {
	case archive.MediaText:
		r.readText(&item, data, strings.TrimSuffix(filepath.Base(full), filepath.Ext(full)))
	case archive.MediaPDF:
		r.readPDF(&item, full)
	case archive.MediaImage:
		name, err := r.writeThumbnail(data, checksum)
		if err != nil {
			return archive.Item{}, fmt.Errorf("thumbnail %s: %w", rel, err)
		}
		item.Thumbnail = name
	case archive.MediaAudio, archive.MediaVideo:
		item.TranscriptText = AdjacentTranscript(full)
		if item.TranscriptText != "" {
			item.Description = firstLines(item.TranscriptText, descriptionLines)
		} else {
			item.Description = item.Title
		}
	}
	return item, nil
}

type frontMatter struct {
	Title    string   `yaml:"title"`
	Creators []string `yaml:"creators"`
	Subjects []string `yaml:"subjects"`
}

func (r *FileReader) readText(item *archive.Item, data []byte, baseName string) {
	fm, content, err := splitFrontMatter(data)
	if err != nil {
		r.logger.Warn("invalid front matter", zap.String("path", item.LocalPath), zap.Error(err))
	}
	lines := nonEmptyLines(content, 0)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	item.Title = archive.FirstNonEmpty(fm.Title, first, baseName)
	if len(lines) > 1 {
		end := min(len(lines), descriptionLines)
		item.Description = strings.Join(lines[1:end], " ")
	}
	item.TranscriptText = content
	item.Creators = archive.Union(fm.Creators)
	item.Subjects = archive.Union(fm.Subjects)
}

// splitFrontMatter separates a leading "---" YAML block from the body. A
// document without a closed block is returned whole.
func splitFrontMatter(data []byte) (frontMatter, string, error) {
	text := strings.ReplaceAll(strings.TrimPrefix(string(data), "\ufeff"), "\r\n", "\n")
	var fm frontMatter
	if !strings.HasPrefix(text, "---\n") {
		return fm, text, nil
	}
	rest := text[len("---\n"):]
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		if strings.TrimSuffix(line, "\n") == "---" {
			body := rest[offset+len(line):]
			if err := yaml.Unmarshal([]byte(rest[:offset]), &fm); err != nil {
				return frontMatter{}, body, fmt.Errorf("parse front matter: %w", err)
			}
			return fm, body, nil
		}
		offset += len(line)
	}
	return fm, text, nil
}

func (r *FileReader) readPDF(item *archive.Item, full string) {
	text, err := pdfText(full)
	if err != nil {
		r.logger.Warn("could not parse pdf", zap.String("path", item.LocalPath), zap.Error(err))
		return
	}
	item.OCRText = text
	item.Description = firstLines(text, descriptionLines)
}

func pdfText(full string) (text string, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read pdf: %v", rec)
		}
	}()
	f, reader, err := pdf.Open(full)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

// writeThumbnail stores a JPEG no larger than ThumbnailMaxEdge on either side
// and returns its file name.
func (r *FileReader) writeThumbnail(data []byte, checksum string) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	w, h := fitInside(src.Bounds().Dx(), src.Bounds().Dy(), ThumbnailMaxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	if err := os.MkdirAll(r.thumbDir, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	name := checksum[:16] + ".jpg"
	f, err := os.Create(filepath.Join(r.thumbDir, name))
	if err != nil {
		return "", fmt.Errorf("create thumbnail: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := jpeg.Encode(bw, dst, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("flush thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close thumbnail: %w", err)
	}
	return name, nil
}

// fitInside scales w x h down to fit a max x max box, keeping the aspect
// ratio. Smaller images keep their size.
func fitInside(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return max(w, 1), max(h, 1)
	}
	if w >= h {
		return maxEdge, max(h*maxEdge/w, 1)
	}
	return max(w*maxEdge/h, 1), maxEdge
}

// AdjacentTranscript returns the contents of the first .txt or .md file in
// the media file's directory whose name starts with the media file's stem.
func AdjacentTranscript(mediaPath string) string {
	dir := filepath.Dir(mediaPath)
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, stem) {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(name)); ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		return string(data)
	}
	return ""
}

func nonEmptyLines(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func firstLines(text string, n int) string {
	return strings.Join(nonEmptyLines(text, n), " ")
}
