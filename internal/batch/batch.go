// Package batch reads and writes harvested record batches: newline-delimited
// JSON, one record per line.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
)

// maxLineSize bounds a single record line.
const maxLineSize = 8 << 20

// LineError reports a malformed line. Field is empty for JSON syntax errors.
type LineError struct {
	Line  int
	Field string
	Msg   string
}

func (e *LineError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid JSON at line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("invalid record at line %d (%s): %s", e.Line, e.Field, e.Msg)
}

// Reader decodes and validates batch lines.
type Reader struct {
	validate *validator.Validate
	hasher   archive.Hasher
	now      func() time.Time
}

// NewReader returns a Reader. hasher fills checksumSha256 when a line has
// none (nil means SHA-256); now stamps addedAt likewise (nil means time.Now).
func NewReader(hasher archive.Hasher, now func() time.Time) *Reader {
	if hasher == nil {
		hasher = sha256.New()
	}
	if now == nil {
		now = time.Now
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Reader{validate: v, hasher: hasher, now: now}
}

// ReadFile reads every record in the batch at path.
func (r *Reader) ReadFile(path string) ([]archive.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	return items, nil
}

// Read decodes records from src. The first malformed line aborts the read
// with a *LineError; blank lines are skipped.
func (r *Reader) Read(src io.Reader) ([]archive.Item, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var items []archive.Item
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		item, err := r.decodeLine(raw, lineNo)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	return items, nil
}

// wireRecord is the wire shape of one record. Types are loose so that coercion
// errors can name the field rather than fail the whole decode.
type wireRecord struct {
	ID              string    `json:"id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	MediaType       string    `json:"mediaType" validate:"required,oneof=text pdf image audio video"`
	Description     string    `json:"description"`
	Date            string    `json:"date"`
	Creators        []string  `json:"creators"`
	Subjects        []string  `json:"subjects"`
	Collection      string    `json:"collection"`
	Series          string    `json:"series"`
	Rights          string    `json:"rights"`
	SourceURL       string    `json:"sourceUrl"`
	Thumbnail       string    `json:"thumbnail"`
	Citation        string    `json:"citation"`
	ChecksumSHA256  string    `json:"checksumSha256" validate:"omitempty,len=64,hexadecimal"`
	AddedAt         string    `json:"addedAt"`
	MediaURL        string    `json:"mediaUrl"`
	LocalPath       string    `json:"localPath"`
	TranscriptText  string    `json:"transcriptText"`
	OCRText         string    `json:"ocrText"`
	CaptionsVTTPath string    `json:"captionsVttPath"`
	CaptionsSRTPath string    `json:"captionsSrtPath"`
	DurationSec     flexFloat `json:"durationSec"`
	Advisory        flexBool  `json:"advisory"`
}

func (r *Reader) decodeLine(raw []byte, n int) (archive.Item, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return archive.Item{}, &LineError{Line: n, Msg: err.Error()}
	}

	var l wireRecord
	if err := json.Unmarshal(raw, &l); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return archive.Item{}, &LineError{Line: n, Field: typeErr.Field, Msg: "expected " + typeErr.Type.String()}
		}
		var fieldErr *fieldError
		if errors.As(err, &fieldErr) {
			return archive.Item{}, &LineError{Line: n, Field: fieldErr.field, Msg: fieldErr.msg}
		}
		return archive.Item{}, &LineError{Line: n, Msg: err.Error()}
	}
	l.MediaType = strings.ToLower(strings.TrimSpace(l.MediaType))
	l.ChecksumSHA256 = strings.ToLower(strings.TrimSpace(l.ChecksumSHA256))

	if err := r.validate.Struct(l); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return archive.Item{}, &LineError{Line: n, Field: verrs[0].Field(), Msg: describe(verrs[0])}
		}
		return archive.Item{}, &LineError{Line: n, Field: "record", Msg: err.Error()}
	}
	if l.DurationSec.set && l.DurationSec.value < 0 {
		return archive.Item{}, &LineError{Line: n, Field: "durationSec", Msg: "must be a non-negative number"}
	}

	item, err := r.toItem(l)
	if err != nil {
		return archive.Item{}, &LineError{Line: n, Field: "checksumSha256", Msg: err.Error()}
	}
	return item, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "len", "hexadecimal":
		return "must be a 64 character hex string"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func (r *Reader) toItem(l wireRecord) (archive.Item, error) {
	media, _ := archive.ParseMediaType(l.MediaType)
	item := archive.Item{
		Record: archive.Record{
			ID:             strings.TrimSpace(l.ID),
			Title:          strings.TrimSpace(l.Title),
			Description:    strings.TrimSpace(l.Description),
			Date:           strings.TrimSpace(l.Date),
			Creators:       archive.Union(l.Creators),
			Subjects:       archive.Union(l.Subjects),
			Collection:     strings.TrimSpace(l.Collection),
			Series:         strings.TrimSpace(l.Series),
			Rights:         strings.TrimSpace(l.Rights),
			SourceURL:      strings.TrimSpace(l.SourceURL),
			MediaType:      media,
			Thumbnail:      strings.TrimSpace(l.Thumbnail),
			Citation:       strings.TrimSpace(l.Citation),
			Advisory:       l.Advisory.value,
			ChecksumSHA256: l.ChecksumSHA256,
			AddedAt:        strings.TrimSpace(l.AddedAt),
			MediaURL:       strings.TrimSpace(l.MediaURL),
		},
		LocalPath:       strings.TrimSpace(l.LocalPath),
		TranscriptText:  l.TranscriptText,
		OCRText:         l.OCRText,
		CaptionsVTTPath: strings.TrimSpace(l.CaptionsVTTPath),
		CaptionsSRTPath: strings.TrimSpace(l.CaptionsSRTPath),
	}
	if l.DurationSec.set {
		d := l.DurationSec.value
		item.DurationSec = &d
	}
	if item.ChecksumSHA256 == "" {
		sum, err := r.hasher.Hash([]byte(archive.FirstNonEmpty(item.SourceURL, item.ID)))
		if err != nil {
			return archive.Item{}, fmt.Errorf("default checksum: %w", err)
		}
		item.ChecksumSHA256 = sum
	}
	if item.AddedAt == "" {
		item.AddedAt = r.now().UTC().Format(archive.TimeLayout)
	}
	return item, nil
}

// fieldError carries a coercion failure out of a custom unmarshaler.
type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string { return e.field + ": " + e.msg }

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return &fieldError{field: "durationSec", msg: "must be a non-negative number"}
	}
	f.value, f.set = v, true
	return nil
}

// flexBool accepts true/false, 0/1, or null.
type flexBool struct {
	value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		b.value = true
	case "false", "0", "null":
		b.value = false
	default:
		return &fieldError{field: "advisory", msg: "must be a boolean"}
	}
	return nil
}
