package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

const itemColumns = `id, title, description, date, creators, subjects, collection, series, source_url,
local_path, media_type, duration_sec, thumbnail, captions_vtt_path, captions_srt_path,
transcript_text, ocr_text, rights, citation, checksum_sha256, added_at, advisory, media_url`

const upsertItemQuery = `INSERT INTO items (
	id, title, description, date, creators, subjects, collection, series, source_url,
	local_path, media_type, duration_sec, thumbnail, captions_vtt_path, captions_srt_path,
	transcript_text, ocr_text, rights, citation, checksum_sha256, added_at, advisory, media_url
) VALUES (
	:id, :title, :description, :date, :creators, :subjects, :collection, :series, :source_url,
	:local_path, :media_type, :duration_sec, :thumbnail, :captions_vtt_path, :captions_srt_path,
	:transcript_text, :ocr_text, :rights, :citation, :checksum_sha256, :added_at, :advisory, :media_url
)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	date = excluded.date,
	creators = excluded.creators,
	subjects = excluded.subjects,
	collection = excluded.collection,
	series = excluded.series,
	source_url = excluded.source_url,
	local_path = excluded.local_path,
	media_type = excluded.media_type,
	duration_sec = excluded.duration_sec,
	thumbnail = excluded.thumbnail,
	captions_vtt_path = excluded.captions_vtt_path,
	captions_srt_path = excluded.captions_srt_path,
	transcript_text = excluded.transcript_text,
	ocr_text = excluded.ocr_text,
	rights = excluded.rights,
	citation = excluded.citation,
	checksum_sha256 = excluded.checksum_sha256,
	added_at = excluded.added_at,
	advisory = excluded.advisory,
	media_url = excluded.media_url`

// The index is external-content: a delete must replay the exact values that
// were indexed, which are the row's current values.
const deleteFTSQuery = `INSERT INTO items_fts(items_fts, rowid, title, description, transcript_text, ocr_text, subjects, creators)
SELECT 'delete', rowid, title, description, transcript_text, ocr_text, subjects, creators FROM items WHERE id = ?`

const insertFTSQuery = `INSERT INTO items_fts(rowid, title, description, transcript_text, ocr_text, subjects, creators)
SELECT rowid, title, description, transcript_text, ocr_text, subjects, creators FROM items WHERE id = ?`

const upsertCollectionQuery = `INSERT INTO collections (id, title, description)
VALUES (:id, :title, :description)
ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description`

type itemRow struct {
	ID              string          `db:"id"`
	Title           string          `db:"title"`
	Description     sql.NullString  `db:"description"`
	Date            sql.NullString  `db:"date"`
	Creators        sql.NullString  `db:"creators"`
	Subjects        sql.NullString  `db:"subjects"`
	Collection      sql.NullString  `db:"collection"`
	Series          sql.NullString  `db:"series"`
	SourceURL       sql.NullString  `db:"source_url"`
	LocalPath       sql.NullString  `db:"local_path"`
	MediaType       string          `db:"media_type"`
	DurationSec     sql.NullFloat64 `db:"duration_sec"`
	Thumbnail       sql.NullString  `db:"thumbnail"`
	CaptionsVTTPath sql.NullString  `db:"captions_vtt_path"`
	CaptionsSRTPath sql.NullString  `db:"captions_srt_path"`
	TranscriptText  sql.NullString  `db:"transcript_text"`
	OCRText         sql.NullString  `db:"ocr_text"`
	Rights          sql.NullString  `db:"rights"`
	Citation        sql.NullString  `db:"citation"`
	ChecksumSHA256  string          `db:"checksum_sha256"`
	AddedAt         string          `db:"added_at"`
	Advisory        int64           `db:"advisory"`
	MediaURL        sql.NullString  `db:"media_url"`
}

// nullable maps blank strings to NULL.
func nullable(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toRow(item archive.Item) (itemRow, error) {
	if strings.TrimSpace(item.ID) == "" {
		return itemRow{}, fmt.Errorf("item has no id")
	}
	if !item.MediaType.Valid() {
		return itemRow{}, fmt.Errorf("item %s has invalid media type %q", item.ID, item.MediaType)
	}
	creators, err := encodeList(item.Creators)
	if err != nil {
		return itemRow{}, fmt.Errorf("item %s creators: %w", item.ID, err)
	}
	subjects, err := encodeList(item.Subjects)
	if err != nil {
		return itemRow{}, fmt.Errorf("item %s subjects: %w", item.ID, err)
	}
	row := itemRow{
		ID:              item.ID,
		Title:           item.Title,
		Description:     nullable(item.Description),
		Date:            nullable(item.Date),
		Creators:        creators,
		Subjects:        subjects,
		Collection:      nullable(item.Collection),
		Series:          nullable(item.Series),
		SourceURL:       nullable(item.SourceURL),
		LocalPath:       nullable(item.LocalPath),
		MediaType:       string(item.MediaType),
		Thumbnail:       nullable(item.Thumbnail),
		CaptionsVTTPath: nullable(item.CaptionsVTTPath),
		CaptionsSRTPath: nullable(item.CaptionsSRTPath),
		TranscriptText:  nullable(item.TranscriptText),
		OCRText:         nullable(item.OCRText),
		Rights:          nullable(item.Rights),
		Citation:        nullable(item.Citation),
		ChecksumSHA256:  item.ChecksumSHA256,
		AddedAt:         item.AddedAt,
		MediaURL:        nullable(item.MediaURL),
	}
	if item.DurationSec != nil {
		row.DurationSec = sql.NullFloat64{Float64: *item.DurationSec, Valid: true}
	}
	if item.Advisory {
		row.Advisory = 1
	}
	return row, nil
}

func (r itemRow) toItem() (archive.Item, error) {
	creators, err := decodeList(r.Creators)
	if err != nil {
		return archive.Item{}, fmt.Errorf("item %s creators: %w", r.ID, err)
	}
	subjects, err := decodeList(r.Subjects)
	if err != nil {
		return archive.Item{}, fmt.Errorf("item %s subjects: %w", r.ID, err)
	}
	item := archive.Item{
		Record: archive.Record{
			ID:             r.ID,
			Title:          r.Title,
			Description:    r.Description.String,
			Date:           r.Date.String,
			Creators:       creators,
			Subjects:       subjects,
			Collection:     r.Collection.String,
			Series:         r.Series.String,
			Rights:         r.Rights.String,
			SourceURL:      r.SourceURL.String,
			MediaType:      archive.MediaType(r.MediaType),
			Thumbnail:      r.Thumbnail.String,
			Citation:       r.Citation.String,
			Advisory:       r.Advisory != 0,
			ChecksumSHA256: r.ChecksumSHA256,
			AddedAt:        r.AddedAt,
			MediaURL:       r.MediaURL.String,
		},
		LocalPath:       r.LocalPath.String,
		TranscriptText:  r.TranscriptText.String,
		OCRText:         r.OCRText.String,
		CaptionsVTTPath: r.CaptionsVTTPath.String,
		CaptionsSRTPath: r.CaptionsSRTPath.String,
	}
	if r.DurationSec.Valid {
		d := r.DurationSec.Float64
		item.DurationSec = &d
	}
	return item, nil
}

func fromRows(rows []itemRow) ([]archive.Item, error) {
	out := make([]archive.Item, 0, len(rows))
	for _, r := range rows {
		item, err := r.toItem()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func collectionRow(c archive.Collection) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"title":       c.Title,
		"description": nullable(c.Description),
	}
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
