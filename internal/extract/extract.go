// Package extract turns a fetched detail page into a normalized archival
// record by reconciling linked-data blocks, definition-list labels, and meta
// tags.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/classify"
)

// Options tunes one extraction call.
type Options struct {
	// DefaultMedia is used when no hint or markup decides the media type.
	DefaultMedia archive.MediaType
	// Now stamps addedAt.
	Now time.Time
}

// Extract parses body fetched from sourceURL into a Record.
//
// Per field the precedence is linked data, then labels (through the synonym
// tables), then meta tags, then a literal fallback. Creators and subjects are
// the union of every pass.
func Extract(body []byte, sourceURL string, opts Options) (archive.Record, error) {
	source, err := url.Parse(sourceURL)
	if err != nil || !source.IsAbs() {
		return archive.Record{}, fmt.Errorf("extract: source url %q is not absolute", sourceURL)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return archive.Record{}, fmt.Errorf("parse html: %w", err)
	}
	if opts.DefaultMedia == "" {
		opts.DefaultMedia = classify.DefaultGeneric
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	p := page{doc: doc, base: source}
	canonical := resolve(source, archive.FirstNonEmpty(p.linkHref("canonical"), p.meta("og:url")))
	if canonical == "" {
		canonical = source.String()
	}
	canonicalURL, err := url.Parse(canonical)
	if err != nil {
		canonicalURL = source
	}
	p.base = canonicalURL

	ld := readStructured(parseBlocks(p.ldBodies()))
	fields := p.readLabels()

	rec := archive.Record{
		Title: archive.FirstNonEmpty(
			ld.title,
			fields.first([]string{"title"}),
			p.meta("og:title", "dc.title"),
			p.firstText("h1"),
			p.firstText("title"),
			"Untitled",
		),
		Description: archive.FirstNonEmpty(
			ld.description,
			fields.first(descriptionLabels),
			p.meta("description", "og:description", "dc.description"),
		),
		Date: NormalizeDate(archive.FirstNonEmpty(
			ld.date,
			fields.first(dateLabels),
			p.doc.Find("time[datetime]").First().AttrOr("datetime", ""),
			p.meta("date", "dc.date"),
		)),
		Creators:   archive.Union(ld.creators, SplitList(fields.all(creatorLabels)), p.metaAll("dc.creator")),
		Subjects:   archive.Union(ld.subjects, SplitList(fields.all(subjectLabels)), p.metaAll("dc.subject")),
		Collection: archive.FirstNonEmpty(fields.first(collectionLabels), p.meta("dc.relation.ispartof")),
		Series:     fields.first(seriesLabels),
		Rights:     archive.FirstNonEmpty(fields.first(rightsLabels), p.meta("dc.rights")),
		SourceURL:  canonical,
		Thumbnail: resolve(p.base, archive.FirstNonEmpty(
			ld.thumbnail,
			p.meta("og:image", "og:image:url", "twitter:image"),
			p.linkHref("image_src"),
		)),
		AddedAt: opts.Now.UTC().Format(archive.TimeLayout),
	}

	hints := append([]string{}, ld.hints...)
	hints = append(hints, fields.all(formatLabels)...)
	for _, key := range []string{"og:type", "twitter:card", "medium", "og:video:type", "og:audio:type"} {
		if v := p.meta(key); v != "" {
			hints = append(hints, v)
		}
	}
	rec.MediaType = classify.Classify(hints, classify.Markup{
		Video: doc.Find("video").Length() > 0,
		Audio: doc.Find("audio").Length() > 0,
	}, opts.DefaultMedia)

	rec.DurationSec = ld.duration
	if rec.DurationSec == nil {
		for _, candidate := range []string{fields.first(durationLabels), p.meta("video:duration", "duration")} {
			if secs, ok := ParseDuration(candidate); ok {
				rec.DurationSec = &secs
				break
			}
		}
	}

	rec.Advisory = IsAdvisory(rec.Description, rec.Rights)
	rec.ID, rec.ChecksumSHA256 = archive.IdentityFromURL(canonical)

	if rec.MediaType.Playable() {
		if media, ok := p.findMedia(string(body), rec.MediaType); ok {
			rec.MediaURL = media.URL
		}
	}
	return rec, nil
}

// ApplySeed overlays operator-supplied values onto an extracted record.
// Scalar overrides replace; creator and subject overrides are unioned. The
// identity always stays derived from the canonical URL.
func ApplySeed(rec archive.Record, seed archive.SeedRecord) archive.Record {
	override := func(dst *string, v string) {
		if v = NormalizeText(v); v != "" {
			*dst = v
		}
	}
	override(&rec.Title, seed.Title)
	override(&rec.Description, seed.Description)
	override(&rec.Collection, seed.Collection)
	override(&rec.Series, seed.Series)
	override(&rec.Rights, seed.Rights)
	override(&rec.Citation, seed.Citation)
	override(&rec.MediaURL, seed.MediaURL)
	if d := NormalizeDate(seed.Date); d != "" {
		rec.Date = d
	}
	if seed.MediaType.Valid() {
		rec.MediaType = seed.MediaType
	}
	rec.Creators = archive.Union(rec.Creators, seed.Creators)
	rec.Subjects = archive.Union(rec.Subjects, seed.Subjects)
	rec.Advisory = rec.Advisory || seed.Advisory || IsAdvisory(rec.Description, rec.Rights)
	return rec
}
