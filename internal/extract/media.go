package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/classify"
)

// MediaCandidate is a playable reference found on a page.
type MediaCandidate struct {
	URL  string
	Kind archive.MediaType
}

var mediaURLPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>()\\]+?\.(?:mp4|m4v|mov|webm|mkv|m3u8|mp3|m4a|wav|ogg|oga|flac|aac|opus)(?:\?[^\s"'<>\\]*)?`)

// metaMediaKeys are checked first, in order, with the kind each implies when
// the URL has no telling extension.
var metaMediaKeys = []struct {
	key  string
	kind archive.MediaType
}{
	{"og:video:secure_url", archive.MediaVideo},
	{"og:video:url", archive.MediaVideo},
	{"og:video", archive.MediaVideo},
	{"twitter:player:stream", archive.MediaVideo},
	{"og:audio:secure_url", archive.MediaAudio},
	{"og:audio:url", archive.MediaAudio},
	{"og:audio", archive.MediaAudio},
	{"contentUrl", ""},
}

// FindMedia scans a page for a playable media URL. preferred, when audio or
// video, wins over other kinds; otherwise video beats audio.
func FindMedia(body []byte, pageURL string, preferred archive.MediaType) (MediaCandidate, bool, error) {
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return MediaCandidate{}, false, fmt.Errorf("find media: page url %q is not absolute", pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return MediaCandidate{}, false, fmt.Errorf("parse html: %w", err)
	}
	c, ok := page{doc: doc, base: base}.findMedia(string(body), preferred)
	return c, ok, nil
}

func (p page) findMedia(raw string, preferred archive.MediaType) (MediaCandidate, bool) {
	var candidates []MediaCandidate
	seen := make(map[string]struct{})
	add := func(ref string, implied archive.MediaType) {
		abs := resolve(p.base, ref)
		if abs == "" || strings.HasPrefix(abs, "data:") || strings.HasPrefix(abs, "blob:") {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		kind, ok := classify.ByExtension(abs)
		if !ok {
			kind = implied
		}
		candidates = append(candidates, MediaCandidate{URL: abs, Kind: kind})
	}

	for _, m := range metaMediaKeys {
		if v := p.meta(m.key); v != "" {
			add(v, m.kind)
		}
	}
	for _, tag := range []struct {
		name string
		kind archive.MediaType
	}{{"video", archive.MediaVideo}, {"audio", archive.MediaAudio}} {
		p.doc.Find(tag.name).Each(func(_ int, el *goquery.Selection) {
			if src, ok := el.Attr("src"); ok {
				add(src, tag.kind)
			}
			el.Find("source[src]").Each(func(_ int, source *goquery.Selection) {
				add(source.AttrOr("src", ""), tag.kind)
			})
		})
	}
	for _, match := range mediaURLPattern.FindAllString(strings.ReplaceAll(raw, `\/`, "/"), -1) {
		add(match, "")
	}

	return choose(candidates, preferred)
}

func choose(candidates []MediaCandidate, preferred archive.MediaType) (MediaCandidate, bool) {
	if len(candidates) == 0 {
		return MediaCandidate{}, false
	}
	order := []archive.MediaType{archive.MediaVideo, archive.MediaAudio}
	if preferred == archive.MediaAudio {
		order = []archive.MediaType{archive.MediaAudio, archive.MediaVideo}
	}
	for _, kind := range order {
		for _, c := range candidates {
			if c.Kind == kind {
				return c, true
			}
		}
	}
	return candidates[0], true
}
