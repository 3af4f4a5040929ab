// Package classify infers an item's media type from loosely structured hints.
package classify

import (
	"strings"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

// Defaults used when no hint matches. The two harvesting call sites disagree
// on purpose and each passes its own fallback.
const (
	DefaultDetail  = archive.MediaVideo
	DefaultGeneric = archive.MediaText
)

type rule struct {
	media    archive.MediaType
	keywords []string
}

// rules are tested in order; the first keyword hit wins.
var rules = []rule{
	{archive.MediaVideo, []string{"video", "moving image", "videoobject"}},
	{archive.MediaAudio, []string{"audio", "sound", "podcast", "audioobject"}},
	{archive.MediaPDF, []string{"pdf"}},
	{archive.MediaImage, []string{"image", "photograph", "still image"}},
	{archive.MediaText, []string{"text", "document", "manuscript"}},
}

// Markup records which native media elements a page contains.
type Markup struct {
	Video bool
	Audio bool
}

// Classify returns the media type for hints, consulting markup only when no
// hint matches, and fallback when neither decides.
func Classify(hints []string, markup Markup, fallback archive.MediaType) archive.MediaType {
	normalized := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			normalized = append(normalized, h)
		}
	}
	for _, r := range rules {
		for _, h := range normalized {
			for _, kw := range r.keywords {
				if strings.Contains(h, kw) {
					return r.media
				}
			}
		}
	}
	switch {
	case markup.Video:
		return archive.MediaVideo
	case markup.Audio:
		return archive.MediaAudio
	}
	return fallback
}

var extensionKinds = map[string]archive.MediaType{
	".mp4": archive.MediaVideo, ".m4v": archive.MediaVideo, ".mov": archive.MediaVideo,
	".webm": archive.MediaVideo, ".mkv": archive.MediaVideo, ".avi": archive.MediaVideo,
	".m3u8": archive.MediaVideo,
	".mp3": archive.MediaAudio, ".m4a": archive.MediaAudio, ".wav": archive.MediaAudio,
	".ogg": archive.MediaAudio, ".oga": archive.MediaAudio, ".flac": archive.MediaAudio,
	".aac": archive.MediaAudio, ".opus": archive.MediaAudio,
}

// ByExtension classifies a media file name or URL path by its extension.
// It reports false for anything that is not audio or video.
func ByExtension(name string) (archive.MediaType, bool) {
	name = strings.ToLower(name)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	dot := strings.LastIndex(name, ".")
	if dot < 0 || strings.Contains(name[dot:], "/") {
		return "", false
	}
	m, ok := extensionKinds[name[dot:]]
	return m, ok
}
