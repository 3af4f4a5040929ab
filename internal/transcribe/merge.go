package transcribe

import (
	"strings"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

// merge applies a job's results to item. Fields the job did not produce are
// left untouched.
func merge(item archive.Item, res result, captionsPrefix string) archive.Item {
	if text := strings.TrimSpace(res.outputs.transcript); text != "" {
		item.TranscriptText = text
	}
	if res.outputs.vttName != "" {
		item.CaptionsVTTPath = captionsURL(captionsPrefix, res.outputs.vttName)
	}
	if res.outputs.srtName != "" {
		item.CaptionsSRTPath = captionsURL(captionsPrefix, res.outputs.srtName)
	}
	if res.kind.Playable() {
		item.MediaType = res.kind
	}
	if res.durationSec != nil {
		d := *res.durationSec
		item.DurationSec = &d
	}
	return item
}
