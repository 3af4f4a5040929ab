package transcribe

import (
	"context"
	"fmt"
	"strings"
)

// Tools locates the external programs and their shared options.
type Tools struct {
	FFmpeg string
	ASR    string
	Model  string
	// Language is passed to the recognizer; empty means its default.
	Language string
	// Headers are forwarded on the media request, formatted "Name: value".
	Headers []string
}

// Validate checks that every tool path is set.
func (t Tools) Validate() error {
	switch {
	case t.FFmpeg == "":
		return fmt.Errorf("ffmpeg path is required")
	case t.ASR == "":
		return fmt.Errorf("asr binary path is required")
	case t.Model == "":
		return fmt.Errorf("asr model path is required")
	}
	for _, h := range t.Headers {
		if name, _, ok := strings.Cut(h, ":"); !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("header %q must look like 'Name: value'", h)
		}
	}
	return nil
}

// ExtractAudio writes a mono 16 kHz PCM track of mediaURL to wavPath.
func (t Tools) ExtractAudio(ctx context.Context, r Runner, mediaURL, wavPath string) error {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if len(t.Headers) > 0 {
		var b strings.Builder
		for _, h := range t.Headers {
			b.WriteString(strings.TrimSpace(h))
			b.WriteString("\r\n")
		}
		args = append(args, "-headers", b.String())
	}
	args = append(args, "-i", mediaURL, "-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", wavPath)
	if err := r.Run(ctx, t.FFmpeg, args...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// Recognize runs speech recognition on wavPath, writing outBase plus .txt,
// .vtt, and .srt.
func (t Tools) Recognize(ctx context.Context, r Runner, wavPath, outBase string) error {
	args := []string{"-m", t.Model, "-f", wavPath, "-otxt", "-ovtt", "-osrt", "-of", outBase}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	if err := r.Run(ctx, t.ASR, args...); err != nil {
		return fmt.Errorf("recognize speech: %w", err)
	}
	return nil
}
