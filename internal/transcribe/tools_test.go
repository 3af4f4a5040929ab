package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingRunner struct {
	name string
	args []string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.name, r.args = name, args
	return nil
}

func TestExtractAudioForwardsHeaders(t *testing.T) {
	tools := Tools{FFmpeg: "/opt/ffmpeg", Headers: []string{"Referer: https://archive.example.org/", " Cookie: a=b "}}
	r := &recordingRunner{}
	require.NoError(t, tools.ExtractAudio(context.Background(), r, "https://cdn.example.org/a.mp4", "/tmp/a.wav"))

	assert.Equal(t, "/opt/ffmpeg", r.name)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-headers", "Referer: https://archive.example.org/\r\nCookie: a=b\r\n",
		"-i", "https://cdn.example.org/a.mp4",
		"-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "/tmp/a.wav",
	}, r.args)
}

func TestRecognizeArgs(t *testing.T) {
	r := &recordingRunner{}
	tools := Tools{ASR: "whisper-cli", Model: "base.bin", Language: "en"}
	require.NoError(t, tools.Recognize(context.Background(), r, "a.wav", "out/a"))
	assert.Equal(t, []string{"-m", "base.bin", "-f", "a.wav", "-otxt", "-ovtt", "-osrt", "-of", "out/a", "-l", "en"}, r.args)
}

func TestToolsValidate(t *testing.T) {
	ok := Tools{FFmpeg: "ffmpeg", ASR: "asr", Model: "m"}
	require.NoError(t, ok.Validate())

	missing := ok
	missing.Model = ""
	require.ErrorContains(t, missing.Validate(), "model")

	bad := ok
	bad.Headers = []string{"no-colon"}
	require.ErrorContains(t, bad.Validate(), "no-colon")
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Tool: "ffmpeg", ExitCode: 1, Stderr: "Invalid data"}
	assert.Equal(t, "ffmpeg exited with code 1: Invalid data", err.Error())

	cause := errors.New("executable file not found")
	err = &ToolError{Tool: "asr", ExitCode: -1, Err: cause}
	assert.Equal(t, "asr failed: executable file not found", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	err := ExecRunner{Logger: zap.NewNop()}.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "sh", toolErr.Tool)
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Equal(t, "boom", toolErr.Stderr)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	err := ExecRunner{}.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, -1, toolErr.ExitCode)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("  abc\n", 10))
	assert.Equal(t, "...def", tail("abcdef", 3))
}

func TestWAVDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, writeWAV(path, 3))
	d, err := WAVDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 1e-9)
}

func TestWAVDurationRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00\x00"), 0o644))
	_, err := WAVDuration(path)
	require.ErrorContains(t, err, "RIFF")
}

func TestWithTempDirRemovesOnError(t *testing.T) {
	parent := t.TempDir()
	var seen string
	err := withTempDir(parent, "job-", zap.NewNop(), func(dir string) error {
		seen = dir
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644))
		return errors.New("job failed")
	})
	require.EqualError(t, err, "job failed")
	assert.NoDirExists(t, seen)
}
