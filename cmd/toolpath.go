package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// toolSpec describes how one external tool or model file is located.
type toolSpec struct {
	name     string
	flag     string
	env      string
	defaults []string
	// lookPath is tried on the bare name after the defaults.
	lookPath string
}

var (
	ffmpegTool = toolSpec{
		name:     "ffmpeg",
		flag:     "--ffmpeg",
		env:      "FFMPEG_PATH",
		defaults: []string{"tools/ffmpeg/ffmpeg"},
		lookPath: "ffmpeg",
	}
	asrTool = toolSpec{
		name:     "ASR binary",
		flag:     "--asr-bin",
		env:      "ASR_BIN",
		defaults: []string{"tools/whisper.cpp/build/bin/whisper-cli", "tools/whisper.cpp/main"},
		lookPath: "whisper-cli",
	}
	asrModel = toolSpec{
		name:     "ASR model",
		flag:     "--asr-model",
		env:      "ASR_MODEL",
		defaults: []string{"tools/whisper.cpp/models/ggml-base.en.bin"},
	}
)

// resolveTool returns the first location for spec in the order: explicit
// value (flag or config), environment, default relative paths, then PATH.
// An explicit or environment value that does not exist is an error rather
// than a reason to keep looking.
func resolveTool(spec toolSpec, explicit string, getenv func(string) string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return mustExist(spec, explicit, spec.flag)
	}
	if v := strings.TrimSpace(getenv(spec.env)); v != "" {
		return mustExist(spec, v, spec.env)
	}
	for _, candidate := range spec.defaults {
		if isFile(candidate) {
			return candidate, nil
		}
	}
	if spec.lookPath != "" {
		if p, err := exec.LookPath(spec.lookPath); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found: pass %s, set %s, or install it at %s",
		spec.name, spec.flag, spec.env, strings.Join(spec.defaults, " or "))
}

func mustExist(spec toolSpec, raw, source string) (string, error) {
	p, err := homedir.Expand(raw)
	if err != nil {
		return "", fmt.Errorf("expand %s path from %s: %w", spec.name, source, err)
	}
	if !isFile(p) {
		return "", fmt.Errorf("%s from %s does not exist: %s", spec.name, source, p)
	}
	return p, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
