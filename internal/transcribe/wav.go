package transcribe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// WAVDuration reads a RIFF/WAVE header and returns the duration of its data
// chunk in seconds.
func WAVDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat wav: %w", err)
	}

	var header [12]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return 0, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, errors.New("not a RIFF/WAVE file")
	}

	var byteRate uint32
	offset := int64(12)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return 0, fmt.Errorf("wav has no data chunk: %w", err)
		}
		offset += 8
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			var fmtChunk [16]byte
			if size < 16 {
				return 0, errors.New("wav fmt chunk too short")
			}
			if _, err := io.ReadFull(f, fmtChunk[:]); err != nil {
				return 0, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			if _, err := f.Seek(int64(size)-16+int64(size%2), io.SeekCurrent); err != nil {
				return 0, fmt.Errorf("skip wav fmt chunk: %w", err)
			}
		case "data":
			if byteRate == 0 {
				return 0, errors.New("wav data chunk precedes fmt chunk")
			}
			// Streaming writers may leave the size unset.
			remaining := info.Size() - offset
			dataSize := int64(size)
			if dataSize == 0 || dataSize > remaining {
				dataSize = remaining
			}
			return float64(dataSize) / float64(byteRate), nil
		default:
			if _, err := f.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
				return 0, fmt.Errorf("skip wav chunk %q: %w", id, err)
			}
		}
		offset += int64(size) + int64(size%2)
	}
}
