package archive

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
)

// IDLength is the number of hex digits of the digest kept as the item id.
const IDLength = 32

// IDFromChecksum truncates a full hex digest to an item id.
func IDFromChecksum(sum string) string {
	if len(sum) <= IDLength {
		return sum
	}
	return sum[:IDLength]
}

// IdentityFromURL derives the item id and checksum from a canonical URL.
// Two seeds resolving to the same canonical page share one identity.
func IdentityFromURL(canonical string) (id, checksum string) {
	checksum = sha256.SumString(canonical)
	return IDFromChecksum(checksum), checksum
}

// IdentityFromContent derives the item id and checksum from file bytes
// digested by h.
func IdentityFromContent(h Hasher, data []byte) (id, checksum string, err error) {
	checksum, err = h.Hash(data)
	if err != nil {
		return "", "", fmt.Errorf("hash content: %w", err)
	}
	return IDFromChecksum(checksum), checksum, nil
}

// Union merges string lists, trimming values and dropping blanks and
// duplicates while keeping first-seen order. It returns nil when empty.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, raw := range list {
			v := strings.TrimSpace(raw)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// FirstNonEmpty returns the first value that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
