package harvest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/classify"
)

// ErrNoSeeds is returned when a seed file holds no usable entries.
var ErrNoSeeds = errors.New("no seeds found")

// SeedList is a loaded seed file. DefaultMedia is the classifier fallback for
// pages whose hints decide nothing: structured seed records describe remote
// detail pages, while bare URL lists are generic.
type SeedList struct {
	Seeds        []archive.SeedRecord
	DefaultMedia archive.MediaType
}

// URLs returns every seed URL in order.
func (l SeedList) URLs() []string {
	out := make([]string, len(l.Seeds))
	for i, s := range l.Seeds {
		out[i] = s.URL
	}
	return out
}

// LoadSeeds reads a seed file. Files ending in .yaml or .yml hold seed
// records, either as a list or under an items key; anything else is one URL
// per line with # comments. max, when positive, keeps only the first max
// seeds.
func LoadSeeds(path string, max int) (SeedList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedList{}, fmt.Errorf("read seeds: %w", err)
	}

	var list SeedList
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		seeds, err := parseYAMLSeeds(data)
		if err != nil {
			return SeedList{}, fmt.Errorf("parse seeds %s: %w", path, err)
		}
		list = SeedList{Seeds: seeds, DefaultMedia: classify.DefaultDetail}
	default:
		seeds, err := parseURLList(data)
		if err != nil {
			return SeedList{}, fmt.Errorf("parse seeds %s: %w", path, err)
		}
		list = SeedList{Seeds: seeds, DefaultMedia: classify.DefaultGeneric}
	}

	for i, s := range list.Seeds {
		u, err := url.Parse(s.URL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return SeedList{}, fmt.Errorf("seed %d: %q is not an absolute url", i+1, s.URL)
		}
		if s.MediaType != "" && !s.MediaType.Valid() {
			return SeedList{}, fmt.Errorf("seed %d: unknown media type %q", i+1, s.MediaType)
		}
	}
	if len(list.Seeds) == 0 {
		return SeedList{}, fmt.Errorf("%w in %s", ErrNoSeeds, path)
	}
	if max > 0 && len(list.Seeds) > max {
		list.Seeds = list.Seeds[:max]
	}
	return list, nil
}

func parseURLList(data []byte) ([]archive.SeedRecord, error) {
	var seeds []archive.SeedRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, archive.SeedRecord{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return seeds, nil
}

func parseYAMLSeeds(data []byte) ([]archive.SeedRecord, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]

	var seeds []archive.SeedRecord
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&seeds); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var wrapped struct {
			Items []archive.SeedRecord `yaml:"items"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, err
		}
		seeds = wrapped.Items
	default:
		return nil, errors.New("expected a list of seeds or a mapping with an items key")
	}
	for i := range seeds {
		seeds[i].URL = strings.TrimSpace(seeds[i].URL)
		seeds[i].MediaType = archive.MediaType(strings.ToLower(strings.TrimSpace(string(seeds[i].MediaType))))
	}
	return seeds, nil
}
