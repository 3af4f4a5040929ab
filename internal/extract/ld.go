package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the shape of a linked-data value.
type Kind int

// Linked-data value shapes.
const (
	KindNone Kind = iota
	KindString
	KindList
	KindEntity
)

// Value is a linked-data field that may be a string, a list, or a nested
// entity. Numbers and booleans are carried as strings.
type Value struct {
	Kind   Kind
	Str    string
	List   []Value
	Entity map[string]Value
}

// FromJSON converts a decoded JSON value into a Value.
func FromJSON(raw any) Value {
	switch v := raw.(type) {
	case string:
		return Value{Kind: KindString, Str: v}
	case float64:
		return Value{Kind: KindString, Str: strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		return Value{Kind: KindString, Str: strconv.FormatBool(v)}
	case []any:
		list := make([]Value, 0, len(v))
		for _, item := range v {
			list = append(list, FromJSON(item))
		}
		return Value{Kind: KindList, List: list}
	case map[string]any:
		entity := make(map[string]Value, len(v))
		for key, item := range v {
			entity[key] = FromJSON(item)
		}
		return Value{Kind: KindEntity, Entity: entity}
	default:
		return Value{}
	}
}

// Get returns the first non-empty field among keys of an entity.
func (v Value) Get(keys ...string) Value {
	if v.Kind != KindEntity {
		return Value{}
	}
	for _, key := range keys {
		if field, ok := v.Entity[key]; ok && !field.empty() {
			return field
		}
	}
	return Value{}
}

func (v Value) empty() bool {
	switch v.Kind {
	case KindString:
		return strings.TrimSpace(v.Str) == ""
	case KindList:
		return len(v.List) == 0
	case KindEntity:
		return len(v.Entity) == 0
	}
	return true
}

// String returns the normalized text of a plain string value.
func (v Value) String() string {
	if v.Kind != KindString {
		return ""
	}
	return NormalizeText(v.Str)
}

// Strings flattens plain strings out of a string or list value.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindString:
		return []string{v.Str}
	case KindList:
		var out []string
		for _, item := range v.List {
			if item.Kind == KindString {
				out = append(out, item.Str)
			}
		}
		return out
	}
	return nil
}

// Names flattens creator-style values: strings, lists, {name},
// {givenName, familyName}, or {@value}.
func (v Value) Names() []string {
	switch v.Kind {
	case KindString:
		if s := NormalizeText(v.Str); s != "" {
			return []string{s}
		}
	case KindList:
		var out []string
		for _, item := range v.List {
			out = append(out, item.Names()...)
		}
		return out
	case KindEntity:
		if name := v.Entity["name"]; name.Kind == KindString {
			return name.Names()
		}
		given := strings.TrimSpace(v.Entity["givenName"].Str)
		family := strings.TrimSpace(v.Entity["familyName"].Str)
		if full := NormalizeText(given + " " + family); full != "" {
			return []string{full}
		}
		if raw := v.Entity["@value"]; raw.Kind == KindString {
			return raw.Names()
		}
	}
	return nil
}

// Keywords flattens subject-style values, splitting strings on ";" and ",".
func (v Value) Keywords() []string {
	switch v.Kind {
	case KindString:
		return splitKeywords(v.Str)
	case KindList:
		var out []string
		for _, item := range v.List {
			out = append(out, item.Keywords()...)
		}
		return out
	case KindEntity:
		if name := v.Entity["name"]; name.Kind == KindString {
			return name.Keywords()
		}
		if raw := v.Entity["@value"]; raw.Kind == KindString {
			return raw.Keywords()
		}
	}
	return nil
}

// URL returns the first URL-like string: a string, the first usable list
// entry, or an entity's url/contentUrl.
func (v Value) URL() string {
	switch v.Kind {
	case KindString:
		return strings.TrimSpace(v.Str)
	case KindList:
		for _, item := range v.List {
			if u := item.URL(); u != "" {
				return u
			}
		}
	case KindEntity:
		for _, key := range []string{"url", "contentUrl"} {
			if field := v.Entity[key]; field.Kind == KindString && strings.TrimSpace(field.Str) != "" {
				return strings.TrimSpace(field.Str)
			}
		}
	}
	return ""
}

// Scalar returns a string, the first usable list entry, or an entity's
// @value/value. Durations in linked data use all three shapes.
func (v Value) Scalar() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindList:
		for _, item := range v.List {
			if s := item.Scalar(); s != "" {
				return s
			}
		}
	case KindEntity:
		for _, key := range []string{"@value", "value"} {
			if field := v.Entity[key]; field.Kind == KindString {
				return field.Str
			}
		}
	}
	return ""
}

// parseBlocks decodes linked-data script bodies into entities, flattening
// top-level arrays and @graph containers. Unparseable blocks are skipped.
func parseBlocks(bodies []string) []Value {
	var blocks []Value
	var collect func(Value)
	collect = func(v Value) {
		switch v.Kind {
		case KindList:
			for _, item := range v.List {
				collect(item)
			}
		case KindEntity:
			blocks = append(blocks, v)
			if graph, ok := v.Entity["@graph"]; ok {
				collect(graph)
			}
		}
	}
	for _, body := range bodies {
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		var raw any
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			continue
		}
		collect(FromJSON(raw))
	}
	return blocks
}

// structured holds the fields recovered from linked-data blocks.
type structured struct {
	title       string
	description string
	date        string
	creators    []string
	subjects    []string
	thumbnail   string
	duration    *float64
	hints       []string
}

// readStructured takes, per field, the first block in document order that
// yields a value. List fields and type hints accumulate across blocks.
func readStructured(blocks []Value) structured {
	var s structured
	for _, block := range blocks {
		s.hints = append(s.hints, block.Get("@type").Strings()...)
		s.hints = append(s.hints, block.Get("encodingFormat", "fileFormat", "additionalType").Strings()...)

		if s.title == "" {
			s.title = block.Get("name", "headline").String()
		}
		if s.description == "" {
			s.description = block.Get("description").String()
		}
		if s.date == "" {
			s.date = block.Get("datePublished", "dateCreated", "temporalCoverage").String()
		}
		s.creators = append(s.creators, block.Get("creator").Names()...)
		s.creators = append(s.creators, block.Get("author").Names()...)
		s.creators = append(s.creators, block.Get("contributor").Names()...)
		s.subjects = append(s.subjects, block.Get("keywords").Keywords()...)
		s.subjects = append(s.subjects, block.Get("about").Keywords()...)
		s.subjects = append(s.subjects, block.Get("genre").Keywords()...)

		if s.thumbnail == "" {
			s.thumbnail = block.Get("thumbnailUrl", "image").URL()
		}
		if s.duration == nil {
			if secs, ok := ParseDuration(block.Get("duration", "timeRequired", "temporalDuration").Scalar()); ok {
				s.duration = &secs
			}
		}
	}
	return s
}
