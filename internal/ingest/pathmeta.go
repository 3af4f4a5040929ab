package ingest

import (
	"path"
	"regexp"
	"strings"
)

var (
	isoDateSegment   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	titleSeparators  = regexp.MustCompile(`[_-]+`)
	sensitiveSegment = regexp.MustCompile(`(?i)harmful|sensitive`)
)

// Rights note applied to files under a harmful or sensitive folder.
const sensitiveRights = "Contains potentially harmful content."

// PathMeta is the metadata implied by a file's location.
type PathMeta struct {
	Title      string
	Date       string
	Collection string
	Series     string
	SourceURL  string
	Rights     string
	Citation   string
	Advisory   bool
}

// MetaFromPath derives metadata from a slash-separated path whose first
// segment is the ingest root's directory name, e.g.
// "2025-10-18/council/1975/minutes.pdf".
func MetaFromPath(rel string) PathMeta {
	rel = strings.TrimPrefix(path.Clean(strings.ReplaceAll(rel, `\`, "/")), "/")
	segments := strings.Split(rel, "/")
	fileName := segments[len(segments)-1]

	m := PathMeta{
		Title: titleSeparators.ReplaceAllString(strings.TrimSuffix(fileName, path.Ext(fileName)), " "),
	}
	for _, seg := range segments {
		if isoDateSegment.MatchString(seg) {
			m.Date = seg
			break
		}
	}
	if len(segments) > 1 {
		m.Collection = segments[1]
	}
	if len(segments) > 3 {
		m.Series = strings.Join(segments[2:len(segments)-1], " / ")
	}
	for i, seg := range segments {
		if strings.HasPrefix(seg, "https:") {
			m.SourceURL = seg + "//" + strings.Join(segments[i+1:], "/")
			break
		}
	}
	for _, seg := range segments {
		if sensitiveSegment.MatchString(seg) {
			m.Rights = sensitiveRights
			m.Advisory = true
			break
		}
	}
	m.Citation = citation(m.Title, m.Collection, m.Date, rel)
	return m
}

func citation(title, collection, date, rel string) string {
	if collection == "" {
		collection = "NYC DORIS collections"
	}
	if date == "" {
		date = "Date unknown"
	}
	return title + ". " + collection + ". " + date + ". Repo path: " + rel + "."
}
