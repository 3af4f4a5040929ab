package extract

// Label synonyms seen on archival detail pages, matched case-insensitively
// against definition-list labels.
var (
	descriptionLabels = []string{"description", "abstract", "summary", "notes", "note"}
	dateLabels        = []string{"date", "date created", "date published", "temporal coverage", "coverage dates"}
	creatorLabels     = []string{"creator", "creators", "contributor", "contributors", "author", "authors", "photographer", "director", "producer"}
	subjectLabels     = []string{"subject", "subjects", "topic", "topics", "keywords", "coverage", "tags"}
	collectionLabels  = []string{"collection", "collection name", "collection title", "fonds", "record group", "source"}
	seriesLabels      = []string{"series", "series title", "series name", "sub-series", "subseries"}
	rightsLabels      = []string{"rights", "rights statement", "usage", "terms of use", "copyright", "license"}
	formatLabels      = []string{"format", "type", "type of resource", "resource type", "genre", "medium"}
	durationLabels    = []string{"duration", "runtime", "running time", "time duration", "extent", "digital duration"}
)

// labels maps a lowercased definition-list label to its values.
type labels map[string][]string

func (l labels) first(keys []string) string {
	for _, key := range keys {
		if values := l[key]; len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (l labels) all(keys []string) []string {
	var out []string
	for _, key := range keys {
		out = append(out, l[key]...)
	}
	return out
}
