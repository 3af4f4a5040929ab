package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// page wraps a parsed document with the lookups the extraction passes share.
type page struct {
	doc  *goquery.Document
	base *url.URL
}

// readLabels builds the label/value map from dt elements and the dd
// siblings that directly follow each of them.
func (p page) readLabels() labels {
	out := make(labels)
	p.doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		key := strings.ToLower(NormalizeText(dt.Text()))
		key = strings.TrimSpace(strings.TrimRight(key, ":"))
		if key == "" {
			return
		}
		var values []string
		for sib := dt.Next(); sib.Length() > 0 && goquery.NodeName(sib) == "dd"; sib = sib.Next() {
			if text := NormalizeText(sib.Text()); text != "" {
				values = append(values, text)
			}
		}
		if len(values) > 0 {
			out[key] = values
		}
	})
	return out
}

// meta returns the first non-empty content of a meta tag addressed by
// property, name, or itemprop.
func (p page) meta(keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name", "itemprop"} {
			sel := p.doc.Find("meta[" + attr + `="` + key + `"]`)
			if content := NormalizeText(sel.First().AttrOr("content", "")); content != "" {
				return content
			}
		}
	}
	return ""
}

// metaAll returns every non-empty content of meta tags named key.
func (p page) metaAll(key string) []string {
	var out []string
	p.doc.Find(`meta[name="` + key + `"], meta[property="` + key + `"]`).Each(func(_ int, s *goquery.Selection) {
		if content := NormalizeText(s.AttrOr("content", "")); content != "" {
			out = append(out, content)
		}
	})
	return out
}

func (p page) firstText(selector string) string {
	return NormalizeText(p.doc.Find(selector).First().Text())
}

func (p page) linkHref(rel string) string {
	return strings.TrimSpace(p.doc.Find(`link[rel="` + rel + `"]`).First().AttrOr("href", ""))
}

func (p page) ldBodies() []string {
	var bodies []string
	p.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		bodies = append(bodies, s.Text())
	})
	return bodies
}

// resolve makes ref absolute against base. It returns "" for blank input.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
