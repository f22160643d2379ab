package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// collectStructured gathers Open Graph, JSON-LD and microdata carriers from
// the whole document into a flat key/value map. Carriers are processed in
// that order and an earlier non-empty value for a key is never overwritten;
// individually malformed carriers are skipped, never fatal.
func collectStructured(doc *goquery.Document, body []byte) map[string]string {
	m := make(map[string]string)

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err == nil {
		mergeKV(m, "og:title", og.Title)
		mergeKV(m, "og:description", og.Description)
		mergeKV(m, "og:type", og.Type)
		mergeKV(m, "og:url", og.URL)
		mergeKV(m, "og:site_name", og.SiteName)
		if len(og.Images) > 0 {
			mergeKV(m, "og:image", og.Images[0].URL)
		}
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return
		}
		flattenJSONLD(m, v)
	})

	doc.Find("[itemscope]").Each(func(_ int, s *goquery.Selection) {
		if t, ok := s.Attr("itemtype"); ok {
			mergeKV(m, "itemtype", t)
		}
	})
	doc.Find("[itemprop]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("itemprop")
		if name == "" {
			return
		}
		val, ok := s.Attr("content")
		if !ok {
			val = collapseWhitespace(s.Text())
		}
		mergeKV(m, "itemprop:"+name, val)
	})

	return m
}

// flattenJSONLD pulls a fixed set of schema.org properties out of a decoded
// JSON-LD value. Arrays and @graph wrappers are descended into; anything
// else is ignored.
func flattenJSONLD(m map[string]string, v any) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			flattenJSONLD(m, e)
		}
	case map[string]any:
		for _, k := range []string{"@type", "headline", "name", "description", "datePublished", "dateModified"} {
			if s, ok := t[k].(string); ok {
				mergeKV(m, "jsonld:"+strings.TrimPrefix(k, "@"), s)
			}
		}
		switch a := t["author"].(type) {
		case string:
			mergeKV(m, "jsonld:author", a)
		case map[string]any:
			if n, ok := a["name"].(string); ok {
				mergeKV(m, "jsonld:author", n)
			}
		}
		if g, ok := t["@graph"]; ok {
			flattenJSONLD(m, g)
		}
	}
}

// mergeKV sets m[k] = v only when v is non-empty and k is not already set.
func mergeKV(m map[string]string, k, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	if _, exists := m[k]; !exists {
		m[k] = v
	}
}
