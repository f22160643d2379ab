package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"webscout/internal/domain"
	"webscout/internal/infra/config"
)

// Options controls optional extraction outputs.
type Options struct {
	// IncludeMarkdown additionally renders the primary content root as
	// Markdown in BodyMarkdown.
	IncludeMarkdown bool
}

// Extractor turns fetched HTML into a normalized ExtractedDocument. It is
// stateless apart from its signature table and safe for concurrent use.
type Extractor struct {
	sigs         *SignatureTable
	scorer       Scorer
	minBodyChars int
	logger       *slog.Logger
}

// New creates an extractor with the default density scorer.
func New(cfg config.ExtractConfig, logger *slog.Logger) *Extractor {
	sigs := NewSignatureTable(cfg.ExtraBoilerplatePatterns)
	minChars := cfg.MinBodyChars
	if minChars <= 0 {
		minChars = 80
	}
	return &Extractor{
		sigs:         sigs,
		scorer:       NewDensityScorer(sigs),
		minBodyChars: minChars,
		logger:       logger,
	}
}

// Extract parses outcome's body and builds the document. A page with no
// recognizable content container still succeeds with whatever structured
// metadata was found; only a non-HTML content type or a body the parser
// cannot build a tree from is a hard failure.
func (e *Extractor) Extract(outcome *domain.FetchOutcome, opts Options) (*domain.ExtractedDocument, error) {
	if !isHTMLContentType(outcome.ContentType) {
		return nil, domain.NewDomainError("extract.Extract", domain.ErrUnsupportedContent,
			fmt.Sprintf("content type %q is not HTML", outcome.ContentType))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outcome.Body))
	if err != nil {
		return nil, domain.NewDomainError("extract.Extract", domain.ErrUnparsableDocument, err.Error())
	}

	base, err := url.Parse(outcome.FinalURL)
	if err != nil {
		base = nil
	}

	result := &domain.ExtractedDocument{
		URL:         outcome.FinalURL,
		Headings:    []domain.Heading{},
		Links:       []domain.Link{},
		Images:      []domain.Image{},
		Structured:  collectStructured(doc, outcome.Body),
		StatusCode:  outcome.StatusCode,
		ContentType: outcome.ContentType,
	}
	e.fillMetadata(doc, base, result)

	root := e.selectContentRoot(doc)
	if root != nil {
		e.pruneBoilerplate(root)
		result.Headings = e.headings(root)
		result.Links = e.links(root, base)
		result.Images = e.images(root, base)
		result.Body = blockText(root)
		if opts.IncludeMarkdown && result.Body != "" {
			result.BodyMarkdown = e.renderMarkdown(root, base)
		}
	} else {
		e.logger.Debug("no content root, metadata-only extraction", "url", outcome.FinalURL)
	}

	result.Title = resolveTitle(result.Structured, doc, result.Headings)
	result.WordCount = countWords(result.Body)
	if result.WordCount > 0 {
		result.ReadingTimeMins = (result.WordCount + 199) / 200
		if result.ReadingTimeMins < 1 {
			result.ReadingTimeMins = 1
		}
	}
	return result, nil
}

func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	switch mt {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return strings.HasSuffix(mt, "+html")
}

// selectContentRoot scores every candidate container under <body> and
// returns the best one. Strictly-greater comparison over a document-order
// walk breaks ties toward the earliest element, which favors main-article
// placement over trailing recommendation blocks. A page whose best
// candidate carries almost no text falls back to <body> itself; a page
// with no <body> yields nil (metadata-only extraction).
func (e *Extractor) selectContentRoot(doc *goquery.Document) *goquery.Selection {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}

	var best *goquery.Selection
	bestScore := 0.0
	body.Find("article, main, section, div").Each(func(_ int, sel *goquery.Selection) {
		if score := e.scorer.Score(sel); score > bestScore {
			best, bestScore = sel, score
		}
	})

	if best == nil || len(collapseWhitespace(best.Text())) < e.minBodyChars {
		return body
	}
	return best
}

// pruneBoilerplate removes non-content elements nested inside the chosen
// root. The root was already selected for content-ness, but menus or share
// strips embedded in an article body would otherwise leak into the text.
func (e *Extractor) pruneBoilerplate(root *goquery.Selection) {
	root.Find("*").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		if strippedTags[tag] {
			sel.Remove()
			return
		}
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		if e.sigs.MatchElement(tag, class, id) {
			sel.Remove()
		}
	})
}

func (e *Extractor) headings(root *goquery.Selection) []domain.Heading {
	headings := []domain.Heading{}
	root.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		text := collapseWhitespace(sel.Text())
		if text == "" {
			return
		}
		level := int(goquery.NodeName(sel)[1] - '0')
		headings = append(headings, domain.Heading{Level: level, Text: text})
	})
	return headings
}

// links collects anchors under root with hrefs resolved against base and
// deduplicated by normalized href; the first-seen anchor text wins.
func (e *Extractor) links(root *goquery.Selection, base *url.URL) []domain.Link {
	links := []domain.Link{}
	seen := make(map[string]bool)
	root.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs, ok := resolveAbsolute(base, href)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, domain.Link{Href: abs, Text: collapseWhitespace(sel.Text())})
	})
	return links
}

func (e *Extractor) images(root *goquery.Selection, base *url.URL) []domain.Image {
	images := []domain.Image{}
	seen := make(map[string]bool)
	root.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		abs, ok := resolveAbsolute(base, src)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		alt, _ := sel.Attr("alt")
		images = append(images, domain.Image{Src: abs, Alt: collapseWhitespace(alt)})
	})
	return images
}

// resolveAbsolute resolves ref against base and normalizes it for
// deduplication: fragment stripped, scheme and host lowercased. Non-HTTP
// schemes (javascript:, mailto:, data:) are rejected.
func resolveAbsolute(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String(), true
}

// fillMetadata populates the enrichment fields from meta tags, falling back
// to the structured-data map where the page carries the information only
// there.
func (e *Extractor) fillMetadata(doc *goquery.Document, base *url.URL, res *domain.ExtractedDocument) {
	meta := func(sel string) string {
		content, _ := doc.Find(sel).First().Attr("content")
		return strings.TrimSpace(content)
	}

	res.Description = firstNonEmpty(
		meta(`meta[name="description"]`),
		res.Structured["og:description"],
		res.Structured["jsonld:description"],
	)
	res.Keywords = meta(`meta[name="keywords"]`)
	res.Author = firstNonEmpty(meta(`meta[name="author"]`), res.Structured["jsonld:author"])
	res.PublishedAt = firstNonEmpty(
		meta(`meta[property="article:published_time"]`),
		res.Structured["jsonld:datePublished"],
	)
	res.SiteName = res.Structured["og:site_name"]

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if abs, ok := resolveAbsolute(base, href); ok {
			res.CanonicalURL = abs
		}
	}
	if res.CanonicalURL == "" {
		res.CanonicalURL = res.Structured["og:url"]
	}

	res.Language = firstNonEmpty(
		strings.TrimSpace(doc.Find("html").First().AttrOr("lang", "")),
		meta(`meta[http-equiv="content-language"]`),
	)
}

// resolveTitle applies the fallback chain: Open Graph title, then the
// document <title>, then the first extracted heading, then empty.
func resolveTitle(structured map[string]string, doc *goquery.Document, headings []domain.Heading) string {
	if t := structured["og:title"]; t != "" {
		return t
	}
	if t := collapseWhitespace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if len(headings) > 0 {
		return headings[0].Text
	}
	return ""
}

func (e *Extractor) renderMarkdown(root *goquery.Selection, base *url.URL) string {
	domainHint := ""
	if base != nil {
		domainHint = base.Scheme + "://" + base.Host
	}
	conv := md.NewConverter(domainHint, true, nil)
	return strings.TrimSpace(conv.Convert(root))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
