package extract

import "strings"

// boilerplateTags are element types that are page furniture regardless of
// their class or id.
var boilerplateTags = map[string]bool{
	"nav":    true,
	"footer": true,
	"aside":  true,
	"header": true,
	"form":   true,
}

// strippedTags never contribute content and are removed outright before
// text extraction.
var strippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"button":   true,
	"svg":      true,
	"select":   true,
}

// defaultSignatureTokens are class/id tokens that mark an element as
// boilerplate. Matching is token-exact (class attributes are split on
// non-alphanumeric runs) so "ad" hits "ad-slot" but not "read-more".
var defaultSignatureTokens = []string{
	"ad", "ads", "advert", "advertisement", "sponsored", "sponsor", "promo",
	"nav", "navbar", "navigation", "menu", "topbar", "toolbar", "masthead",
	"sidebar", "footer", "header", "banner", "hero",
	"breadcrumb", "breadcrumbs", "pagination", "pager",
	"comment", "comments", "disqus",
	"related", "recommended", "recommendations", "trending",
	"share", "sharing", "social",
	"subscribe", "subscription", "newsletter", "signup",
	"cookie", "consent", "gdpr",
	"modal", "popup", "overlay", "widget",
}

// SignatureTable classifies elements as boilerplate by tag name and by
// class/id tokens. The token list is data, not code: deployments extend it
// through configuration without touching the scoring algorithm.
type SignatureTable struct {
	tokens  map[string]bool
	phrases [][]string // multi-token patterns, matched as contiguous token runs
}

// NewSignatureTable builds the default table extended with extra patterns.
// Extra patterns are tokenized the same way attributes are, so a configured
// "custom-junk" matches class="custom-junk" but not class="custom".
func NewSignatureTable(extra []string) *SignatureTable {
	t := &SignatureTable{tokens: make(map[string]bool, len(defaultSignatureTokens)+len(extra))}
	for _, tok := range defaultSignatureTokens {
		t.tokens[tok] = true
	}
	for _, pat := range extra {
		switch toks := splitTokens(pat); len(toks) {
		case 0:
		case 1:
			t.tokens[toks[0]] = true
		default:
			t.phrases = append(t.phrases, toks)
		}
	}
	return t
}

// MatchElement reports whether an element with the given tag, class and id
// attributes should be treated as boilerplate.
func (t *SignatureTable) MatchElement(tag, class, id string) bool {
	if boilerplateTags[tag] {
		return true
	}
	return t.matchAttr(class) || t.matchAttr(id)
}

func (t *SignatureTable) matchAttr(attr string) bool {
	if attr == "" {
		return false
	}
	toks := splitTokens(attr)
	for _, tok := range toks {
		if t.tokens[tok] {
			return true
		}
	}
	for _, phrase := range t.phrases {
		if containsRun(toks, phrase) {
			return true
		}
	}
	return false
}

// containsRun reports whether run occurs as a contiguous subsequence of toks.
func containsRun(toks, run []string) bool {
	for i := 0; i+len(run) <= len(toks); i++ {
		matched := true
		for j := range run {
			if toks[i+j] != run[j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// splitTokens lowercases attr and splits it on any non-alphanumeric run.
func splitTokens(attr string) []string {
	return strings.FieldsFunc(strings.ToLower(attr), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
