package extract

import "github.com/PuerkitoBio/goquery"

// Scorer rates how likely an element is to be the primary content
// container. Scoring is a replaceable strategy: the selection loop only
// depends on relative scores, with document order breaking ties.
type Scorer interface {
	Score(sel *goquery.Selection) float64
}

const (
	paragraphBonus     = 30.0
	boilerplatePenalty = 0.05
)

// DensityScorer scores by text volume discounted by link density,
// rewarding paragraph-rich containers and heavily penalizing elements
// matching boilerplate signatures. Link-heavy blocks (menus, footers,
// recommendation strips) score near zero even when they carry a lot of
// anchor text.
type DensityScorer struct {
	sigs *SignatureTable
}

// NewDensityScorer creates the default scorer over the given signatures.
func NewDensityScorer(sigs *SignatureTable) *DensityScorer {
	return &DensityScorer{sigs: sigs}
}

func (s *DensityScorer) Score(sel *goquery.Selection) float64 {
	text := collapseWhitespace(sel.Text())
	textLen := float64(len(text))
	if textLen == 0 {
		return 0
	}

	var linkLen float64
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += float64(len(collapseWhitespace(a.Text())))
	})
	if linkLen > textLen {
		linkLen = textLen
	}

	score := textLen * (1 - linkLen/textLen)
	score += float64(sel.ChildrenFiltered("p").Length()) * paragraphBonus

	tag := goquery.NodeName(sel)
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	if s.sigs.MatchElement(tag, class, id) {
		score *= boilerplatePenalty
	}
	return score
}
