package objection

import (
	"github.com/vocira/vocira/internal/classify"
)

// Score blend: sequence similarity dominates, keyword overlap corrects for
// callers who phrase a known objection in their own words.
const (
	sequenceWeight = 0.7
	keywordWeight  = 0.3

	// DefaultMinScore is the usual acceptance floor passed to Find.
	DefaultMinScore = 0.5
)

// Match is a scored hit against one library entry.
type Match struct {
	Entry *Entry
	Score float64
}

// Find returns the best entry of the theme scoring at least minScore, or
// nil when nothing qualifies. A missing theme file is an error; an
// unmatched utterance is not.
func (l *Library) Find(text, theme string, minScore float64) (*Match, error) {
	entries, err := l.theme(theme)
	if err != nil {
		return nil, err
	}

	normText := classify.Normalize(text)
	if normText == "" {
		return nil, nil
	}
	tokens := classify.ContentTokens(text)

	var best *Match
	for _, e := range entries {
		score := sequenceWeight*sequenceSimilarity(normText, e.normCanonical) +
			keywordWeight*keywordOverlap(tokens, e.normKeywords)
		if score < minScore {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Entry: e, Score: score}
		}
	}
	return best, nil
}

// sequenceSimilarity is 2*LCS/(len(a)+len(b)), the ratio a caller's longer
// phrasing of a short canonical form still scores well on. Edit-distance
// ratios punish added words too hard for this use.
func sequenceSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func keywordOverlap(tokens []string, keywords map[string]bool) float64 {
	if len(tokens) == 0 || len(keywords) == 0 {
		return 0
	}
	overlap := 0
	for _, tok := range tokens {
		if keywords[tok] {
			overlap++
		}
	}
	denom := len(tokens)
	if len(keywords) > denom {
		denom = len(keywords)
	}
	return float64(overlap) / float64(denom)
}
