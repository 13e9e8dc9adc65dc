package classify

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Verdict is the outcome of answering-machine detection.
type Verdict string

const (
	VerdictHuman   Verdict = "human"
	VerdictMachine Verdict = "machine"
	VerdictUnknown Verdict = "unknown"

	// VerdictSilence is produced by the caller's volume probe, never by the
	// keyword classifier: dead air is decided before transcription.
	VerdictSilence Verdict = "silence"
)

// AMDResult carries the verdict together with the per-class confidences,
// mostly for logging and call-event payloads.
type AMDResult struct {
	Verdict           Verdict
	HumanConfidence   float64
	MachineConfidence float64
	MatchedKeywords   []string
}

// Keyword lists are kept short on purpose: with confidence computed as
// matches/total, a long list dilutes every real match below the decision
// threshold. Phrases are normalised at init.
var (
	machineKeywords = normalizeAll([]string{
		"messagerie",
		"répondeur",
		"après le bip",
		"vous êtes bien sur",
		"message",
	})
	humanKeywords = normalizeAll([]string{
		"allô",
		"oui",
		"j'écoute",
		"à l'appareil",
		"c'est moi",
	})
)

func normalizeAll(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = Normalize(k)
	}
	return out
}

const (
	fuzzyAcceptRatio = 0.85
	multiMatchBoost  = 0.2
	verdictThreshold = 0.6
)

// ClassifyAMD decides from an AMD-window transcription whether a human or
// an answering machine picked up. Uncertainty never terminates a call, so
// the inconclusive result is VerdictUnknown rather than an error.
func ClassifyAMD(text string) AMDResult {
	normalized := Normalize(text)
	if normalized == "" {
		return AMDResult{Verdict: VerdictUnknown}
	}

	machineHits := matchKeywords(normalized, machineKeywords)
	humanHits := matchKeywords(normalized, humanKeywords)

	// Fuzzy tier only when exact matching found nothing at all, so a clear
	// transcription is never second-guessed by near-misses.
	if len(machineHits) == 0 && len(humanHits) == 0 {
		tokens := strings.Fields(normalized)
		machineHits = fuzzyMatchKeywords(tokens, machineKeywords)
		humanHits = fuzzyMatchKeywords(tokens, humanKeywords)
	}

	res := AMDResult{
		MachineConfidence: classConfidence(len(machineHits), len(machineKeywords)),
		HumanConfidence:   classConfidence(len(humanHits), len(humanKeywords)),
		MatchedKeywords:   append(machineHits, humanHits...),
	}

	switch {
	case res.MachineConfidence >= verdictThreshold && res.MachineConfidence > res.HumanConfidence:
		res.Verdict = VerdictMachine
	case res.HumanConfidence >= verdictThreshold:
		res.Verdict = VerdictHuman
	default:
		res.Verdict = VerdictUnknown
	}
	return res
}

func matchKeywords(normalized string, keywords []string) []string {
	var hits []string
	for _, k := range keywords {
		if strings.Contains(normalized, k) {
			hits = append(hits, k)
		}
	}
	return hits
}

// fuzzyMatchKeywords accepts a keyword when any of its tokens scores at
// least fuzzyAcceptRatio against any input token.
func fuzzyMatchKeywords(tokens []string, keywords []string) []string {
	var hits []string
	for _, k := range keywords {
		if bestTokenSimilarity(k, tokens) >= fuzzyAcceptRatio {
			hits = append(hits, k)
		}
	}
	return hits
}

func bestTokenSimilarity(keyword string, tokens []string) float64 {
	best := 0.0
	for _, kt := range strings.Fields(keyword) {
		if IsStopword(kt) {
			continue
		}
		for _, tok := range tokens {
			if sim := matchr.JaroWinkler(kt, tok, false); sim > best {
				best = sim
			}
		}
	}
	return best
}

func classConfidence(matches, total int) float64 {
	if total == 0 || matches == 0 {
		return 0
	}
	conf := float64(matches) / float64(total)
	if matches >= 2 {
		conf += multiMatchBoost
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
