package classify

import "strings"

// Intent is the closed set of caller intents the router understands.
// IntentSilence is never produced here: the call controller emits it when a
// waiting phase times out without speech.
type Intent string

const (
	IntentAffirm        Intent = "affirm"
	IntentDeny          Intent = "deny"
	IntentUnsure        Intent = "unsure"
	IntentQuestion      Intent = "question"
	IntentObjection     Intent = "objection"
	IntentInterested    Intent = "interested"
	IntentNotInterested Intent = "not_interested"
	IntentCallback      Intent = "callback"
	IntentSilence       Intent = "silence"
	IntentUnknown       Intent = "unknown"
)

// KnownIntents is the set accepted in scenario intent mappings.
var KnownIntents = map[Intent]bool{
	IntentAffirm:        true,
	IntentDeny:          true,
	IntentUnsure:        true,
	IntentQuestion:      true,
	IntentObjection:     true,
	IntentInterested:    true,
	IntentNotInterested: true,
	IntentCallback:      true,
	IntentSilence:       true,
	IntentUnknown:       true,
}

// IntentResult is what the processing phase routes on.
type IntentResult struct {
	Intent          Intent
	Confidence      float64
	MatchedKeywords []string
}

type intentRule struct {
	intent   Intent
	base     float64
	keywords []string
}

// Rules are scanned in order; the first intent with any keyword hit wins.
// Order matters: not_interested phrasing contains negations that must not
// be shadowed, so interested keywords avoid bare "intéressé".
var intentRules = []intentRule{
	{IntentAffirm, 0.8, normalizeAll([]string{
		"oui", "ouais", "d'accord", "bien sûr", "tout à fait", "exactement",
		"absolument", "ok", "c'est moi", "parfait", "volontiers", "effectivement",
	})},
	{IntentInterested, 0.8, normalizeAll([]string{
		"ça m'intéresse", "suis intéressé", "suis intéressée", "intéressant",
		"pourquoi pas", "en savoir plus", "je veux bien", "dites-moi",
	})},
	{IntentDeny, 0.8, normalizeAll([]string{
		"non", "jamais", "aucun", "je refuse", "hors de question",
	})},
	{IntentNotInterested, 0.85, normalizeAll([]string{
		"pas intéressé", "pas intéressée", "m'intéresse pas",
		"laissez-moi tranquille", "arrêtez de m'appeler", "pas besoin",
		"ne me rappelez", "ça ne m'intéresse",
	})},
	{IntentCallback, 0.75, normalizeAll([]string{
		"rappeler", "rappelez", "plus tard", "une autre fois", "pas le moment",
		"je suis occupé", "je suis occupée", "en réunion",
	})},
	{IntentObjection, 0.7, normalizeAll([]string{
		"trop cher", "pas le temps", "j'ai déjà", "pas confiance", "arnaque",
		"réfléchir", "pas les moyens", "budget", "trop compliqué",
	})},
	{IntentQuestion, 0.7, normalizeAll([]string{
		"comment", "pourquoi", "combien", "qui êtes-vous", "c'est quoi",
		"quelle", "quel", "qu'est-ce que",
	})},
	{IntentUnsure, 0.6, normalizeAll([]string{
		"peut-être", "je ne sais pas", "sais pas", "euh", "bof", "on verra",
		"à voir", "je ne suis pas sûr",
	})},
}

// MatchIntent classifies a caller utterance. Empty input yields
// IntentUnknown with zero confidence; it never fails.
func MatchIntent(text string) IntentResult {
	normalized := Normalize(text)
	if normalized == "" {
		return IntentResult{Intent: IntentUnknown}
	}

	for _, rule := range intentRules {
		var hits []string
		for _, k := range rule.keywords {
			if strings.Contains(normalized, k) {
				hits = append(hits, k)
			}
		}
		if len(hits) == 0 {
			continue
		}
		conf := rule.base + 0.1*float64(len(hits)-1)
		if conf > 1.0 {
			conf = 1.0
		}
		return IntentResult{Intent: rule.intent, Confidence: conf, MatchedKeywords: hits}
	}

	return IntentResult{Intent: IntentUnknown}
}
