package classify

import "testing"

func TestMatchIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"oui c'est moi", IntentAffirm},
		{"d'accord, je vous écoute", IntentAffirm},
		{"ah d'accord", IntentAffirm},
		{"ça m'intéresse, dites-moi", IntentInterested},
		{"non merci", IntentDeny},
		{"je ne suis pas intéressé", IntentNotInterested},
		{"ça ne m'intéresse pas du tout", IntentNotInterested},
		{"rappelez-moi plus tard", IntentCallback},
		{"c'est trop cher", IntentObjection},
		{"je dois réfléchir", IntentObjection},
		{"comment ça marche ?", IntentQuestion},
		{"euh je ne sais pas", IntentUnsure},
		{"", IntentUnknown},
		{"le ciel est bleu", IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := MatchIntent(tt.text)
			if res.Intent != tt.want {
				t.Errorf("MatchIntent(%q) = %s (matched %v), want %s",
					tt.text, res.Intent, res.MatchedKeywords, tt.want)
			}
		})
	}
}

func TestMatchIntentPriority(t *testing.T) {
	// An affirmation with an embedded objection routes as affirm: the
	// caller said yes, the reservation is secondary.
	res := MatchIntent("oui mais c'est trop cher")
	if res.Intent != IntentAffirm {
		t.Errorf("expected affirm to win priority, got %s", res.Intent)
	}
}

func TestMatchIntentConfidenceScales(t *testing.T) {
	one := MatchIntent("oui")
	two := MatchIntent("oui, tout à fait d'accord")
	if two.Confidence <= one.Confidence {
		t.Errorf("more matches should raise confidence: %f vs %f", one.Confidence, two.Confidence)
	}
	if two.Confidence > 1.0 {
		t.Errorf("confidence must cap at 1.0, got %f", two.Confidence)
	}
}

func TestMatchIntentEmptyNeverFails(t *testing.T) {
	res := MatchIntent("   ...  ")
	if res.Intent != IntentUnknown || res.Confidence != 0 {
		t.Errorf("punctuation-only input should be unknown/0, got %s/%f", res.Intent, res.Confidence)
	}
}
