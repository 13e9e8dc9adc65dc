package classify

import "testing"

func TestClassifyAMD(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"voicemail greeting", "Bonjour, vous êtes bien sur la messagerie de Jean Dupont", VerdictMachine},
		{"voicemail beep prompt", "laissez un message après le bip", VerdictMachine},
		{"human pickup", "Oui, allô ?", VerdictHuman},
		{"human identifies", "allô, c'est moi", VerdictHuman},
		{"empty transcription", "", VerdictUnknown},
		{"unrelated speech", "la réunion commence à quinze heures", VerdictUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ClassifyAMD(tt.text)
			if res.Verdict != tt.want {
				t.Errorf("ClassifyAMD(%q) = %s (human=%.2f machine=%.2f), want %s",
					tt.text, res.Verdict, res.HumanConfidence, res.MachineConfidence, tt.want)
			}
		})
	}
}

func TestClassifyAMDFuzzyTier(t *testing.T) {
	// STT often mangles voicemail vocabulary; the fuzzy tier should still
	// catch a close token when nothing matches exactly.
	res := ClassifyAMD("vous avez joint le répondeu de")
	if res.MachineConfidence == 0 {
		t.Error("fuzzy tier should credit a near-miss of a machine keyword")
	}
}

func TestClassifyAMDUnknownContinues(t *testing.T) {
	// A weak single-sided signal stays Unknown; the call must go on.
	res := ClassifyAMD("bonjour monsieur")
	if res.Verdict == VerdictMachine {
		t.Error("a lone greeting must never classify as machine")
	}
}

func TestClassConfidence(t *testing.T) {
	tests := []struct {
		matches, total int
		want           float64
	}{
		{0, 5, 0},
		{1, 5, 0.2},
		{2, 5, 0.6},  // 0.4 + boost
		{5, 5, 1.0},  // capped
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := classConfidence(tt.matches, tt.total); got != tt.want {
			t.Errorf("classConfidence(%d, %d) = %f, want %f", tt.matches, tt.total, got, tt.want)
		}
	}
}
