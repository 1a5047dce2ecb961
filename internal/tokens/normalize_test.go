package tokens_test

import (
	"testing"
	"time"

	"github.com/arclight-io/scrubber/internal/tokens"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "John Doe", "johndoe"},
		{"strips ssn punctuation", "123-45-6789", "123456789"},
		{"equivalent digit run", "123456789", "123456789"},
		{"trims whitespace", "  Jane Smith  ", "janesmith"},
		{"removes underscores", "user_name", "username"},
		{"keeps unicode letters", "Jürgen Müller", "jürgenmüller"},
		{"empty", "", ""},
		{"punctuation only", "---", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tokens.Normalize(tc.input); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRatioIdentical(t *testing.T) {
	if got := tokens.Ratio("johndoe", "johndoe"); got != 1.0 {
		t.Errorf("Ratio(identical) = %v, want 1.0", got)
	}
}

func TestRatioDisjoint(t *testing.T) {
	if got := tokens.Ratio("abcdef", "uvwxyz"); got != 0 {
		t.Errorf("Ratio(disjoint) = %v, want 0", got)
	}
}

func TestRatioSymmetricOrder(t *testing.T) {
	// Ratcliff/Obershelp is computed over matching blocks of the two
	// sequences, so near-identical strings must score above the threshold.
	if got := tokens.Ratio("johndoe", "johndoee"); got <= tokens.SimilarityThreshold {
		t.Errorf("Ratio(near-identical) = %v, want > %v", got, tokens.SimilarityThreshold)
	}
}

func TestFormatToken(t *testing.T) {
	if got := tokens.FormatToken("Person", 1); got != "{person_1}" {
		t.Errorf("FormatToken(Person, 1) = %q, want %q", got, "{person_1}")
	}
	if got := tokens.FormatToken("SSN", 12); got != "{ssn_12}" {
		t.Errorf("FormatToken(SSN, 12) = %q, want %q", got, "{ssn_12}")
	}
}

func TestBestMatchCaseVariant(t *testing.T) {
	records := []tokens.Record{
		{NormalizedValue: tokens.Normalize("John Doe"), Token: "{person_1}"},
	}

	token, ok := tokens.BestMatch(records, tokens.Normalize("john doe"))
	if !ok {
		t.Fatal("BestMatch: expected a match for a case variant")
	}
	if token != "{person_1}" {
		t.Errorf("BestMatch = %q, want %q", token, "{person_1}")
	}
}

func TestBestMatchBelowThreshold(t *testing.T) {
	records := []tokens.Record{
		{NormalizedValue: "johndoe", Token: "{person_1}"},
	}

	if _, ok := tokens.BestMatch(records, "margaretthatcher"); ok {
		t.Error("BestMatch: expected no match for a dissimilar value")
	}
}

func TestBestMatchPrefersHighestSimilarity(t *testing.T) {
	records := []tokens.Record{
		{NormalizedValue: "jonathandoe", Token: "{person_1}"},
		{NormalizedValue: "johndoe", Token: "{person_2}"},
	}

	token, ok := tokens.BestMatch(records, "johndoe")
	if !ok {
		t.Fatal("BestMatch: expected a match")
	}
	if token != "{person_2}" {
		t.Errorf("BestMatch = %q, want exact-similarity record %q", token, "{person_2}")
	}
}

func TestBestMatchTieKeepsEarliest(t *testing.T) {
	// Records arrive ordered by ascending creation time; on equal ratios
	// the earlier record must win.
	records := []tokens.Record{
		{NormalizedValue: "johndoe", Token: "{person_1}", CreatedAt: time.Unix(1, 0)},
		{NormalizedValue: "johndoe", Token: "{person_2}", CreatedAt: time.Unix(2, 0)},
	}

	token, ok := tokens.BestMatch(records, "johndoe")
	if !ok {
		t.Fatal("BestMatch: expected a match")
	}
	if token != "{person_1}" {
		t.Errorf("BestMatch = %q, want earliest record %q", token, "{person_1}")
	}
}

func TestBestMatchEmptyPartition(t *testing.T) {
	if _, ok := tokens.BestMatch(nil, "johndoe"); ok {
		t.Error("BestMatch(nil) should not match")
	}
}

func TestRecordID(t *testing.T) {
	got := tokens.RecordID("u1", "c1", "Person", 3)
	if got != "u1_c1_Person_3" {
		t.Errorf("RecordID = %q, want %q", got, "u1_c1_Person_3")
	}
}
