package similarity

import "testing"

func TestScoreIdentical(t *testing.T) {
	if got := Score("The Title", "The Title"); got != 1.0 {
		t.Fatalf("identical titles should score 1.0, got %f", got)
	}
}

func TestScoreTransliteration(t *testing.T) {
	if got := Score("Брат", "Brat"); got != 1.0 {
		t.Fatalf("cyrillic and latin spellings should score 1.0, got %f", got)
	}
}

func TestScoreCaseAndPunctuation(t *testing.T) {
	if got := Score("Me & You", "me and you"); got != 1.0 {
		t.Fatalf("ampersand and case should not matter, got %f", got)
	}
	if got := Score("Blade.Runner", "Blade Runner"); got != 1.0 {
		t.Fatalf("separator punctuation should not matter, got %f", got)
	}
}

func TestScorePossessivePrefix(t *testing.T) {
	got := Score("Will Vinton's Claymation Christmas", "Claymation Christmas")
	if got < 0.9 {
		t.Fatalf("word-boundary suffix containment should score high, got %f", got)
	}
}

func TestScoreNoFalseSuffixMatch(t *testing.T) {
	// "ristmas" is a suffix of "Christmas" but not at a word boundary.
	got := Score("Christmas", "ristmas")
	if got >= 0.9 {
		t.Fatalf("mid-word suffix should not count as containment, got %f", got)
	}
}

func TestScoreUnrelated(t *testing.T) {
	if got := Score("The Title", "Redemption"); got > 0.5 {
		t.Fatalf("unrelated titles should score low, got %f", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	if got := Score("", "Anything"); got != 0.0 {
		t.Fatalf("empty input should score 0.0, got %f", got)
	}
}
