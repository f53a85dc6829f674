package segment

import (
	"reflect"
	"testing"
)

func TestPushEmitsCompleteSentences(t *testing.T) {
	t.Parallel()

	s := New(nil)
	got := s.Push("Góðan daginn! Hvernig get ég aðstoðað þig? Ég er ")
	want := []string{"Góðan daginn!", "Hvernig get ég aðstoðað þig?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Push() = %q, want %q", got, want)
	}

	if got := s.Flush(); !reflect.DeepEqual(got, []string{"Ég er"}) {
		t.Errorf("Flush() = %q", got)
	}
}

func TestAbbreviationGluedAcrossDeltas(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if got := s.Push("Þetta er t.d. "); len(got) != 0 {
		t.Fatalf("abbreviation treated as boundary: %q", got)
	}
	got := s.Push("mjög gott. ")
	want := []string{"Þetta er t.d. mjög gott."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Push() = %q, want %q", got, want)
	}
}

func TestMultipleAbbreviations(t *testing.T) {
	t.Parallel()

	s := New(nil)
	got := s.Push("Bíllinn kostar 100 kr. á dag o.s.frv. en þ.e. gott verð. Viltu heyra meira? ")
	if len(got) != 2 {
		t.Fatalf("got %d sentences %q, want 2", len(got), got)
	}
	if got[1] != "Viltu heyra meira?" {
		t.Errorf("second sentence = %q", got[1])
	}
}

func TestEmptyInput(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if got := s.Push(""); len(got) != 0 {
		t.Errorf("Push(\"\") = %q", got)
	}
	if got := s.Flush(); got != nil {
		t.Errorf("Flush() on empty buffer = %q", got)
	}
}

func TestWhitespaceOnlyBufferFlushesNothing(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Push("   \n ")
	if got := s.Flush(); got != nil {
		t.Errorf("Flush() = %q, want nil", got)
	}
}

func TestNoBoundaryWithoutTrailingWhitespace(t *testing.T) {
	t.Parallel()

	// "4.5" style decimals and sentence-final punctuation at the very end of
	// a delta must wait for the following whitespace.
	s := New(nil)
	if got := s.Push("Verðið er 4.5 milljónir."); len(got) != 0 {
		t.Errorf("emitted %q before trailing whitespace", got)
	}
	if got := s.Push(" "); len(got) != 1 {
		t.Errorf("expected sentence after trailing space, got %q", got)
	}
}

// TestEmptySliceSelectsDefaults covers the tuning-file case of
// `abbreviations: []`, which decodes to an empty non-nil slice and must
// behave the same as leaving the field out.
func TestEmptySliceSelectsDefaults(t *testing.T) {
	t.Parallel()

	s := New([]string{})
	if got := s.Push("Þetta er t.d. "); len(got) != 0 {
		t.Fatalf("default abbreviation treated as boundary: %q", got)
	}
	got := s.Push("mjög gott. ")
	want := []string{"Þetta er t.d. mjög gott."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Push() = %q, want %q", got, want)
	}
}

func TestCustomAbbreviations(t *testing.T) {
	t.Parallel()

	s := New([]string{"sbr."})
	got := s.Push("Sjá sbr. fyrri kafla. Annað hér. ")
	want := []string{"Sjá sbr. fyrri kafla.", "Annað hér."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Push() = %q, want %q", got, want)
	}
}
