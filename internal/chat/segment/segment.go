// Package segment splits streamed Icelandic text into complete sentences.
//
// Chat-model output arrives as arbitrary-length deltas; the [Segmenter]
// accrues them in a rolling buffer and emits a sentence as soon as one is
// complete, so speech synthesis can start before the model finishes. A
// sentence ends at `.`, `!` or `?` followed by whitespace, unless the text up
// to the punctuation ends with a known abbreviation (e.g. "t.d.", "kr."); a
// false boundary is glued to the sentence that follows it.
package segment

import (
	"regexp"
	"strings"
)

var boundaryRE = regexp.MustCompile(`[.!?]\s+`)

// DefaultAbbreviations returns the Icelandic abbreviations that never end a
// sentence.
func DefaultAbbreviations() []string {
	return []string{
		"t.d.", "o.s.frv.", "þ.e.", "m.a.", "o.fl.", "þ.m.t.",
		"kr.", "nr.", "dr.", "hr.", "fru.", "st.",
	}
}

// Segmenter holds the abbreviation set and the rolling buffer of one stream.
// Not safe for concurrent use; each pipeline run owns its own Segmenter.
type Segmenter struct {
	abbreviations []string
	buffer        string
}

// New creates a Segmenter with the given abbreviation set. An empty or nil
// set selects [DefaultAbbreviations].
func New(abbreviations []string) *Segmenter {
	if len(abbreviations) == 0 {
		abbreviations = DefaultAbbreviations()
	}
	return &Segmenter{abbreviations: abbreviations}
}

// Push appends a text delta to the buffer and returns any sentences that
// became complete.
func (s *Segmenter) Push(delta string) []string {
	s.buffer += delta
	sentences, remaining := s.extract(s.buffer)
	s.buffer = remaining
	return sentences
}

// Flush returns the trimmed remainder as a final sentence, or nothing if the
// buffer holds only whitespace. The buffer is reset either way.
func (s *Segmenter) Flush() []string {
	rest := strings.TrimSpace(s.buffer)
	s.buffer = ""
	if rest == "" {
		return nil
	}
	return []string{rest}
}

// extract pulls complete sentences off the front of text. The remainder is
// the suffix that may still grow into a sentence.
func (s *Segmenter) extract(text string) ([]string, string) {
	var sentences []string
	remaining := text

	for {
		loc := boundaryRE.FindStringIndex(remaining)
		if loc == nil {
			break
		}

		// Candidate runs through the punctuation mark itself.
		candidate := remaining[:loc[0]+1]

		if s.endsWithAbbreviation(candidate) {
			// False boundary. Glue the candidate onto whatever true
			// sentence the rest of the buffer produces.
			rest := remaining[loc[1]:]
			sub, subRemaining := s.extract(rest)
			if len(sub) == 0 {
				break
			}
			sentences = append(sentences, candidate+" "+sub[0])
			sentences = append(sentences, sub[1:]...)
			remaining = subRemaining
			continue
		}

		if sentence := strings.TrimSpace(candidate); sentence != "" {
			sentences = append(sentences, sentence)
		}
		remaining = remaining[loc[1]:]
	}

	return sentences, remaining
}

func (s *Segmenter) endsWithAbbreviation(text string) bool {
	lower := strings.ToLower(strings.TrimRight(text, " \t\r\n"))
	for _, abbr := range s.abbreviations {
		if strings.HasSuffix(lower, abbr) {
			return true
		}
	}
	return false
}
