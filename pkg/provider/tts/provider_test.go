package tts

import "testing"

func TestFillerCachePutGet(t *testing.T) {
	t.Parallel()

	var c FillerCache
	if got := c.Get(FillerThinking); got != nil {
		t.Fatalf("empty cache returned %v", got)
	}

	c.Put(FillerThinking, []byte{1, 2, 3})
	c.Put(FillerChecking, []byte{4})

	if got := c.Get(FillerThinking); len(got) != 3 {
		t.Errorf("thinking audio length = %d, want 3", len(got))
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Clear()
	if c.Len() != 0 || c.Get(FillerChecking) != nil {
		t.Error("Clear did not empty the cache")
	}
}

func TestDefaultFillerPhrasesContainsRequiredKeys(t *testing.T) {
	t.Parallel()

	phrases := DefaultFillerPhrases()
	for _, key := range []string{FillerThinking, FillerChecking} {
		if phrases[key] == "" {
			t.Errorf("missing default phrase for %q", key)
		}
	}
}
