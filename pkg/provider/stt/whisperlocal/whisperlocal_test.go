package whisperlocal

import "testing"

func TestNewRequiresModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	// Samples: 0, 16384 (0.5), -16384 (-0.5), with a trailing odd byte.
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0, 0x7F}
	got := pcmToFloat32(pcm)
	want := []float32{0, 0.5, -0.5}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %f, want %f", i, got[i], want[i])
		}
	}
}
