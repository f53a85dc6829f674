package whisperapi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWrapWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := wrapWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); dataLen != uint32(len(pcm)) {
		t.Errorf("data chunk length = %d, want %d", dataLen, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("PCM payload not preserved")
	}
}

func TestWrapWAVEmpty(t *testing.T) {
	t.Parallel()

	wav := wrapWAV(nil, 16000, 1)
	if len(wav) != 44 {
		t.Fatalf("empty wav length = %d, want 44", len(wav))
	}
}
