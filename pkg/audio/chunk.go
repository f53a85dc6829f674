package audio

// Chunk splits audio into fixed-duration frames for streaming playback.
// sampleWidth is bytes per sample: 1 for mu-law, 2 for PCM16. A short final
// chunk is padded to the frame boundary with codec silence (0xFF for mu-law,
// 0x00 for PCM).
func Chunk(audio []byte, chunkMs, sampleRate, sampleWidth int) [][]byte {
	bytesPerChunk := sampleRate * sampleWidth * chunkMs / 1000
	if bytesPerChunk <= 0 || len(audio) == 0 {
		return nil
	}

	var pad byte
	if sampleWidth == 1 {
		pad = MulawSilence
	}

	chunks := make([][]byte, 0, (len(audio)+bytesPerChunk-1)/bytesPerChunk)
	for i := 0; i < len(audio); i += bytesPerChunk {
		end := i + bytesPerChunk
		if end <= len(audio) {
			chunks = append(chunks, audio[i:end])
			continue
		}
		chunk := make([]byte, bytesPerChunk)
		n := copy(chunk, audio[i:])
		for j := n; j < bytesPerChunk; j++ {
			chunk[j] = pad
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// SilenceMulaw generates durationMs of mu-law silence at sampleRate.
// Zero or negative duration returns an empty slice.
func SilenceMulaw(durationMs, sampleRate int) []byte {
	n := sampleRate * durationMs / 1000
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = MulawSilence
	}
	return out
}
