package whisperapi

import "encoding/binary"

// sampleRate is the PCM16 rate the orchestrator delivers and the rate written
// into the WAV header.
const sampleRate = 16000

// wrapWAV prefixes raw little-endian PCM16 with a canonical 44-byte RIFF/WAVE
// header so the Whisper API accepts it as a file upload.
func wrapWAV(pcm []byte, rate, channels int) []byte {
	const headerLen = 44
	byteRate := rate * channels * 2

	out := make([]byte, headerLen+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format tag
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(channels*2)) // block align
	binary.LittleEndian.PutUint16(out[34:36], 16)                 // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerLen:], pcm)
	return out
}
