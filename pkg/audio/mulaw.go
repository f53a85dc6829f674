// Package audio provides the transcoding layer between the narrowband G.711
// mu-law telephony codec used by carrier media streams and the wideband
// 16-bit linear PCM expected by speech APIs.
//
// Carrier side:  mu-law, 8 kHz, mono, 1 byte per sample.
// Speech side:   signed little-endian PCM16, 16 kHz or 24 kHz, mono.
//
// All conversions are pure functions over byte slices. Resampling uses linear
// interpolation, which is adequate for telephony-band speech.
package audio

// TelephonyRate is the narrowband sample rate of carrier media streams in Hz.
const TelephonyRate = 8000

// FrameMs is the duration of a single carrier media frame.
const FrameMs = 20

// FrameBytes is the size of one outbound mu-law frame (20 ms at 8 kHz, 1
// byte per sample).
const FrameBytes = TelephonyRate * FrameMs / 1000

// MulawSilence is the mu-law byte encoding zero amplitude.
const MulawSilence = 0xFF

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// DecodeMulaw expands a single mu-law byte to a linear PCM16 sample.
func DecodeMulaw(b byte) int16 {
	u := ^b
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	magnitude := (int32(mantissa)<<3 + mulawBias) << exponent
	magnitude -= mulawBias
	if u&0x80 != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeMulaw compresses a linear PCM16 sample to a mu-law byte.
func EncodeMulaw(pcm int16) byte {
	var sign byte
	v := int32(pcm)
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	// Segment boundaries per G.711: the biased magnitude 2^e*(8m+132) lands
	// in segment e, and the mantissa sits at bits e+3..e+6.
	var exponent byte
	switch {
	case v >= 0x4000:
		exponent = 7
	case v >= 0x2000:
		exponent = 6
	case v >= 0x1000:
		exponent = 5
	case v >= 0x800:
		exponent = 4
	case v >= 0x400:
		exponent = 3
	case v >= 0x200:
		exponent = 2
	case v >= 0x100:
		exponent = 1
	}
	mantissa := byte(v>>(exponent+3)) & 0x0F

	return ^(sign | exponent<<4 | mantissa)
}

// MulawToPCM16 decodes 8 kHz mu-law audio to little-endian PCM16 at
// targetRate. targetRate must be 8000 or a higher multiple of 1000; 8000 is a
// passthrough decode, anything else is resampled after decoding.
//
// The output length is len(mulaw) * targetRate / 8000 * 2 bytes, give or take
// one sample of resampler rounding.
func MulawToPCM16(mulaw []byte, targetRate int) []byte {
	pcm := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		s := DecodeMulaw(b)
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	if targetRate == TelephonyRate {
		return pcm
	}
	return ResampleMono16(pcm, TelephonyRate, targetRate)
}

// PCM16ToMulaw encodes little-endian PCM16 at inputRate to 8 kHz mu-law.
// Audio at other rates is resampled down to 8 kHz before companding.
func PCM16ToMulaw(pcm []byte, inputRate int) []byte {
	if inputRate != TelephonyRate {
		pcm = ResampleMono16(pcm, inputRate, TelephonyRate)
	}
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = EncodeMulaw(s)
	}
	return out
}

// Energy returns the mean distance of each mu-law byte from the codec's
// silence value. It treats that distance as an amplitude proxy, which is good
// enough for voice-activity detection but is not true loudness; do not reuse
// it for level metering.
func Energy(mulaw []byte) float64 {
	if len(mulaw) == 0 {
		return 0
	}
	var total int
	for _, b := range mulaw {
		if b >= 0x80 {
			total += int(0xFF - b)
		} else {
			total += int(0x7F - b)
		}
	}
	return float64(total) / float64(len(mulaw))
}

// IsSilence reports whether a mu-law frame is silence or near-silence under
// the given energy threshold. Empty input counts as silence.
func IsSilence(mulaw []byte, threshold float64) bool {
	return Energy(mulaw) < threshold
}
