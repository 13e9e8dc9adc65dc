package speech

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

const wavHeaderSize = 44

// BuildWAV wraps raw 16-bit PCM in a RIFF header.
func BuildWAV(pcm []byte, sampleRate, channels int) []byte {
	bitsPerSample := 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	wav := make([]byte, wavHeaderSize+dataSize)
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], uint16(bitsPerSample))
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[wavHeaderSize:], pcm)
	return wav
}

// ParseWAV extracts format and PCM payload from a RIFF file. The softswitch
// may still be writing the file when we read it, so a data chunk length
// pointing past the end of the buffer is clamped rather than rejected.
func ParseWAV(data []byte) (sampleRate, channels int, pcm []byte, err error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, 0, nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	// Walk the chunks; fmt and data are the only ones we care about.
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return 0, 0, nil, fmt.Errorf("truncated fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
		case "data":
			end := body + chunkLen
			if end > len(data) {
				end = len(data)
			}
			pcm = data[body:end]
			if sampleRate == 0 {
				return 0, 0, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			return sampleRate, channels, pcm, nil
		}

		pos = body + chunkLen
		if chunkLen%2 == 1 {
			pos++
		}
	}

	return 0, 0, nil, fmt.Errorf("no data chunk found")
}

// SplitCallerLeg returns the left channel of interleaved 16-bit stereo PCM.
// Recordings are made with the caller on the left, the bot on the right.
func SplitCallerLeg(stereo []byte) []byte {
	frames := len(stereo) / 4
	mono := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		mono[i*2] = stereo[i*4]
		mono[i*2+1] = stereo[i*4+1]
	}
	return mono
}

// ExtractCallerLeg reads a stereo recording and writes the caller leg as a
// mono WAV next to it.
func ExtractCallerLeg(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read recording: %w", err)
	}

	sampleRate, channels, pcm, err := ParseWAV(data)
	if err != nil {
		return fmt.Errorf("parse recording: %w", err)
	}

	mono := pcm
	if channels == 2 {
		mono = SplitCallerLeg(pcm)
	}

	if err := os.WriteFile(dstPath, BuildWAV(mono, sampleRate, 1), 0644); err != nil {
		return fmt.Errorf("write mono file: %w", err)
	}
	return nil
}

// MeanAmplitudeDB computes the mean absolute amplitude of 16-bit PCM
// relative to full scale, in dBFS. Pure digital silence returns -96.
func MeanAmplitudeDB(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return -96
	}

	var sum float64
	for i := 0; i < samples; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}

	mean := sum / float64(samples)
	if mean < 1 {
		return -96
	}
	return 20 * math.Log10(mean/32768.0)
}

// ProbeSilence reports whether a mono recording is quieter than the floor.
// Used before AMD transcription to skip the STT round-trip on dead air.
func ProbeSilence(path string, floorDB float64) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read recording: %w", err)
	}
	_, _, pcm, err := ParseWAV(data)
	if err != nil {
		return false, fmt.Errorf("parse recording: %w", err)
	}
	return MeanAmplitudeDB(pcm) < floorDB, nil
}
