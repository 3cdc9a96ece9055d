package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAITTS synthesizes speech over OpenAI's REST audio endpoint using a raw
// net/http client. Requests pcm16 so synthesize_podcast_audio can wrap the
// raw samples into a WAV container itself (1 channel, 24kHz, 16-bit).
type OpenAITTS struct {
	apiKey string
	client *http.Client
}

// NewOpenAITTS builds a provider using apiKey.
func NewOpenAITTS(apiKey string) *OpenAITTS {
	return &OpenAITTS{apiKey: apiKey, client: &http.Client{Timeout: 60 * time.Second}}
}

const (
	podcastSampleRate       = 24000
	podcastSampleWidthBytes = 2
	podcastChannels         = 1
)

// Synthesize calls the speech endpoint once per dialogue line and
// concatenates the resulting PCM samples in order.
func (t *OpenAITTS) Synthesize(ctx context.Context, req TTSRequest) (TTSResult, error) {
	var pcm bytes.Buffer
	for _, line := range req.Dialogue {
		voice := req.Voices[line.Speaker]
		if voice == "" {
			voice = "alloy"
		}
		chunk, err := t.synthesizeLine(ctx, line.Text, voice)
		if err != nil {
			return TTSResult{}, fmt.Errorf("openai tts: speaker %q: %w", line.Speaker, err)
		}
		pcm.Write(chunk)
	}
	return TTSResult{
		PCM:              pcm.Bytes(),
		SampleRate:       podcastSampleRate,
		SampleWidthBytes: podcastSampleWidthBytes,
		Channels:         podcastChannels,
	}, nil
}

func (t *OpenAITTS) synthesizeLine(ctx context.Context, text, voice string) ([]byte, error) {
	body := map[string]any{
		"model":           "tts-1",
		"input":           text,
		"voice":           voice,
		"response_format": "pcm",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	return io.ReadAll(resp.Body)
}

// WrapWAV wraps raw PCM samples in a canonical RIFF/WAVE header.
func WrapWAV(pcm []byte, sampleRate, sampleWidthBytes, channels int) []byte {
	byteRate := sampleRate * channels * sampleWidthBytes
	blockAlign := channels * sampleWidthBytes
	dataLen := len(pcm)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	writeUint32LE(&buf, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeUint32LE(&buf, 16)
	writeUint16LE(&buf, 1) // PCM
	writeUint16LE(&buf, uint16(channels))
	writeUint32LE(&buf, uint32(sampleRate))
	writeUint32LE(&buf, uint32(byteRate))
	writeUint16LE(&buf, uint16(blockAlign))
	writeUint16LE(&buf, uint16(sampleWidthBytes*8))
	buf.WriteString("data")
	writeUint32LE(&buf, uint32(dataLen))
	buf.Write(pcm)
	return buf.Bytes()
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}

func writeUint16LE(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}
