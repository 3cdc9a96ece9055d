package nodes

import (
	"context"
	"encoding/base64"
	"math/rand"
	"strings"
	"time"

	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

const podcastScriptSystemPrompt = `Write a two-person podcast script from the given content. Respond with JSON: {"title":"","description":"","dialogue":[{"speaker":"","text":""}]}.`

type podcastScriptResponse struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Dialogue    []podcastLineResponse `json:"dialogue"`
}

type podcastLineResponse struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// GeneratePodcastScript asks the LLM gateway in JSON mode for a titled dialogue script.
func GeneratePodcastScript(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		targetMinutes := state.Preferences["target_minutes"]
		prompt := state.RawContent.Markdown
		if targetMinutes != "" {
			prompt = "Target roughly " + targetMinutes + " minutes of spoken dialogue.\n\n" + prompt
		}
		resp, err := d.Gateway.Call(nc.Context(), llm.Request{
			Provider:     state.Provider,
			Model:        state.Model,
			SystemPrompt: podcastScriptSystemPrompt,
			UserPrompt:   prompt,
			JSONMode:     true,
			APIKey:       state.APIKeys[state.Provider],
			StepName:     "generate_podcast_script",
		})
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.LLMTransient, "generate_podcast_script", err))
			return state
		}
		var parsed podcastScriptResponse
		if err := llm.SafeJSONParse(resp.Text, &parsed); err != nil {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "generate_podcast_script", err))
			return state
		}
		state.PodcastTitle = parsed.Title
		state.PodcastDescription = parsed.Description
		for _, l := range parsed.Dialogue {
			state.PodcastDialogue = append(state.PodcastDialogue, model.PodcastLine{Speaker: l.Speaker, Text: l.Text})
		}
		return state
	}
}

const ttsMaxAttempts = 3

// SynthesizePodcastAudio calls the TTS provider, retrying transient failures
// with exponential backoff, then wraps PCM into WAV and base64-encodes it
// for transport.
func SynthesizePodcastAudio(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		voices := map[string]string{}
		for k, v := range state.Preferences {
			const prefix = "voice:"
			if strings.HasPrefix(k, prefix) {
				voices[strings.TrimPrefix(k, prefix)] = v
			}
		}
		var lines []collaborators.TTSLine
		for _, l := range state.PodcastDialogue {
			lines = append(lines, collaborators.TTSLine{Speaker: l.Speaker, Text: l.Text})
		}

		var result collaborators.TTSResult
		var err error
		for attempt := 1; attempt <= ttsMaxAttempts; attempt++ {
			result, err = d.TTS.Synthesize(nc.Context(), collaborators.TTSRequest{Dialogue: lines, Voices: voices})
			if err == nil || !docerrors.IsTransient(err) || attempt == ttsMaxAttempts {
				break
			}
			sleepBackoff(nc.Context(), attempt)
		}
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "synthesize_podcast_audio", err))
			return state
		}

		wav := collaborators.WrapWAV(result.PCM, result.SampleRate, result.SampleWidthBytes, result.Channels)
		state.PodcastAudioB64 = base64.StdEncoding.EncodeToString(wav)
		if result.SampleRate > 0 && result.SampleWidthBytes > 0 {
			state.PodcastDurationSec = float64(len(result.PCM)) / float64(result.SampleRate*result.SampleWidthBytes)
		}
		state.Completed = true
		return state
	}
}

// sleepBackoff waits 2^attempt * uniform(1, 1.5) seconds, honoring
// cancellation.
func sleepBackoff(ctx context.Context, attempt int) {
	base := float64(uint(1) << uint(attempt))
	jitter := 1 + rand.Float64()*0.5
	d := time.Duration(base * jitter * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
