// Package calltrace persists a truncated record of every LLM gateway call to
// a per-process JSONL file, independent of the structured logger, so a
// generation run's prompts and responses can be inspected after the fact
// without re-running it. It wires as an llm.ObserverFunc.
package calltrace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goadesign/docgen-engine/internal/model"
)

// maxFieldChars bounds how much of a prompt/response is persisted per call.
const maxFieldChars = 4000

// record is one line of the trace file.
type record struct {
	Timestamp      string  `json:"timestamp"`
	Step           string  `json:"step"`
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	Response       string  `json:"response"`
	InputTokens    *int    `json:"input_tokens,omitempty"`
	OutputTokens   *int    `json:"output_tokens,omitempty"`
	LatencySeconds float64 `json:"latency_seconds"`
}

// FileObserver appends one JSON line per LLM call to a file under dir,
// opened once and reused for the life of the process.
type FileObserver struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileObserver creates dir if needed and opens a new call-trace file
// within it, named by process start time.
func NewFileObserver(dir string) (*FileObserver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := time.Now().Format("2006-01-02_15-04-05") + "_llm_calls.jsonl"
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileObserver{file: f}, nil
}

func truncate(s string) string {
	if len(s) <= maxFieldChars {
		return s
	}
	return s[:maxFieldChars] + "...[truncated]"
}

// Observe matches llm.ObserverFunc's signature and appends one JSON line
// describing the call. Write failures are swallowed; tracing never fails a
// request.
func (o *FileObserver) Observe(_ context.Context, stepName, prompt, response string, meta model.LLMCall) {
	rec := record{
		Timestamp:      meta.Timestamp.Format(time.RFC3339),
		Step:           stepName,
		Provider:       meta.Provider,
		Model:          meta.Model,
		Prompt:         truncate(prompt),
		Response:       truncate(response),
		InputTokens:    meta.InputTokens,
		OutputTokens:   meta.OutputTokens,
		LatencySeconds: float64(meta.DurationMs) / 1000.0,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	raw = append(raw, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = o.file.Write(raw)
}

// Close flushes and closes the underlying file.
func (o *FileObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Close()
}
