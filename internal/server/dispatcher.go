// Package server implements the Request→Workflow Dispatcher: the HTTP edge that validates inbound requests, resolves providers and
// API keys, short-circuits on a cache hit, and otherwise compiles and runs
// the relevant workflow graph, forwarding its events as the documented SSE
// wire protocol.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/config"
	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/nodes"
	"github.com/goadesign/docgen-engine/internal/stream"
	"github.com/goadesign/docgen-engine/internal/telemetry"
	"github.com/goadesign/docgen-engine/internal/workflow"
	"github.com/goadesign/docgen-engine/internal/workflows"
)

// downloadExpirySeconds is the value reported in Complete/CacheHit's
// expires_in field; the dispatcher does not itself expire files but documents the same lifetime convention the cache does.
const downloadExpirySeconds = 24 * 3600

// Dispatcher wires the cache, gateway, runtime, and stream bus into the HTTP surface.
type Dispatcher struct {
	Cfg     config.Config
	Cache   cache.Store
	Deps    *nodes.Deps
	Runtime *workflow.Runtime
	Logger  telemetry.Logger
}

func (d *Dispatcher) logger() telemetry.Logger {
	if d.Logger == nil {
		return telemetry.NewNoopLogger()
	}
	return d.Logger
}

// defaultAPIKeys returns the process-wide provider key fallbacks from Cfg.
func (d *Dispatcher) defaultAPIKeys() map[string]string {
	return map[string]string{
		"gemini":    d.Cfg.GeminiAPIKey,
		"openai":    d.Cfg.OpenAIAPIKey,
		"anthropic": d.Cfg.AnthropicAPIKey,
		"image":     d.Cfg.ImageAPIKey,
	}
}

// runRequest is the fully-resolved, provider/key-bound form of a
// generateRequest, ready to drive buildState and runGraph.
type runRequest struct {
	sources      []model.Source
	artifactKind model.ArtifactKind
	provider     string
	model        string
	imageModel   string
	preferences  map[string]string
	sessionID    model.SessionID
	reuseCache   bool
	maxRetries   int
	apiKeys      map[string]string
}

// resolve validates req and binds provider/model defaults and API keys,
// returning a docerrors.Error with code AUTH or UNSUPPORTED_SOURCE on
// failure.
func (d *Dispatcher) resolve(r *http.Request, req generateRequest, forcedKind model.ArtifactKind) (runRequest, error) {
	sources, err := req.sourceModels()
	if err != nil {
		return runRequest{}, docerrors.Wrap(docerrors.UnsupportedSource, "dispatch", err)
	}

	kind := forcedKind
	if kind == "" {
		kind = model.ArtifactKind(req.ArtifactKind)
	}
	if kind == "" {
		return runRequest{}, docerrors.New(docerrors.UnsupportedSource, "dispatch", "artifact_kind is required")
	}
	if kind.RequiresIngest() && len(sources) == 0 {
		return runRequest{}, docerrors.New(docerrors.UnsupportedSource, "dispatch", "at least one source is required")
	}

	provider := req.Provider
	if provider == "" {
		provider = d.Cfg.DefaultProvider
	}
	modelName := req.Model
	if modelName == "" {
		modelName = d.Cfg.DefaultModel
	}
	imageModel := req.ImageModel
	if imageModel == "" {
		imageModel = d.Cfg.DefaultImageModel
	}

	keys := apiKeysFromHeaders(r, d.defaultAPIKeys())
	if keys[provider] == "" {
		return runRequest{}, docerrors.Errorf(docerrors.Auth, "dispatch", "missing API key for provider %q", provider)
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = d.Cfg.MaxRetries
	}

	prefs := req.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}

	sessionID := model.SessionID(req.SessionID)
	if sessionID == "" {
		sessionID = model.DeriveSessionID(model.CanonicalSourceDigest(sources))
	}

	return runRequest{
		sources:      sources,
		artifactKind: kind,
		provider:     provider,
		model:        modelName,
		imageModel:   imageModel,
		preferences:  prefs,
		sessionID:    sessionID,
		reuseCache:   req.ReuseCache,
		maxRetries:   maxRetries,
		apiKeys:      keys,
	}, nil
}

func (rr runRequest) cacheKey() model.CacheKey {
	return model.NewCacheKey(model.CacheKeyInput{
		ArtifactKind:          rr.artifactKind,
		Provider:              rr.provider,
		Model:                 rr.model,
		ImageModel:            rr.imageModel,
		Preferences:           rr.preferences,
		CanonicalSourceDigest: model.CanonicalSourceDigest(rr.sources),
	})
}

// serve runs the full dispatch lifecycle for a /generate-family request,
// writing SSE events to w until exactly one terminal event has been sent.
func (d *Dispatcher) serve(w http.ResponseWriter, r *http.Request, req generateRequest, forcedKind model.ArtifactKind) {
	rr, err := d.resolve(r, req, forcedKind)
	if err != nil {
		writeTerminalJSON(w, errorWireEvent(err))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		writeTerminalJSON(w, errorWireEvent(docerrors.New(docerrors.Internal, "dispatch", "streaming unsupported")))
		return
	}
	defer sw.close()

	ctx := r.Context()
	key := rr.cacheKey()

	if rr.reuseCache {
		if artifact, err := d.Cache.Get(ctx, key); err == nil {
			sw.send(d.cacheHitEvent(ctx, artifact))
			return
		}
	}

	graph, err := workflows.Compile(rr.artifactKind, d.Deps)
	if err != nil {
		sw.send(errorWireEvent(docerrors.Wrap(docerrors.Internal, "dispatch", err)))
		return
	}
	usageBefore := d.usageCount()

	state := model.NewWorkflowState()
	state.SessionID = rr.sessionID
	state.ArtifactKind = rr.artifactKind
	state.Provider = rr.provider
	state.Model = rr.model
	state.ImageModel = rr.imageModel
	state.APIKeys = rr.apiKeys
	state.Preferences = rr.preferences
	state.ReuseCache = rr.reuseCache
	state.Sources = rr.sources
	state.MaxRetries = rr.maxRetries
	if uid := userID(r); uid != "" {
		state.Metadata["user_id"] = uid
	}

	bus := stream.NewBus(64)
	done := make(chan struct{})
	var finalState *model.WorkflowState
	var runErr error
	go func() {
		defer close(done)
		defer bus.Close(ctx)
		finalState, runErr = d.Runtime.Run(ctx, graph, state, bus)
	}()

	// Drain with a detached context: the runtime goroutine always closes the
	// bus, and a cancelled request still owes the client its Cancelled event.
	drainCtx := context.Background()
	for {
		evt, ok, err := bus.Next(drainCtx)
		if err != nil {
			sw.send(errorWireEvent(docerrors.Wrap(docerrors.Internal, "dispatch", err)))
			return
		}
		if !ok {
			break
		}
		we, terminal := d.translate(evt)
		if we != nil {
			sw.send(*we)
		}
		if terminal {
			<-done
			if evt.Type() == stream.EventComplete {
				d.persist(ctx, rr, key, finalState)
			}
			return
		}
	}

	<-done
	if runErr != nil {
		sw.send(errorWireEvent(docerrors.Wrap(docerrors.Internal, "dispatch", runErr)))
		return
	}
	if finalState != nil && finalState.Completed {
		d.persist(ctx, rr, key, finalState)
		sw.send(d.completeEvent(finalState, d.usageSince(usageBefore)))
		return
	}
	if finalState != nil {
		if err := finalState.LastError(); err != nil {
			sw.send(errorWireEvent(err))
			return
		}
	}
	sw.send(errorWireEvent(docerrors.New(docerrors.Internal, "dispatch", "execution ended without a terminal event")))
}

// translate converts one runtime-internal stream.Event into its documented
// wire shape. NodeEnd reports progress and Retry becomes a non-terminal
// "generating_output" message; NodeStart carries no direct wire event and
// returns (nil, false).
func (d *Dispatcher) translate(evt stream.Event) (*wireEvent, bool) {
	switch e := evt.(type) {
	case stream.NodeEnd:
		we := translateProgress(e.Data.Node, e.Data.StepNumber, e.Data.TotalSteps)
		return &we, false
	case stream.Retry:
		we := wireEvent{Status: "generating_output", Message: fmt.Sprintf("retrying %s", e.Data.ToNode)}
		return &we, false
	case stream.Complete:
		we := wireEvent{Status: "complete", DownloadURL: e.Data.DownloadURL, FilePath: e.Data.FilePath, ExpiresIn: downloadExpirySeconds, Metadata: e.Data.Metadata, SessionID: evt.SessionID()}
		return &we, true
	case stream.CacheHit:
		we := wireEvent{Status: "cache_hit", DownloadURL: e.Data.DownloadURL, FilePath: e.Data.FilePath, ExpiresIn: downloadExpirySeconds}
		if e.Data.ContentB64 != nil {
			we.PDFBase64 = *e.Data.ContentB64
		}
		return &we, true
	case stream.Error:
		we := wireEvent{Status: "error", Error: e.Data.Message, Code: e.Data.Code}
		return &we, true
	case stream.Cancelled:
		we := wireEvent{Status: "cancelled"}
		return &we, true
	default:
		return nil, false
	}
}

// usageCount reports the current length of the gateway's process-wide call
// ring, or 0 when no gateway is wired (tests).
func (d *Dispatcher) usageCount() int {
	if d.Deps == nil || d.Deps.Gateway == nil {
		return 0
	}
	return len(d.Deps.Gateway.Usage().Snapshot())
}

// usageSince returns the calls recorded in the ring after offset n. The ring
// is shared across concurrent executions, so the slice can include other
// runs' calls; it is an accounting summary, not an exact per-run trace.
func (d *Dispatcher) usageSince(n int) []model.LLMCall {
	if d.Deps == nil || d.Deps.Gateway == nil {
		return nil
	}
	snap := d.Deps.Gateway.Usage().Snapshot()
	if n >= len(snap) {
		return nil
	}
	return snap[n:]
}

func (d *Dispatcher) completeEvent(state *model.WorkflowState, calls []model.LLMCall) wireEvent {
	md := completeMetadata(state)
	if len(calls) > 0 {
		if md == nil {
			md = map[string]any{}
		}
		md["llm_calls"] = len(calls)
		models := map[string]bool{}
		for _, c := range calls {
			models[c.Model] = true
		}
		used := make([]string, 0, len(models))
		for m := range models {
			used = append(used, m)
		}
		sort.Strings(used)
		md["models_used"] = used
	}
	we := wireEvent{
		Status:    "complete",
		ExpiresIn: downloadExpirySeconds,
		SessionID: string(state.SessionID),
		Metadata:  md,
	}
	if state.OutputPath != "" {
		we.FilePath = state.OutputPath
		we.DownloadURL = downloadURLFor(state.OutputPath)
	}
	return we
}

// completeMetadata assembles the Complete event's metadata: document counts
// for file-producing kinds, the artifact payload itself for kinds whose
// result is structured data rather than a file.
func completeMetadata(state *model.WorkflowState) map[string]any {
	md := map[string]any{}
	if title, _ := state.Metadata["title"].(string); title != "" {
		md["title"] = title
	} else if state.StructuredContent.Title != "" {
		md["title"] = state.StructuredContent.Title
	}
	if pages, ok := state.Metadata["page_count"]; ok {
		md["pages"] = pages
	}
	if n := len(state.StructuredContent.Slides); n > 0 {
		md["slides"] = n
	}
	if len(state.StructuredContent.SectionImages) > 0 {
		generated := 0
		for _, img := range state.StructuredContent.SectionImages {
			if img.Path != "" {
				generated++
			}
		}
		md["images_generated"] = generated
	}
	if state.MindMapTree != nil {
		md["mindmap_tree"] = state.MindMapTree
	}
	if state.FAQData != nil {
		md["faq_data"] = state.FAQData
	}
	if state.PodcastAudioB64 != "" {
		md["podcast"] = map[string]any{
			"title":        state.PodcastTitle,
			"description":  state.PodcastDescription,
			"audio_base64": state.PodcastAudioB64,
			"duration_sec": state.PodcastDurationSec,
		}
	}
	if state.ImageData != nil {
		md["image"] = state.ImageData
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

func (d *Dispatcher) cacheHitEvent(ctx context.Context, artifact model.ManifestArtifact) wireEvent {
	we := wireEvent{
		Status:      "cache_hit",
		DownloadURL: artifact.DownloadURL,
		FilePath:    artifact.FilePath,
		ExpiresIn:   downloadExpirySeconds,
		CachedAt:    artifact.CreatedAt.Format(time.RFC3339),
	}
	if info, err := os.Stat(artifact.FilePath); err == nil && info.Size() <= d.Cfg.MaxInlinePreviewBytes {
		if raw, err := os.ReadFile(artifact.FilePath); err == nil {
			b64 := base64.StdEncoding.EncodeToString(raw)
			if strings.HasSuffix(artifact.FilePath, ".md") {
				we.Markdown = string(raw)
			} else {
				we.PDFBase64 = b64
			}
		}
	}
	return we
}

// persist records a successful execution's output in the cache store, never caching on
// error.
func (d *Dispatcher) persist(ctx context.Context, rr runRequest, key model.CacheKey, state *model.WorkflowState) {
	if state == nil || state.OutputPath == "" {
		return
	}
	artifact := model.ManifestArtifact{
		FilePath:    state.OutputPath,
		DownloadURL: downloadURLFor(state.OutputPath),
		ContentHash: state.StructuredContent.ContentHash,
		CreatedAt:   time.Now(),
	}
	if err := d.Cache.Put(ctx, rr.sessionID, key, rr.artifactKind, artifact); err != nil {
		d.logger().Error(ctx, "dispatch: cache put failed", "err", err)
	}
}

func downloadURLFor(path string) string {
	return "/download/" + filepath.Base(path)
}

func errorWireEvent(err error) wireEvent {
	var de *docerrors.Error
	if e, ok := err.(*docerrors.Error); ok {
		de = e
	} else {
		de = docerrors.Wrap(docerrors.Internal, "dispatch", err)
	}
	return wireEvent{Status: "error", Error: de.Message, Code: string(de.Code)}
}

// writeTerminalJSON writes a single terminal event as a plain JSON body for
// requests that never reach SSE streaming (e.g. validation failures before
// any node runs).
func writeTerminalJSON(w http.ResponseWriter, evt wireEvent) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusBadRequest
	if evt.Code == string(docerrors.Auth) {
		status = http.StatusUnauthorized
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(evt)
}

// sseWriter streams wireEvents as text/event-stream frames, flushing after
// each one so the client observes progress live.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) send(evt wireEvent) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", raw)
	s.flusher.Flush()
}

func (s *sseWriter) close() {}
