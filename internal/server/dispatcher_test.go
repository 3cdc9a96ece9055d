package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/config"
	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher() *Dispatcher {
	return &Dispatcher{
		Cfg: config.Config{
			DefaultProvider:       "gemini",
			DefaultModel:          "gemini-2.5-pro",
			DefaultImageModel:     "gpt-image-1",
			MaxRetries:            3,
			MaxInlinePreviewBytes: 8 << 20,
			GeminiAPIKey:          "env-gemini-key",
		},
	}
}

func TestResolveBindsDefaultsAndDerivesSessionID(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{
		Sources:      []sourceDTO{{Kind: "inline_text", Text: "hello"}},
		ArtifactKind: "article_pdf",
	}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)

	rr, err := d.resolve(r, req, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", rr.provider)
	assert.Equal(t, "gemini-2.5-pro", rr.model)
	assert.Equal(t, "gpt-image-1", rr.imageModel)
	assert.Equal(t, 3, rr.maxRetries)
	assert.NotEmpty(t, rr.sessionID)
	assert.Equal(t, "env-gemini-key", rr.apiKeys["gemini"])
}

func TestResolveUsesForcedKindOverRequestArtifactKind(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{Sources: []sourceDTO{{Kind: "inline_text", Text: "x"}}}
	r := httptest.NewRequest(http.MethodPost, "/podcast", nil)

	rr, err := d.resolve(r, req, model.ArtifactPodcast)
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactPodcast, rr.artifactKind)
}

func TestResolveRejectsMissingArtifactKind(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{Sources: []sourceDTO{{Kind: "inline_text", Text: "x"}}}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)

	_, err := d.resolve(r, req, "")
	require.Error(t, err)
	var de *docerrors.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, docerrors.UnsupportedSource, de.Code)
}

func TestResolveRejectsMissingSourcesWhenIngestRequired(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{ArtifactKind: "article_pdf"}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)

	_, err := d.resolve(r, req, "")
	require.Error(t, err)
	var de *docerrors.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, docerrors.UnsupportedSource, de.Code)
}

func TestResolveAllowsMissingSourcesForImageGenerateKind(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{ArtifactKind: "image_generate"}
	r := httptest.NewRequest(http.MethodPost, "/image/generate", nil)

	_, err := d.resolve(r, req, "")
	assert.NoError(t, err)
}

func TestResolveReturnsAuthErrorWhenProviderKeyMissing(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	d.Cfg.GeminiAPIKey = ""
	req := generateRequest{ArtifactKind: "article_pdf", Sources: []sourceDTO{{Kind: "inline_text", Text: "x"}}}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)

	_, err := d.resolve(r, req, "")
	require.Error(t, err)
	var de *docerrors.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, docerrors.Auth, de.Code)
}

func TestResolveHeaderKeyOverridesConfigDefault(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{ArtifactKind: "article_pdf", Sources: []sourceDTO{{Kind: "inline_text", Text: "x"}}}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)
	r.Header.Set("X-Gemini-Key", "header-key")

	rr, err := d.resolve(r, req, "")
	require.NoError(t, err)
	assert.Equal(t, "header-key", rr.apiKeys["gemini"])
}

func TestResolveRejectsUnknownSourceKind(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{ArtifactKind: "article_pdf", Sources: []sourceDTO{{Kind: "bogus"}}}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)

	_, err := d.resolve(r, req, "")
	require.Error(t, err)
	var de *docerrors.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, docerrors.UnsupportedSource, de.Code)
}

func TestResolvePreservesExplicitSessionIDAndMaxRetries(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	req := generateRequest{
		ArtifactKind: "article_pdf",
		Sources:      []sourceDTO{{Kind: "inline_text", Text: "x"}},
		SessionID:    "fixed-session",
		MaxRetries:   7,
	}
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)

	rr, err := d.resolve(r, req, "")
	require.NoError(t, err)
	assert.Equal(t, model.SessionID("fixed-session"), rr.sessionID)
	assert.Equal(t, 7, rr.maxRetries)
}

func TestCacheKeyIsDeterministicForEquivalentRequests(t *testing.T) {
	t.Parallel()

	rr1 := runRequest{
		sources:      []model.Source{{Kind: model.SourceInlineText, Text: "same"}},
		artifactKind: model.ArtifactArticlePDF,
		provider:     "gemini",
		model:        "gemini-2.5-pro",
		preferences:  map[string]string{"tone": "formal"},
	}
	rr2 := rr1
	assert.Equal(t, rr1.cacheKey(), rr2.cacheKey())
}

func TestCacheKeyDiffersWhenSourcesDiffer(t *testing.T) {
	t.Parallel()

	base := runRequest{
		artifactKind: model.ArtifactArticlePDF,
		provider:     "gemini",
		model:        "gemini-2.5-pro",
	}
	a := base
	a.sources = []model.Source{{Kind: model.SourceInlineText, Text: "one"}}
	b := base
	b.sources = []model.Source{{Kind: model.SourceInlineText, Text: "two"}}

	assert.NotEqual(t, a.cacheKey(), b.cacheKey())
}

func TestTranslateNodeEndProducesNonTerminalProgress(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	evt := stream.NodeEnd{Base: stream.NewBase(stream.EventNodeEnd, "s1", nil), Data: stream.NodeEndPayload{
		Node: "transform_content", StepNumber: 2, TotalSteps: 4,
	}}

	we, terminal := d.translate(evt)
	require.NotNil(t, we)
	assert.False(t, terminal)
	assert.Equal(t, "transforming", we.Status)
	assert.Equal(t, "transform_content", we.Message)
}

func TestTranslateRetryProducesNonTerminalMessage(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	evt := stream.Retry{Base: stream.NewBase(stream.EventRetry, "s1", nil), Data: stream.RetryPayload{
		FromNode: "validate_output", ToNode: "generate_output", Attempt: 1, MaxRetries: 3,
	}}

	we, terminal := d.translate(evt)
	require.NotNil(t, we)
	assert.False(t, terminal)
	assert.Contains(t, we.Message, "generate_output")
}

func TestTranslateCompleteIsTerminalWithDownloadAndMetadata(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	evt := stream.Complete{Base: stream.NewBase(stream.EventComplete, "s1", nil), Data: stream.CompletePayload{
		FilePath: "/out/doc.pdf", DownloadURL: "/download/doc.pdf", Metadata: map[string]any{"pages": 3},
	}}

	we, terminal := d.translate(evt)
	require.NotNil(t, we)
	assert.True(t, terminal)
	assert.Equal(t, "complete", we.Status)
	assert.Equal(t, "/out/doc.pdf", we.FilePath)
	assert.Equal(t, "/download/doc.pdf", we.DownloadURL)
	assert.Equal(t, "s1", we.SessionID)
	assert.Equal(t, 3, we.Metadata["pages"])
}

func TestTranslateCacheHitIsTerminalAndInlinesContentWhenPresent(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	content := "base64content"
	evt := stream.CacheHit{Base: stream.NewBase(stream.EventCacheHit, "s1", nil), Data: stream.CacheHitPayload{
		FilePath: "/out/doc.pdf", DownloadURL: "/download/doc.pdf", ContentB64: &content,
	}}

	we, terminal := d.translate(evt)
	require.NotNil(t, we)
	assert.True(t, terminal)
	assert.Equal(t, "cache_hit", we.Status)
	assert.Equal(t, content, we.PDFBase64)
}

func TestTranslateErrorIsTerminalWithCodeAndMessage(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	evt := stream.Error{Base: stream.NewBase(stream.EventError, "s1", nil), Data: stream.ErrorPayload{
		Code: "GENERATION_FAILED", Message: "boom",
	}}

	we, terminal := d.translate(evt)
	require.NotNil(t, we)
	assert.True(t, terminal)
	assert.Equal(t, "error", we.Status)
	assert.Equal(t, "boom", we.Error)
	assert.Equal(t, "GENERATION_FAILED", we.Code)
}

func TestTranslateCancelledIsTerminal(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	evt := stream.Cancelled{Base: stream.NewBase(stream.EventCancelled, "s1", nil)}

	we, terminal := d.translate(evt)
	require.NotNil(t, we)
	assert.True(t, terminal)
	assert.Equal(t, "cancelled", we.Status)
}

func TestTranslateUnknownEventTypeReturnsNil(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	evt := stream.NodeStart{Base: stream.NewBase(stream.EventNodeStart, "s1", nil), Data: stream.NodeStartPayload{Node: "ingest_sources"}}

	we, terminal := d.translate(evt)
	assert.Nil(t, we)
	assert.False(t, terminal)
}

func TestCompleteEventBuildsDownloadURLFromOutputPath(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	state := model.NewWorkflowState()
	state.SessionID = "sess1"
	state.OutputPath = "/tmp/out/doc.pdf"

	we := d.completeEvent(state, nil)
	assert.Equal(t, "complete", we.Status)
	assert.Equal(t, "/download/doc.pdf", we.DownloadURL)
	assert.Equal(t, "/tmp/out/doc.pdf", we.FilePath)
	assert.Equal(t, "sess1", we.SessionID)
}

func TestCompleteEventIncludesUsageSummary(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	state := model.NewWorkflowState()
	state.OutputPath = "/tmp/out/doc.pdf"
	calls := []model.LLMCall{{Model: "m1"}, {Model: "m0"}, {Model: "m1"}}

	we := d.completeEvent(state, calls)
	assert.Equal(t, 3, we.Metadata["llm_calls"])
	assert.Equal(t, []string{"m0", "m1"}, we.Metadata["models_used"])
}

func TestCacheHitEventInlinesMarkdownForMdFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# hello"), 0o644))

	d := testDispatcher()
	artifact := model.ManifestArtifact{FilePath: path, DownloadURL: "/download/doc.md", CreatedAt: time.Unix(100, 0)}

	we := d.cacheHitEvent(context.Background(), artifact)
	assert.Equal(t, "cache_hit", we.Status)
	assert.Equal(t, "# hello", we.Markdown)
	assert.Empty(t, we.PDFBase64)
	assert.NotEmpty(t, we.CachedAt)
}

func TestCacheHitEventInlinesBase64ForNonMarkdownFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	d := testDispatcher()
	artifact := model.ManifestArtifact{FilePath: path, DownloadURL: "/download/doc.pdf", CreatedAt: time.Unix(100, 0)}

	we := d.cacheHitEvent(context.Background(), artifact)
	assert.NotEmpty(t, we.PDFBase64)
	assert.Empty(t, we.Markdown)
}

func TestCacheHitEventSkipsInlineWhenFileExceedsMaxPreviewBytes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	d := testDispatcher()
	d.Cfg.MaxInlinePreviewBytes = 5
	artifact := model.ManifestArtifact{FilePath: path, DownloadURL: "/download/doc.pdf", CreatedAt: time.Unix(100, 0)}

	we := d.cacheHitEvent(context.Background(), artifact)
	assert.Empty(t, we.PDFBase64)
	assert.Empty(t, we.Markdown)
}

func TestCacheHitEventToleratesMissingFile(t *testing.T) {
	t.Parallel()

	d := testDispatcher()
	artifact := model.ManifestArtifact{FilePath: filepath.Join(t.TempDir(), "missing.pdf"), CreatedAt: time.Unix(1, 0)}

	we := d.cacheHitEvent(context.Background(), artifact)
	assert.Empty(t, we.PDFBase64)
}

type fakeCacheStore struct {
	putCalls  int
	putErr    error
	lastKind  model.ArtifactKind
	lastKey   model.CacheKey
	lastSID   model.SessionID
	getResult model.ManifestArtifact
	getErr    error
}

func (f *fakeCacheStore) Get(ctx context.Context, key model.CacheKey) (model.ManifestArtifact, error) {
	if f.getErr != nil {
		return model.ManifestArtifact{}, f.getErr
	}
	return f.getResult, nil
}

func (f *fakeCacheStore) Put(ctx context.Context, sessionID model.SessionID, key model.CacheKey, kind model.ArtifactKind, artifact model.ManifestArtifact) error {
	f.putCalls++
	f.lastSID = sessionID
	f.lastKey = key
	f.lastKind = kind
	return f.putErr
}

func (f *fakeCacheStore) Manifest(ctx context.Context, sessionID model.SessionID) (model.Manifest, error) {
	return model.Manifest{}, nil
}

func (f *fakeCacheStore) LoadImages(ctx context.Context, sessionID model.SessionID, expectedHash, expectedStyle string) (map[int]model.SectionImage, bool, error) {
	return nil, false, nil
}

func (f *fakeCacheStore) SaveImageManifest(ctx context.Context, sessionID model.SessionID, manifest model.ImageManifest) error {
	return nil
}

var _ cache.Store = (*fakeCacheStore)(nil)

func TestPersistWritesArtifactOnSuccessfulOutputPath(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{}
	d := &Dispatcher{Cache: store}
	rr := runRequest{sessionID: "sess1", artifactKind: model.ArtifactArticlePDF}
	state := model.NewWorkflowState()
	state.OutputPath = "/tmp/out/doc.pdf"

	d.persist(context.Background(), rr, rr.cacheKey(), state)
	assert.Equal(t, 1, store.putCalls)
	assert.Equal(t, model.SessionID("sess1"), store.lastSID)
	assert.Equal(t, model.ArtifactArticlePDF, store.lastKind)
}

func TestPersistSkipsWhenOutputPathEmpty(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{}
	d := &Dispatcher{Cache: store}
	rr := runRequest{sessionID: "sess1", artifactKind: model.ArtifactArticlePDF}
	state := model.NewWorkflowState()

	d.persist(context.Background(), rr, rr.cacheKey(), state)
	assert.Equal(t, 0, store.putCalls)
}

func TestPersistSkipsWhenStateNil(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{}
	d := &Dispatcher{Cache: store}
	rr := runRequest{sessionID: "sess1", artifactKind: model.ArtifactArticlePDF}

	d.persist(context.Background(), rr, rr.cacheKey(), nil)
	assert.Equal(t, 0, store.putCalls)
}

func TestPersistDoesNotPanicWhenPutFails(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{putErr: errors.New("disk full")}
	d := &Dispatcher{Cache: store}
	rr := runRequest{sessionID: "sess1", artifactKind: model.ArtifactArticlePDF}
	state := model.NewWorkflowState()
	state.OutputPath = "/tmp/out/doc.pdf"

	assert.NotPanics(t, func() {
		d.persist(context.Background(), rr, rr.cacheKey(), state)
	})
}

func TestDownloadURLForUsesBaseName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/download/doc.pdf", downloadURLFor("/var/data/sess1/doc.pdf"))
}

func TestErrorWireEventPassesThroughDocerrorsCodeAndMessage(t *testing.T) {
	t.Parallel()

	err := docerrors.New(docerrors.Auth, "dispatch", "missing key")
	we := errorWireEvent(err)
	assert.Equal(t, "error", we.Status)
	assert.Equal(t, string(docerrors.Auth), we.Code)
	assert.Equal(t, "missing key", we.Error)
}

func TestErrorWireEventWrapsGenericErrorAsInternal(t *testing.T) {
	t.Parallel()

	we := errorWireEvent(errors.New("kaboom"))
	assert.Equal(t, string(docerrors.Internal), we.Code)
	assert.Contains(t, we.Error, "kaboom")
}

func TestWriteTerminalJSONUsesUnauthorizedForAuthCode(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeTerminalJSON(rec, wireEvent{Status: "error", Code: string(docerrors.Auth), Error: "no key"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteTerminalJSONUsesBadRequestForOtherCodes(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeTerminalJSON(rec, wireEvent{Status: "error", Code: string(docerrors.UnsupportedSource), Error: "bad source"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
