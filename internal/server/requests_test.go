package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDTOToModelUploadedFile(t *testing.T) {
	t.Parallel()

	dto := sourceDTO{Kind: "uploaded_file", Handle: "/tmp/x.pdf"}
	m, err := dto.toModel()
	require.NoError(t, err)
	assert.Equal(t, model.SourceUploadedFile, m.Kind)
	assert.Equal(t, "/tmp/x.pdf", m.Handle)
}

func TestSourceDTOToModelURL(t *testing.T) {
	t.Parallel()

	dto := sourceDTO{Kind: "url", URL: "https://example.com", ParserHint: "html"}
	m, err := dto.toModel()
	require.NoError(t, err)
	assert.Equal(t, model.SourceURL, m.Kind)
	assert.Equal(t, "https://example.com", m.URL)
}

func TestSourceDTOToModelUnknownKindErrors(t *testing.T) {
	t.Parallel()

	_, err := sourceDTO{Kind: "spreadsheet"}.toModel()
	assert.Error(t, err)
}

func TestGenerateRequestSourceModelsPropagatesIndexOnError(t *testing.T) {
	t.Parallel()

	req := generateRequest{Sources: []sourceDTO{
		{Kind: "inline_text", Text: "ok"},
		{Kind: "bogus"},
	}}
	_, err := req.sourceModels()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source 1")
}

func TestApiKeysFromHeadersOverridesDefaults(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/generate", nil)
	r.Header.Set("X-Gemini-Key", "header-key")

	keys := apiKeysFromHeaders(r, map[string]string{"gemini": "default-key", "openai": "default-openai"})
	assert.Equal(t, "header-key", keys["gemini"])
	assert.Equal(t, "default-openai", keys["openai"])
}

func TestApiKeysFromHeadersGoogleAliasesGemini(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/generate", nil)
	r.Header.Set("X-Google-Key", "google-key")

	keys := apiKeysFromHeaders(r, nil)
	assert.Equal(t, "google-key", keys["gemini"])
}

func TestMimeFromFilenameFallsBackToOctetStream(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/octet-stream", mimeFromFilename("noext"))
	assert.NotEmpty(t, mimeFromFilename("doc.pdf"))
}

func TestExtOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".pdf", extOf("report.final.pdf"))
	assert.Equal(t, "", extOf("noext"))
}
