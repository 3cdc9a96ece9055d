package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
)

// maxUploadBytes bounds /upload's multipart body.
const maxUploadBytes = 32 << 20

func (d *Dispatcher) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTerminalJSON(w, errorWireEvent(docerrors.Wrap(docerrors.UnsupportedSource, "dispatch", err)))
		return
	}
	d.serve(w, r, req, "")
}

func (d *Dispatcher) handleGeneratePodcast(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTerminalJSON(w, errorWireEvent(docerrors.Wrap(docerrors.UnsupportedSource, "dispatch", err)))
		return
	}
	d.serve(w, r, req, model.ArtifactPodcast)
}

func (d *Dispatcher) handleGenerateMindMap(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTerminalJSON(w, errorWireEvent(docerrors.Wrap(docerrors.UnsupportedSource, "dispatch", err)))
		return
	}
	d.serve(w, r, req, model.ArtifactMindMap)
}

func (d *Dispatcher) handleGenerateFAQ(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTerminalJSON(w, errorWireEvent(docerrors.Wrap(docerrors.UnsupportedSource, "dispatch", err)))
		return
	}
	d.serve(w, r, req, model.ArtifactFAQ)
}

// uploadResponse is returned by /upload; file_id round-trips directly as a
// sourceDTO.handle for a subsequent uploaded_file source.
type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func (d *Dispatcher) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	dir := filepath.Join(d.Cfg.OutputRoot, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	dest := filepath.Join(dir, uuid.NewString()+filepath.Ext(header.Filename))
	out, err := os.Create(dest)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	defer out.Close()
	n, err := io.Copy(out, file)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileID:   dest,
		Filename: header.Filename,
		Size:     n,
		MimeType: mimeFromFilename(header.Filename),
	})
}

// handleDownload serves a previously produced artifact by its basename under
// OutputRoot's session directories, rejecting any path component that would
// escape the root.
func (d *Dispatcher) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || strings.Contains(name, "..") {
		httpError(w, http.StatusBadRequest, errBadDownloadPath)
		return
	}
	path, err := d.resolveDownload(name)
	if err != nil {
		httpError(w, http.StatusNotFound, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (d *Dispatcher) resolveDownload(name string) (string, error) {
	var found string
	err := filepath.Walk(filepath.Join(d.Cfg.OutputRoot, "sessions"), func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if !info.IsDir() && filepath.Base(path) == name {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", errDownloadNotFound
	}
	return found, nil
}

func (d *Dispatcher) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": d.Cfg.Version})
}

// sessionResponse is the /session/{session_id} body: the manifest's summary
// fields without the per-artifact file paths.
type sessionResponse struct {
	SessionID        string               `json:"session_id"`
	CreatedAt        string               `json:"created_at"`
	OutputsGenerated []model.ArtifactKind `json:"outputs_generated"`
	LastGenerated    model.ArtifactKind   `json:"last_generated,omitempty"`
	LastGeneratedAt  string               `json:"last_generated_at"`
}

func (d *Dispatcher) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionID(chi.URLParam(r, "session_id"))
	manifest, err := d.Cache.Manifest(r.Context(), sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	resp := sessionResponse{
		SessionID:        string(sessionID),
		OutputsGenerated: manifest.OutputsGenerated,
	}
	if !manifest.CreatedAt.IsZero() {
		resp.CreatedAt = manifest.CreatedAt.Format(time.RFC3339)
	}
	if !manifest.LastGeneratedAt.IsZero() {
		resp.LastGeneratedAt = manifest.LastGeneratedAt.Format(time.RFC3339)
	}
	if n := len(manifest.OutputsGenerated); n > 0 {
		resp.LastGenerated = manifest.OutputsGenerated[n-1]
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errBadDownloadPath = httpErrf("invalid download path")
var errDownloadNotFound = httpErrf("artifact not found")

type httpErr string

func (e httpErr) Error() string { return string(e) }
func httpErrf(msg string) error { return httpErr(msg) }
