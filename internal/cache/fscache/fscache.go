// Package fscache implements cache.Store over a local filesystem tree,
// laid out on disk as:
//
//	<cache_root>/<cache_key>.json             manifest entry per artifact
//	<output_root>/<session_id>/images/manifest.json
//
// Writes are atomic (write-temp-then-rename on the same filesystem); reads
// do not lock, writes take a per-session mutex.
package fscache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/telemetry"
)

// Store is the filesystem-backed Cache & Manifest Store.
type Store struct {
	outputRoot string
	cacheRoot  string
	logger     telemetry.Logger

	mu       sync.Mutex
	sessionLocks map[model.SessionID]*sync.Mutex
}

// New constructs a filesystem Store rooted at outputRoot (session artifacts)
// and cacheRoot (per-artifact CacheKey manifest entries).
func New(outputRoot, cacheRoot string, logger telemetry.Logger) *Store {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{
		outputRoot:   outputRoot,
		cacheRoot:    cacheRoot,
		logger:       logger,
		sessionLocks: make(map[model.SessionID]*sync.Mutex),
	}
}

var _ cache.Store = (*Store)(nil)

func (s *Store) lockFor(sessionID model.SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.sessionLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.sessionLocks[sessionID] = l
	}
	return l
}

func (s *Store) keyPath(key model.CacheKey) string {
	return filepath.Join(s.cacheRoot, string(key)+".json")
}

func (s *Store) sessionDir(sessionID model.SessionID) string {
	return filepath.Join(s.outputRoot, string(sessionID))
}

func (s *Store) manifestPath(sessionID model.SessionID) string {
	return filepath.Join(s.sessionDir(sessionID), "manifest.json")
}

func (s *Store) imagesDir(sessionID model.SessionID) string {
	return filepath.Join(s.sessionDir(sessionID), "images")
}

func (s *Store) imageManifestPath(sessionID model.SessionID) string {
	return filepath.Join(s.imagesDir(sessionID), "manifest.json")
}

// cacheEntry is the on-disk shape of a <cache_key>.json file: it points at
// the owning session so Get can locate the manifest entry that carries the
// authoritative file path/metadata.
type cacheEntry struct {
	SessionID model.SessionID    `json:"session_id"`
	Kind      model.ArtifactKind `json:"kind"`
}

// Get returns the manifest artifact for key if its file is present,
// non-empty, and has the expected extension for its kind.
func (s *Store) Get(_ context.Context, key model.CacheKey) (model.ManifestArtifact, error) {
	raw, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn(context.Background(), "fscache: corrupt cache entry", "key", string(key), "err", err.Error())
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	manifest, err := s.readManifest(entry.SessionID)
	if err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	artifact, ok := manifest.Artifacts[entry.Kind]
	if !ok {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	if !validArtifactFile(artifact.FilePath, entry.Kind) {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	return artifact, nil
}

func validArtifactFile(path string, kind model.ArtifactKind) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	if ext := kind.Extension(); ext != "" && filepath.Ext(path) != ext {
		return false
	}
	return true
}

// Put writes a manifest entry for kind under sessionID, atomically, and
// records a <cache_key>.json pointer so future Get calls resolve directly.
func (s *Store) Put(_ context.Context, sessionID model.SessionID, key model.CacheKey, kind model.ArtifactKind, artifact model.ManifestArtifact) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	manifest, err := s.readManifest(sessionID)
	if err != nil {
		manifest = model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}
	}
	updated := manifest.WithArtifact(kind, artifact)
	if err := s.writeManifest(sessionID, updated); err != nil {
		return fmt.Errorf("fscache: put artifact %s: %w", kind, err)
	}

	entry := cacheEntry{SessionID: sessionID, Kind: kind}
	raw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("fscache: marshal cache entry: %w", err)
	}
	if err := atomicWrite(s.keyPath(key), raw); err != nil {
		return fmt.Errorf("fscache: write cache entry: %w", err)
	}
	return nil
}

// Manifest returns the current session manifest.
func (s *Store) Manifest(_ context.Context, sessionID model.SessionID) (model.Manifest, error) {
	return s.readManifest(sessionID)
}

func (s *Store) readManifest(sessionID model.SessionID) (model.Manifest, error) {
	raw, err := os.ReadFile(s.manifestPath(sessionID))
	if err != nil {
		return model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}, err
	}
	var m model.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}, err
	}
	if m.Artifacts == nil {
		m.Artifacts = map[model.ArtifactKind]model.ManifestArtifact{}
	}
	return m, nil
}

func (s *Store) writeManifest(sessionID model.SessionID, m model.Manifest) error {
	if err := os.MkdirAll(s.sessionDir(sessionID), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.manifestPath(sessionID), raw)
}

// LoadImages reads the ImageManifest for sessionID; if its ContentHash and
// ImageStyle both match the caller's expectation, it resolves each section's
// image file by slugged title with the newest numeric suffix winning.
// Any mismatch returns (nil, false, nil): not an error, just
// a cue to regenerate.
func (s *Store) LoadImages(_ context.Context, sessionID model.SessionID, expectedHash, expectedStyle string) (map[int]model.SectionImage, bool, error) {
	raw, err := os.ReadFile(s.imageManifestPath(sessionID))
	if err != nil {
		return nil, false, nil
	}
	var im model.ImageManifest
	if err := json.Unmarshal(raw, &im); err != nil {
		return nil, false, nil
	}
	if im.ContentHash != expectedHash || im.ImageStyle != expectedStyle {
		return nil, false, nil
	}

	files, err := os.ReadDir(s.imagesDir(sessionID))
	if err != nil {
		return nil, false, nil
	}
	resolved := make(map[int]model.SectionImage, len(im.Sections))
	for _, sec := range im.Sections {
		path := cache.ResolveNewestImage(files, s.imagesDir(sessionID), sec.Title)
		if path == "" {
			continue
		}
		resolved[sec.ID] = model.SectionImage{
			SectionID:    sec.ID,
			SectionTitle: sec.Title,
			ImageType:    im.ImageTypes[sec.ID],
			Path:         path,
			Description:  im.Descriptions[sec.ID],
		}
	}
	return resolved, true, nil
}

// SaveImageManifest atomically rewrites the ImageManifest for sessionID.
func (s *Store) SaveImageManifest(_ context.Context, sessionID model.SessionID, manifest model.ImageManifest) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.imagesDir(sessionID), 0o755); err != nil {
		return fmt.Errorf("fscache: mkdir images dir: %w", err)
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("fscache: marshal image manifest: %w", err)
	}
	return atomicWrite(s.imageManifestPath(sessionID), raw)
}

// atomicWrite writes data to a temp file in dir(path) then renames it onto
// path, so readers never observe a partial write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
