// Package rediscache implements cache.Store over Redis, for deployments
// that run several docgen-server replicas sharing one cache namespace.
//
// Session output files (rendered PDFs, PPTX, audio) still live on a shared
// filesystem or object store mounted by every replica; Redis here only holds
// the manifest/cache-key metadata.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/model"
)

// Store is the Redis-backed Cache & Manifest Store.
type Store struct {
	rdb        *redis.Client
	namespace  string
	outputRoot string
}

// New constructs a Store using rdb, namespacing all keys under namespace
// (e.g. "docgen") so multiple logical deployments can share one Redis
// instance. outputRoot is the shared filesystem root where rendered files
// live; Redis tracks only their metadata.
func New(rdb *redis.Client, namespace, outputRoot string) *Store {
	return &Store{rdb: rdb, namespace: namespace, outputRoot: outputRoot}
}

var _ cache.Store = (*Store)(nil)

func (s *Store) cacheKeyKey(key model.CacheKey) string {
	return fmt.Sprintf("%s:cachekey:%s", s.namespace, key)
}

func (s *Store) manifestKey(sessionID model.SessionID) string {
	return fmt.Sprintf("%s:manifest:%s", s.namespace, sessionID)
}

func (s *Store) imageManifestKey(sessionID model.SessionID) string {
	return fmt.Sprintf("%s:imagemanifest:%s", s.namespace, sessionID)
}

type cacheEntry struct {
	SessionID model.SessionID    `json:"session_id"`
	Kind      model.ArtifactKind `json:"kind"`
}

// Get resolves key to a manifest artifact, validating the referenced file
// the same way fscache does.
func (s *Store) Get(ctx context.Context, key model.CacheKey) (model.ManifestArtifact, error) {
	raw, err := s.rdb.Get(ctx, s.cacheKeyKey(key)).Bytes()
	if err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	manifest, err := s.Manifest(ctx, entry.SessionID)
	if err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	artifact, ok := manifest.Artifacts[entry.Kind]
	if !ok || !validArtifactFile(artifact.FilePath, entry.Kind) {
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

// Put atomically updates the session manifest in Redis via a WATCH/transaction
// and records a cache-key pointer.
func (s *Store) Put(ctx context.Context, sessionID model.SessionID, key model.CacheKey, kind model.ArtifactKind, artifact model.ManifestArtifact) error {
	mkey := s.manifestKey(sessionID)
	txf := func(tx *redis.Tx) error {
		manifest, err := s.readManifestTx(ctx, tx, mkey)
		if err != nil {
			manifest = model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}
		}
		updated := manifest.WithArtifact(kind, artifact)
		raw, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, mkey, raw, 0)
			return nil
		})
		return err
	}
	if err := s.rdb.Watch(ctx, txf, mkey); err != nil {
		return fmt.Errorf("rediscache: put artifact %s: %w", kind, err)
	}
	entry := cacheEntry{SessionID: sessionID, Kind: kind}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("rediscache: marshal cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.cacheKeyKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("rediscache: write cache entry: %w", err)
	}
	return nil
}

// Manifest returns the current session manifest.
func (s *Store) Manifest(ctx context.Context, sessionID model.SessionID) (model.Manifest, error) {
	raw, err := s.rdb.Get(ctx, s.manifestKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}, nil
		}
		return model.Manifest{}, err
	}
	var m model.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Manifest{}, err
	}
	if m.Artifacts == nil {
		m.Artifacts = map[model.ArtifactKind]model.ManifestArtifact{}
	}
	return m, nil
}

func (s *Store) readManifestTx(ctx context.Context, tx *redis.Tx, key string) (model.Manifest, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		return model.Manifest{}, err
	}
	var m model.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Manifest{}, err
	}
	return m, nil
}

// LoadImages returns nil,false if the stored ImageManifest doesn't match
// expectedHash/expectedStyle. File resolution still happens
// against outputRoot's images directory, since image bytes are not stored in
// Redis.
func (s *Store) LoadImages(ctx context.Context, sessionID model.SessionID, expectedHash, expectedStyle string) (map[int]model.SectionImage, bool, error) {
	raw, err := s.rdb.Get(ctx, s.imageManifestKey(sessionID)).Bytes()
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
	dir := filepath.Join(s.outputRoot, string(sessionID), "images")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, nil
	}
	resolved := make(map[int]model.SectionImage, len(im.Sections))
	for _, sec := range im.Sections {
		path := cache.ResolveNewestImage(entries, dir, sec.Title)
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

// SaveImageManifest rewrites the ImageManifest for sessionID.
func (s *Store) SaveImageManifest(ctx context.Context, sessionID model.SessionID, manifest model.ImageManifest) error {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("rediscache: marshal image manifest: %w", err)
	}
	return s.rdb.Set(ctx, s.imageManifestKey(sessionID), raw, 0).Err()
}
