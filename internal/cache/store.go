// Package cache defines the Cache & Manifest Store contract and its backends: an atomic-write filesystem store (the default),
// and optional Redis/MongoDB-backed stores for multi-replica deployments
// that need to share manifests across processes.
package cache

import (
	"context"
	"errors"

	"github.com/goadesign/docgen-engine/internal/model"
)

// ErrMiss is returned by Get when no valid artifact exists for the key.
// A hit requires the referenced file to be present,
// non-empty, and have the expected extension; anything else is a miss, not
// an error.
var ErrMiss = errors.New("cache: miss")

// Store is the cache and manifest store contract. All methods are
// non-fatal to callers: Get failures are treated as misses; Put failures are
// returned so the caller can mark the current run uncached but still return
// the result to the client.
type Store interface {
	// Get looks up a prior artifact by CacheKey, returning ErrMiss if none is
	// valid.
	Get(ctx context.Context, key model.CacheKey) (model.ManifestArtifact, error)

	// Put records a newly produced artifact under key, atomically updating
	// the owning session's Manifest.
	Put(ctx context.Context, sessionID model.SessionID, key model.CacheKey, kind model.ArtifactKind, artifact model.ManifestArtifact) error

	// Manifest returns the current session manifest, or a zero Manifest if
	// none exists yet.
	Manifest(ctx context.Context, sessionID model.SessionID) (model.Manifest, error)

	// LoadImages returns the section images recorded for sessionID if its
	// ImageManifest matches expectedHash and expectedStyle;
	// otherwise it returns (nil, false) so callers regenerate.
	LoadImages(ctx context.Context, sessionID model.SessionID, expectedHash, expectedStyle string) (map[int]model.SectionImage, bool, error)

	// SaveImageManifest atomically rewrites the ImageManifest for a session.
	SaveImageManifest(ctx context.Context, sessionID model.SessionID, manifest model.ImageManifest) error
}
