// Package mongocache implements cache.Store over MongoDB, using
// replace-with-upsert writes for durable, multi-replica-safe manifest
// storage. Rendered artifact files still live on a shared filesystem/object
// store; MongoDB here holds manifest and cache-key documents only.
package mongocache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/model"
)

// Store is the MongoDB-backed Cache & Manifest Store.
type Store struct {
	manifests  *mongo.Collection
	cacheKeys  *mongo.Collection
	images     *mongo.Collection
	outputRoot string
}

// New constructs a Store using three collections from a connected client:
// manifests (one doc per session), cacheKeys (one doc per CacheKey pointer),
// and images (one doc per session's ImageManifest).
func New(manifests, cacheKeys, images *mongo.Collection, outputRoot string) *Store {
	return &Store{manifests: manifests, cacheKeys: cacheKeys, images: images, outputRoot: outputRoot}
}

var _ cache.Store = (*Store)(nil)

type cacheKeyDoc struct {
	ID        string             `bson:"_id"`
	SessionID model.SessionID    `bson:"session_id"`
	Kind      model.ArtifactKind `bson:"kind"`
}

type manifestDoc struct {
	ID               string                               `bson:"_id"`
	CreatedAt        time.Time                             `bson:"created_at"`
	LastGeneratedAt  time.Time                             `bson:"last_generated_at"`
	OutputsGenerated []model.ArtifactKind                  `bson:"outputs_generated"`
	Artifacts        map[string]model.ManifestArtifact     `bson:"artifacts"`
}

func toManifestDoc(sessionID model.SessionID, m model.Manifest) manifestDoc {
	artifacts := make(map[string]model.ManifestArtifact, len(m.Artifacts))
	for k, v := range m.Artifacts {
		artifacts[string(k)] = v
	}
	return manifestDoc{
		ID:               string(sessionID),
		CreatedAt:        m.CreatedAt,
		LastGeneratedAt:  m.LastGeneratedAt,
		OutputsGenerated: m.OutputsGenerated,
		Artifacts:        artifacts,
	}
}

func fromManifestDoc(d manifestDoc) model.Manifest {
	artifacts := make(map[model.ArtifactKind]model.ManifestArtifact, len(d.Artifacts))
	for k, v := range d.Artifacts {
		artifacts[model.ArtifactKind(k)] = v
	}
	return model.Manifest{
		CreatedAt:        d.CreatedAt,
		LastGeneratedAt:  d.LastGeneratedAt,
		OutputsGenerated: d.OutputsGenerated,
		Artifacts:        artifacts,
	}
}

// Get resolves key to a manifest artifact, validating the referenced file.
func (s *Store) Get(ctx context.Context, key model.CacheKey) (model.ManifestArtifact, error) {
	var doc cacheKeyDoc
	if err := s.cacheKeys.FindOne(ctx, bson.M{"_id": string(key)}).Decode(&doc); err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	manifest, err := s.Manifest(ctx, doc.SessionID)
	if err != nil {
		return model.ManifestArtifact{}, cache.ErrMiss
	}
	artifact, ok := manifest.Artifacts[doc.Kind]
	if !ok || !validArtifactFile(artifact.FilePath, doc.Kind) {
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

// Put upserts the session manifest document and a cache-key pointer.
func (s *Store) Put(ctx context.Context, sessionID model.SessionID, key model.CacheKey, kind model.ArtifactKind, artifact model.ManifestArtifact) error {
	manifest, err := s.Manifest(ctx, sessionID)
	if err != nil {
		manifest = model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}
	}
	updated := manifest.WithArtifact(kind, artifact)

	opts := options.Replace().SetUpsert(true)
	if _, err := s.manifests.ReplaceOne(ctx, bson.M{"_id": string(sessionID)}, toManifestDoc(sessionID, updated), opts); err != nil {
		return fmt.Errorf("mongocache: put artifact %s: %w", kind, err)
	}
	doc := cacheKeyDoc{ID: string(key), SessionID: sessionID, Kind: kind}
	if _, err := s.cacheKeys.ReplaceOne(ctx, bson.M{"_id": string(key)}, doc, opts); err != nil {
		return fmt.Errorf("mongocache: write cache key: %w", err)
	}
	return nil
}

// Manifest returns the current session manifest.
func (s *Store) Manifest(ctx context.Context, sessionID model.SessionID) (model.Manifest, error) {
	var doc manifestDoc
	err := s.manifests.FindOne(ctx, bson.M{"_id": string(sessionID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Manifest{Artifacts: map[model.ArtifactKind]model.ManifestArtifact{}}, nil
		}
		return model.Manifest{}, err
	}
	return fromManifestDoc(doc), nil
}

type imageManifestDoc struct {
	ID           string                       `bson:"_id"`
	ContentHash  string                       `bson:"content_hash"`
	ImageStyle   string                       `bson:"image_style"`
	Sections     []model.ImageManifestSection `bson:"sections"`
	Descriptions map[string]string            `bson:"descriptions"`
	ImageTypes   map[string]model.ImageType   `bson:"image_types"`
}

// LoadImages returns nil,false if the stored ImageManifest doesn't match
// expectedHash/expectedStyle.
func (s *Store) LoadImages(ctx context.Context, sessionID model.SessionID, expectedHash, expectedStyle string) (map[int]model.SectionImage, bool, error) {
	var doc imageManifestDoc
	if err := s.images.FindOne(ctx, bson.M{"_id": string(sessionID)}).Decode(&doc); err != nil {
		return nil, false, nil
	}
	if doc.ContentHash != expectedHash || doc.ImageStyle != expectedStyle {
		return nil, false, nil
	}
	dir := filepath.Join(s.outputRoot, string(sessionID), "images")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, nil
	}
	resolved := make(map[int]model.SectionImage, len(doc.Sections))
	for _, sec := range doc.Sections {
		path := cache.ResolveNewestImage(entries, dir, sec.Title)
		if path == "" {
			continue
		}
		resolved[sec.ID] = model.SectionImage{
			SectionID:    sec.ID,
			SectionTitle: sec.Title,
			ImageType:    doc.ImageTypes[fmt.Sprint(sec.ID)],
			Path:         path,
			Description:  doc.Descriptions[fmt.Sprint(sec.ID)],
		}
	}
	return resolved, true, nil
}

// SaveImageManifest upserts the ImageManifest document for sessionID.
func (s *Store) SaveImageManifest(ctx context.Context, sessionID model.SessionID, manifest model.ImageManifest) error {
	descriptions := make(map[string]string, len(manifest.Descriptions))
	for k, v := range manifest.Descriptions {
		descriptions[fmt.Sprint(k)] = v
	}
	types := make(map[string]model.ImageType, len(manifest.ImageTypes))
	for k, v := range manifest.ImageTypes {
		types[fmt.Sprint(k)] = v
	}
	doc := imageManifestDoc{
		ID:           string(sessionID),
		ContentHash:  manifest.ContentHash,
		ImageStyle:   manifest.ImageStyle,
		Sections:     manifest.Sections,
		Descriptions: descriptions,
		ImageTypes:   types,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.images.ReplaceOne(ctx, bson.M{"_id": string(sessionID)}, doc, opts)
	return err
}
