package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CacheKey is the content-addressed key for one artifact:
//
//	H(artifact_kind ‖ provider ‖ model ‖ image_model ‖ canonicalized_preferences ‖ canonical_source_digest)
type CacheKey string

// CacheKeyInput is the set of fields folded into a CacheKey.
type CacheKeyInput struct {
	ArtifactKind        ArtifactKind
	Provider            string
	Model               string
	ImageModel          string
	Preferences         map[string]string
	CanonicalSourceDigest string
}

// NewCacheKey computes the stable CacheKey for in.
func NewCacheKey(in CacheKeyInput) CacheKey {
	h := sha256.New()
	h.Write([]byte(in.ArtifactKind))
	h.Write([]byte{0})
	h.Write([]byte(in.Provider))
	h.Write([]byte{0})
	h.Write([]byte(in.Model))
	h.Write([]byte{0})
	h.Write([]byte(in.ImageModel))
	h.Write([]byte{0})
	h.Write([]byte(CanonicalizePreferences(in.Preferences)))
	h.Write([]byte{0})
	h.Write([]byte(in.CanonicalSourceDigest))
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

// CanonicalizePreferences serializes preference fields in sorted key order,
// skipping empty values and lowercasing the rest. Only empty values are
// skipped: a value equal to a preference's default is kept, so an explicit
// default and an omitted preference produce different bytes.
func CanonicalizePreferences(prefs map[string]string) string {
	keys := make([]string, 0, len(prefs))
	for k, v := range prefs {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strings.ToLower(prefs[k]))
		sb.WriteByte(';')
	}
	return sb.String()
}

// CanonicalSourceDigest folds the per-source digests of a source list in
// declaration order: H(type ‖ payload-or-bytes), folded as H(prev ‖ cur).
func CanonicalSourceDigest(sources []Source) string {
	acc := ""
	for _, s := range sources {
		h := sha256.New()
		h.Write([]byte(s.Kind))
		switch s.Kind {
		case SourceUploadedFile:
			h.Write([]byte(s.Handle))
		case SourceURL:
			h.Write([]byte(s.URL))
			h.Write([]byte(s.ParserHint))
		case SourceInlineText:
			h.Write([]byte(s.Text))
		}
		cur := hex.EncodeToString(h.Sum(nil))
		if acc == "" {
			acc = cur
			continue
		}
		fold := sha256.Sum256([]byte(acc + cur))
		acc = hex.EncodeToString(fold[:])
	}
	return acc
}

// SessionID groups state across different ArtifactKinds over the same
// source set. Either caller-supplied, or derived as H(canonical_source_digest).
type SessionID string

// DeriveSessionID derives a SessionID from a canonical source digest when the
// caller supplied none.
func DeriveSessionID(canonicalSourceDigest string) SessionID {
	sum := sha256.Sum256([]byte(canonicalSourceDigest))
	return SessionID(hex.EncodeToString(sum[:]))
}
