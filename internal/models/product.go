package models

import (
	"path"
	"sort"
	"strings"
)

// ProductRef identifies a product resolved by exact SKU lookup.
type ProductRef struct {
	ID         int64   `json:"id"`
	SKU        string  `json:"sku"`
	VariantIDs []int64 `json:"variant_ids,omitempty"`
}

// ImageOrigin distinguishes Bling-hosted images from externally linked ones.
type ImageOrigin string

const (
	OriginInternal ImageOrigin = "internal"
	OriginExternal ImageOrigin = "external"
)

// ImageOwner names the entity an image hangs off: the parent product or a
// specific variant.
type ImageOwner struct {
	Parent    bool  `json:"parent"`
	VariantID int64 `json:"variant_id,omitempty"`
}

// ImageRecord is one discovered product image. Identity is the URL with its
// query string stripped.
type ImageRecord struct {
	URL    string      `json:"url"`
	Origin ImageOrigin `json:"origin"`
	Owner  ImageOwner  `json:"owner"`
}

// Key returns the identity of the record: the URL without its query string.
func (r ImageRecord) Key() string {
	return StripQuery(r.URL)
}

// FileName derives the local file name for the image: the final path segment
// of the URL, query string stripped.
func (r ImageRecord) FileName() string {
	return path.Base(StripQuery(r.URL))
}

// StripQuery removes any trailing query string (and fragment) from a URL.
func StripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

// ImageSet accumulates image records with de-duplication by stripped URL.
type ImageSet struct {
	byKey map[string]ImageRecord
}

// NewImageSet returns an empty set.
func NewImageSet() *ImageSet {
	return &ImageSet{byKey: make(map[string]ImageRecord)}
}

// Add inserts a record unless an image with the same stripped URL is already
// present. Records with an empty URL are rejected.
func (s *ImageSet) Add(r ImageRecord) bool {
	if strings.TrimSpace(r.URL) == "" {
		return false
	}
	key := r.Key()
	if _, dup := s.byKey[key]; dup {
		return false
	}
	s.byKey[key] = r
	return true
}

// Len returns the number of distinct images.
func (s *ImageSet) Len() int {
	return len(s.byKey)
}

// Records returns the images ordered lexicographically by stripped URL, so
// the result is deterministic regardless of discovery order.
func (s *ImageSet) Records() []ImageRecord {
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ImageRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.byKey[k])
	}
	return out
}
