// Package vectorstore keeps named collections of embedded knowledge items and
// answers nearest-neighbour queries per collection.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"elearning-chatbot-be/internal/pkg/apperr"
)

var (
	ErrCollectionNotFound = fmt.Errorf("%w: collection", apperr.ErrNotFound)
	ErrDimensionMismatch  = fmt.Errorf("%w: vector dimension mismatch", apperr.ErrInvalid)
	ErrInvalidItem        = fmt.Errorf("%w: knowledge item", apperr.ErrInvalid)
)

type Item struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]string
}

type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	// Distance is cosine distance, 0 for identical direction.
	Distance float64
}

type CollectionStat struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
}

type Store interface {
	// Upsert writes or replaces the item with the same id. The collection is
	// created on first write and fixes its dimension.
	Upsert(ctx context.Context, collection string, item Item) error
	// Search returns up to k items by ascending distance, ties by insertion
	// order. Unknown collections fail with ErrCollectionNotFound.
	Search(ctx context.Context, collection string, query []float32, k int) ([]Match, error)
	// ReplaceDocument swaps every item of document docID for items in one
	// atomic step. Members of the old document missing from items are
	// removed; members kept keep their insertion order.
	ReplaceDocument(ctx context.Context, collection, docID string, items []Item) error
	// Count is 0 for unknown collections.
	Count(ctx context.Context, collection string) (int, error)
	Collections(ctx context.Context) ([]CollectionStat, error)
	Close() error
}

func validateItem(collection string, item Item) error {
	if collection == "" {
		return fmt.Errorf("%w: empty collection name", ErrInvalidItem)
	}
	if item.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if len(item.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", ErrInvalidItem, item.ID)
	}
	return nil
}

// DocumentItemID names the i-th chunk of a document.
func DocumentItemID(docID string, i int) string {
	return fmt.Sprintf("%s#%d", docID, i)
}

// InDocument reports whether id belongs to document docID, either as the
// bare id or as one of its chunks.
func InDocument(docID, id string) bool {
	return id == docID || strings.HasPrefix(id, docID+"#")
}

// validateDocument checks items before any write so a rejected document
// leaves the store untouched. It returns the shared dimension and the ids.
func validateDocument(collection, docID string, items []Item) (int, map[string]struct{}, error) {
	if docID == "" {
		return 0, nil, fmt.Errorf("%w: empty document id", ErrInvalidItem)
	}
	if len(items) == 0 {
		return 0, nil, fmt.Errorf("%w: document %s has no items", ErrInvalidItem, docID)
	}
	dimension := len(items[0].Vector)
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := validateItem(collection, item); err != nil {
			return 0, nil, err
		}
		if !InDocument(docID, item.ID) {
			return 0, nil, fmt.Errorf("%w: %s is not part of document %s", ErrInvalidItem, item.ID, docID)
		}
		if err := checkDimension(dimension, item.Vector); err != nil {
			return 0, nil, err
		}
		ids[item.ID] = struct{}{}
	}
	return dimension, ids, nil
}

func checkDimension(expected int, vector []float32) error {
	if len(vector) != expected {
		return dimensionError(expected, len(vector))
	}
	return nil
}

func dimensionError(expected, got int) error {
	return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, expected, got)
}

// CosineDistance is 1 - cos(a, b), clamped to [0, 2]. A zero vector is
// treated as orthogonal to everything.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	return math.Min(2, math.Max(0, d))
}

type candidate struct {
	seq   int64
	match Match
}

// rank sorts by distance then sequence and keeps the first k.
func rank(cands []candidate, k int) []Match {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].match.Distance != cands[j].match.Distance {
			return cands[i].match.Distance < cands[j].match.Distance
		}
		return cands[i].seq < cands[j].seq
	})
	if k > len(cands) {
		k = len(cands)
	}
	out := make([]Match, k)
	for i := 0; i < k; i++ {
		out[i] = cands[i].match
	}
	return out
}

func copyVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
