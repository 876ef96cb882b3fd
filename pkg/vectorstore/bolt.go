package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var bucketCollections = []byte("_collections")

// BoltStore persists collections in a single bbolt file, one bucket per
// collection. Search is a brute-force scan inside a read transaction, so
// concurrent upserts never expose a half-written item.
type BoltStore struct {
	db *bbolt.DB
}

type boltCollectionMeta struct {
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

type boltRecord struct {
	Seq      uint64            `json:"seq"`
	Text     string            `json:"text"`
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func collectionBucket(name string) []byte {
	return []byte("c:" + name)
}

func (s *BoltStore) Upsert(ctx context.Context, collection string, item Item) error {
	if err := validateItem(collection, item); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := ensureBoltCollection(tx, collection, len(item.Vector))
		if err != nil {
			return err
		}
		return putBoltRecord(b, item)
	})
}

// ReplaceDocument runs in a single bolt write transaction; any failure rolls
// the whole document back.
func (s *BoltStore) ReplaceDocument(ctx context.Context, collection, docID string, items []Item) error {
	dimension, keep, err := validateDocument(collection, docID, items)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := ensureBoltCollection(tx, collection, dimension)
		if err != nil {
			return err
		}

		var stale [][]byte
		c := b.Cursor()
		prefix := []byte(docID)
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			id := string(k)
			if _, ok := keep[id]; !ok && InDocument(docID, id) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for _, item := range items {
			if err := putBoltRecord(b, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// ensureBoltCollection records the collection dimension on first write and
// returns its item bucket.
func ensureBoltCollection(tx *bbolt.Tx, collection string, dimension int) (*bbolt.Bucket, error) {
	meta := tx.Bucket(bucketCollections)

	var cm boltCollectionMeta
	if raw := meta.Get([]byte(collection)); raw != nil {
		if err := json.Unmarshal(raw, &cm); err != nil {
			return nil, fmt.Errorf("corrupt collection meta %s: %w", collection, err)
		}
	} else {
		cm = boltCollectionMeta{Dimension: dimension, CreatedAt: time.Now().UTC()}
		raw, err := json.Marshal(cm)
		if err != nil {
			return nil, err
		}
		if err := meta.Put([]byte(collection), raw); err != nil {
			return nil, err
		}
	}
	if cm.Dimension != dimension {
		return nil, dimensionError(cm.Dimension, dimension)
	}

	return tx.CreateBucketIfNotExists(collectionBucket(collection))
}

// putBoltRecord keeps the sequence of an existing key.
func putBoltRecord(b *bbolt.Bucket, item Item) error {
	rec := boltRecord{Text: item.Text, Vector: item.Vector, Metadata: item.Metadata}
	if raw := b.Get([]byte(item.ID)); raw != nil {
		var existing boltRecord
		if err := json.Unmarshal(raw, &existing); err == nil {
			rec.Seq = existing.Seq
		}
	}
	if rec.Seq == 0 {
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.Seq = seq
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put([]byte(item.ID), data)
}

func (s *BoltStore) Search(ctx context.Context, collection string, query []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Match
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketCollections).Get([]byte(collection))
		if raw == nil {
			return ErrCollectionNotFound
		}
		var cm boltCollectionMeta
		if err := json.Unmarshal(raw, &cm); err != nil {
			return fmt.Errorf("corrupt collection meta %s: %w", collection, err)
		}
		if err := checkDimension(cm.Dimension, query); err != nil {
			return err
		}
		if k <= 0 {
			out = []Match{}
			return nil
		}

		b := tx.Bucket(collectionBucket(collection))
		if b == nil {
			out = []Match{}
			return nil
		}

		var cands []candidate
		err := b.ForEach(func(key, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip corrupted entries
			}
			cands = append(cands, candidate{
				seq: int64(rec.Seq),
				match: Match{
					ID:       string(key),
					Text:     rec.Text,
					Metadata: copyMetadata(rec.Metadata),
					Distance: CosineDistance(query, rec.Vector),
				},
			})
			return nil
		})
		if err != nil {
			return err
		}
		out = rank(cands, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Count(_ context.Context, collection string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(collectionBucket(collection)); b != nil {
			count = b.Stats().KeyN
		}
		return nil
	})
	return count, err
}

func (s *BoltStore) Collections(_ context.Context) ([]CollectionStat, error) {
	var stats []CollectionStat
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(name, raw []byte) error {
			var cm boltCollectionMeta
			if err := json.Unmarshal(raw, &cm); err != nil {
				return nil
			}
			stat := CollectionStat{Name: string(name), Dimension: cm.Dimension}
			if b := tx.Bucket(collectionBucket(string(name))); b != nil {
				stat.Count = b.Stats().KeyN
			}
			stats = append(stats, stat)
			return nil
		})
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
