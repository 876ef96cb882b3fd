package vectorstore

import (
	"context"
	"fmt"
	"strconv"
)

// DocumentEncoder turns document text into vectors.
type DocumentEncoder interface {
	EncodeDocument(ctx context.Context, text string) ([]float32, error)
	// EncodeDocuments keeps input order.
	EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingestor embeds text before handing it to a Store, giving callers the
// upsert(collection, id, text, metadata) shape.
type Ingestor struct {
	store   Store
	encoder DocumentEncoder
}

func NewIngestor(store Store, encoder DocumentEncoder) *Ingestor {
	return &Ingestor{store: store, encoder: encoder}
}

func (i *Ingestor) Upsert(ctx context.Context, collection, id, text string, metadata map[string]string) error {
	if text == "" {
		return fmt.Errorf("%w: empty text for %s", ErrInvalidItem, id)
	}
	vector, err := i.encoder.EncodeDocument(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s/%s: %w", collection, id, err)
	}
	return i.store.Upsert(ctx, collection, Item{ID: id, Text: text, Vector: vector, Metadata: metadata})
}

// UpsertDocument embeds every chunk first and then replaces the stored
// document, so a failed embedding leaves the previous version in place.
// Chunk i is stored as DocumentItemID(docID, i).
func (i *Ingestor) UpsertDocument(ctx context.Context, collection, docID string, chunks []string, metadata map[string]string) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document %s has no text", ErrInvalidItem, docID)
	}
	for n, chunk := range chunks {
		if chunk == "" {
			return fmt.Errorf("%w: empty chunk %d of %s", ErrInvalidItem, n, docID)
		}
	}

	vectors, err := i.encoder.EncodeDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed %s/%s: %w", collection, docID, err)
	}

	items := make([]Item, len(chunks))
	for n, chunk := range chunks {
		md := copyMetadata(metadata)
		md["document_id"] = docID
		md["chunk"] = strconv.Itoa(n)
		items[n] = Item{ID: DocumentItemID(docID, n), Text: chunk, Vector: vectors[n], Metadata: md}
	}
	return i.store.ReplaceDocument(ctx, collection, docID, items)
}

func (i *Ingestor) Store() Store {
	return i.store
}
