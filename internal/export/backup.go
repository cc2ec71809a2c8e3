package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andamio-erp/andamio-erp/internal/billing"
	"github.com/andamio-erp/andamio-erp/internal/store"
)

// Backup serialises the record set as a flat JSON array of sanitized
// documents, the interchange shape imports understand.
func Backup(records []billing.WorkRecord) ([]byte, error) {
	docs := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		docs = append(docs, billing.Sanitize(rec))
	}
	return json.MarshalIndent(docs, "", "  ")
}

// ImportResult summarises what an import touched.
type ImportResult struct {
	Inserted int `json:"insertados"`
	Updated  int `json:"actualizados"`
}

// ImportStore is the slice of the document store imports need.
type ImportStore interface {
	Create(ctx context.Context, collection string, doc store.Doc) (string, error)
	Get(ctx context.Context, collection, id string) (store.Doc, error)
	Put(ctx context.Context, collection, id string, doc store.Doc) error
}

// Import upserts a backup array record-by-record: documents carrying an
// identity replace the stored copy, the rest are inserted as new records.
func Import(ctx context.Context, docs ImportStore, raw []byte) (ImportResult, error) {
	var entries []store.Doc
	if err := json.Unmarshal(raw, &entries); err != nil {
		return ImportResult{}, fmt.Errorf("export: backup is not a record array: %w", err)
	}
	var result ImportResult
	for i, entry := range entries {
		id := entry.ID()
		if id == "" {
			if _, err := docs.Create(ctx, billing.CollectionRecords, entry); err != nil {
				return result, fmt.Errorf("export: import entry %d: %w", i, err)
			}
			result.Inserted++
			continue
		}
		_, err := docs.Get(ctx, billing.CollectionRecords, id)
		switch {
		case err == nil:
			result.Updated++
		case errors.Is(err, store.ErrNotFound):
			result.Inserted++
		default:
			return result, fmt.Errorf("export: import entry %d: %w", i, err)
		}
		if err := docs.Put(ctx, billing.CollectionRecords, id, entry); err != nil {
			return result, fmt.Errorf("export: import entry %d: %w", i, err)
		}
	}
	return result, nil
}
