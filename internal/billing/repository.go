package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/andamio-erp/andamio-erp/internal/store"
)

// Collection names in the document store.
const (
	CollectionRecords = "registros"
	CollectionCycles  = "cierres"
)

// StoreRepository implements Repository on the document store.
type StoreRepository struct {
	docs store.Store
}

// NewStoreRepository constructs a StoreRepository.
func NewStoreRepository(docs store.Store) *StoreRepository {
	return &StoreRepository{docs: docs}
}

func (r *StoreRepository) InsertRecord(ctx context.Context, rec WorkRecord) (WorkRecord, error) {
	doc, err := toDoc(rec)
	if err != nil {
		return WorkRecord{}, err
	}
	delete(doc, "id")
	id, err := r.docs.Create(ctx, CollectionRecords, doc)
	if err != nil {
		return WorkRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

func (r *StoreRepository) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	err := r.docs.Update(ctx, CollectionRecords, id, store.Doc(fields))
	if errors.Is(err, store.ErrNotFound) {
		return ErrRecordNotFound
	}
	return err
}

func (r *StoreRepository) DeleteRecord(ctx context.Context, id string) error {
	return r.docs.Delete(ctx, CollectionRecords, id)
}

func (r *StoreRepository) GetRecord(ctx context.Context, id string) (WorkRecord, error) {
	doc, err := r.docs.Get(ctx, CollectionRecords, id)
	if errors.Is(err, store.ErrNotFound) {
		return WorkRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return WorkRecord{}, err
	}
	var rec WorkRecord
	if err := fromDoc(doc, &rec); err != nil {
		return WorkRecord{}, err
	}
	return rec, nil
}

func (r *StoreRepository) ListRecords(ctx context.Context) ([]WorkRecord, error) {
	docs, err := r.docs.List(ctx, CollectionRecords)
	if err != nil {
		return nil, err
	}
	records := make([]WorkRecord, 0, len(docs))
	for _, doc := range docs {
		var rec WorkRecord
		if err := fromDoc(doc, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *StoreRepository) ListPending(ctx context.Context) ([]WorkRecord, error) {
	records, err := r.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	pending := records[:0]
	for _, rec := range records {
		if rec.Status == StatusPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (r *StoreRepository) InsertCycle(ctx context.Context, c Cycle) (Cycle, error) {
	doc, err := toDoc(c)
	if err != nil {
		return Cycle{}, err
	}
	delete(doc, "id")
	id, err := r.docs.Create(ctx, CollectionCycles, doc)
	if err != nil {
		return Cycle{}, err
	}
	c.ID = id
	return c, nil
}

func (r *StoreRepository) GetCycle(ctx context.Context, id string) (Cycle, error) {
	doc, err := r.docs.Get(ctx, CollectionCycles, id)
	if errors.Is(err, store.ErrNotFound) {
		return Cycle{}, ErrCycleNotFound
	}
	if err != nil {
		return Cycle{}, err
	}
	var c Cycle
	if err := fromDoc(doc, &c); err != nil {
		return Cycle{}, err
	}
	return c, nil
}

func (r *StoreRepository) ListCycles(ctx context.Context) ([]Cycle, error) {
	docs, err := r.docs.List(ctx, CollectionCycles)
	if err != nil {
		return nil, err
	}
	cycles := make([]Cycle, 0, len(docs))
	for _, doc := range docs {
		var c Cycle
		if err := fromDoc(doc, &c); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, nil
}

// MarkInvoiced flips the given records to facturada with a cycle
// back-reference in one batched write. Callers keep len(ids) under the
// store's batch ceiling.
func (r *StoreRepository) MarkInvoiced(ctx context.Context, ids []string, cycleID string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().Format(time.RFC3339)
	ops := make([]store.Op, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, store.Op{
			Kind:       store.OpUpdate,
			Collection: CollectionRecords,
			ID:         id,
			Fields: store.Doc{
				"estado":        string(StatusInvoiced),
				"cicloId":       cycleID,
				"actualizadoEn": now,
			},
		})
	}
	return r.docs.BatchedWrite(ctx, ops)
}

func (r *StoreRepository) ReplaceCycleRecords(ctx context.Context, cycleID string, records []map[string]any) error {
	err := r.docs.Update(ctx, CollectionCycles, cycleID, store.Doc{"registros": records})
	if errors.Is(err, store.ErrNotFound) {
		return ErrCycleNotFound
	}
	return err
}

func toDoc(v any) (store.Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc store.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc(doc store.Doc, dest any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
