// Package store exposes the document-store contract the billing core is
// written against: keyed JSON documents grouped in named collections, partial
// updates, bounded batched writes, and snapshot subscriptions.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Doc is one schemaless document as stored in a collection.
type Doc map[string]any

// ID returns the document identity, or "" when the document has none yet.
func (d Doc) ID() string {
	if v, ok := d["id"].(string); ok {
		return v
	}
	return ""
}

// OpKind enumerates batched write operations.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is a single entry in a batched write.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	// Fields holds the full document for OpCreate and the partial field set
	// for OpUpdate; it is ignored for OpDelete.
	Fields Doc
}

// MaxBatchOps is the hard per-call ceiling the store imposes on BatchedWrite.
const MaxBatchOps = 500

// ErrBatchTooLarge is returned when a batched write exceeds MaxBatchOps.
var ErrBatchTooLarge = fmt.Errorf("store: batch exceeds %d operations", MaxBatchOps)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("store: document not found")

// ErrPermission indicates the store's access rules rejected the operation;
// retrying the same request will not succeed.
var ErrPermission = errors.New("store: permission denied")

// Store is the persistence contract. Writes are durable when the call
// returns; a batched write is applied all-or-nothing.
type Store interface {
	Create(ctx context.Context, collection string, doc Doc) (string, error)
	// Put writes a full document under a caller-chosen identity, creating or
	// replacing it.
	Put(ctx context.Context, collection, id string, doc Doc) error
	Update(ctx context.Context, collection, id string, fields Doc) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Doc, error)
	List(ctx context.Context, collection string) ([]Doc, error)
	BatchedWrite(ctx context.Context, ops []Op) error
	// Subscribe delivers full-collection snapshots: one immediately, then one
	// after every observed change, until ctx is cancelled. Delivery is
	// at-least-once; consumers must tolerate echoes of their own writes.
	Subscribe(ctx context.Context, collection string) (<-chan []Doc, error)
}
