package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/andamio-erp/andamio-erp/internal/store"
)

// Where the configuration document lives.
const (
	CollectionConfig = "configuracion"
	listsDocID       = "listas"
)

// ConfigStore is the slice of the document store the catalog needs.
type ConfigStore interface {
	Get(ctx context.Context, collection, id string) (store.Doc, error)
	Put(ctx context.Context, collection, id string, doc store.Doc) error
}

// Service owns the configuration lists.
type Service struct {
	docs ConfigStore
}

// NewService constructs a Service.
func NewService(docs ConfigStore) *Service {
	return &Service{docs: docs}
}

// Get loads the current lists. A missing document yields empty lists at
// version zero.
func (s *Service) Get(ctx context.Context) (Lists, error) {
	doc, err := s.docs.Get(ctx, CollectionConfig, listsDocID)
	if errors.Is(err, store.ErrNotFound) {
		return Lists{}, nil
	}
	if err != nil {
		return Lists{}, err
	}
	var lists Lists
	if err := docToLists(doc, &lists); err != nil {
		return Lists{}, err
	}
	return lists, nil
}

// Add appends value to the named list. The current document is re-read
// immediately before writing; adding an entry that is already present is a
// no-op and does not bump the version.
func (s *Service) Add(ctx context.Context, kind ListKind, value string) (Lists, error) {
	if !kind.Valid() {
		return Lists{}, ErrUnknownList
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Lists{}, ErrEmptyValue
	}
	lists, err := s.Get(ctx)
	if err != nil {
		return Lists{}, err
	}
	target := lists.of(kind)
	for _, existing := range *target {
		if existing == value {
			return lists, nil
		}
	}
	*target = append(*target, value)
	lists.Version++
	if err := s.save(ctx, lists); err != nil {
		return Lists{}, err
	}
	return lists, nil
}

// Remove deletes value from the named list; removing an absent entry is a
// no-op.
func (s *Service) Remove(ctx context.Context, kind ListKind, value string) (Lists, error) {
	if !kind.Valid() {
		return Lists{}, ErrUnknownList
	}
	lists, err := s.Get(ctx)
	if err != nil {
		return Lists{}, err
	}
	target := lists.of(kind)
	found := false
	kept := (*target)[:0]
	for _, existing := range *target {
		if existing == value {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return lists, nil
	}
	*target = kept
	lists.Version++
	if err := s.save(ctx, lists); err != nil {
		return Lists{}, err
	}
	return lists, nil
}

func (s *Service) save(ctx context.Context, lists Lists) error {
	doc, err := listsToDoc(lists)
	if err != nil {
		return err
	}
	return s.docs.Put(ctx, CollectionConfig, listsDocID, doc)
}
