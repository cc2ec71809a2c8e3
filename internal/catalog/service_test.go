package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andamio-erp/andamio-erp/internal/store"
)

type memoryConfigStore struct {
	docs map[string]store.Doc
	puts int
}

func newMemoryConfigStore() *memoryConfigStore {
	return &memoryConfigStore{docs: make(map[string]store.Doc)}
}

func (m *memoryConfigStore) Get(_ context.Context, collection, id string) (store.Doc, error) {
	doc, ok := m.docs[collection+"/"+id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (m *memoryConfigStore) Put(_ context.Context, collection, id string, doc store.Doc) error {
	m.puts++
	m.docs[collection+"/"+id] = doc
	return nil
}

func TestGetMissingDocument(t *testing.T) {
	svc := NewService(newMemoryConfigStore())

	lists, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Zero(t, lists.Version)
	require.Empty(t, lists.Companies)
}

func TestAddBumpsVersion(t *testing.T) {
	svc := NewService(newMemoryConfigStore())
	ctx := context.Background()

	lists, err := svc.Add(ctx, ListCompanies, "Acme Construcciones")
	require.NoError(t, err)
	require.Equal(t, int64(1), lists.Version)
	require.Equal(t, []string{"Acme Construcciones"}, lists.Companies)

	lists, err = svc.Add(ctx, ListSupervisors, "Marta")
	require.NoError(t, err)
	require.Equal(t, int64(2), lists.Version)
	require.Equal(t, []string{"Marta"}, lists.Supervisors)
}

func TestAddDuplicateIsNoOp(t *testing.T) {
	docs := newMemoryConfigStore()
	svc := NewService(docs)
	ctx := context.Background()

	_, err := svc.Add(ctx, ListZones, "Central Norte")
	require.NoError(t, err)
	writes := docs.puts

	lists, err := svc.Add(ctx, ListZones, "Central Norte")
	require.NoError(t, err)
	require.Equal(t, int64(1), lists.Version)
	require.Equal(t, writes, docs.puts, "duplicate add must not write")
}

func TestAddValidation(t *testing.T) {
	svc := NewService(newMemoryConfigStore())
	ctx := context.Background()

	_, err := svc.Add(ctx, ListKind("maquinaria"), "grua")
	require.ErrorIs(t, err, ErrUnknownList)

	_, err = svc.Add(ctx, ListContracts, "   ")
	require.ErrorIs(t, err, ErrEmptyValue)
}

func TestRemove(t *testing.T) {
	svc := NewService(newMemoryConfigStore())
	ctx := context.Background()

	_, err := svc.Add(ctx, ListCompanies, "Acme")
	require.NoError(t, err)
	_, err = svc.Add(ctx, ListCompanies, "Norte Obras")
	require.NoError(t, err)

	lists, err := svc.Remove(ctx, ListCompanies, "Acme")
	require.NoError(t, err)
	require.Equal(t, []string{"Norte Obras"}, lists.Companies)
	require.Equal(t, int64(3), lists.Version)

	// Removing an absent value changes nothing.
	lists, err = svc.Remove(ctx, ListCompanies, "Acme")
	require.NoError(t, err)
	require.Equal(t, int64(3), lists.Version)
}

func TestAddRereadsBeforeWrite(t *testing.T) {
	docs := newMemoryConfigStore()
	svc := NewService(docs)
	ctx := context.Background()

	_, err := svc.Add(ctx, ListCompanies, "Acme")
	require.NoError(t, err)

	// Another client writes behind our back; the next mutation must build on
	// the stored state, not on anything cached.
	other := NewService(docs)
	_, err = other.Add(ctx, ListCompanies, "Norte Obras")
	require.NoError(t, err)

	lists, err := svc.Add(ctx, ListCompanies, "Sur Reformas")
	require.NoError(t, err)
	require.Equal(t, []string{"Acme", "Norte Obras", "Sur Reformas"}, lists.Companies)
	require.Equal(t, int64(3), lists.Version)
}
