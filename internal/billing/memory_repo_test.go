package billing

import (
	"context"
	"errors"
	"fmt"
)

var errMarkFailed = errors.New("batch write refused")

// memoryRepo is an in-memory Repository used across the package tests.
type memoryRepo struct {
	records     map[string]WorkRecord
	cycles      map[string]Cycle
	recordOrder []string
	cycleOrder  []string
	nextID      int

	markCalls  [][]string
	failOnCall int // 1-based MarkInvoiced call that fails; 0 = never
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[string]WorkRecord),
		cycles:  make(map[string]Cycle),
	}
}

func (m *memoryRepo) InsertRecord(_ context.Context, r WorkRecord) (WorkRecord, error) {
	m.nextID++
	r.ID = fmt.Sprintf("r%d", m.nextID)
	m.records[r.ID] = r
	m.recordOrder = append(m.recordOrder, r.ID)
	return r, nil
}

func (m *memoryRepo) UpdateRecord(_ context.Context, id string, fields map[string]any) error {
	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	doc, err := toDoc(rec)
	if err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	var updated WorkRecord
	if err := fromDoc(doc, &updated); err != nil {
		return err
	}
	m.records[id] = updated
	return nil
}

func (m *memoryRepo) DeleteRecord(_ context.Context, id string) error {
	delete(m.records, id)
	for i, rid := range m.recordOrder {
		if rid == id {
			m.recordOrder = append(m.recordOrder[:i], m.recordOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryRepo) GetRecord(_ context.Context, id string) (WorkRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return WorkRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (m *memoryRepo) ListRecords(_ context.Context) ([]WorkRecord, error) {
	out := make([]WorkRecord, 0, len(m.recordOrder))
	for _, id := range m.recordOrder {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *memoryRepo) ListPending(ctx context.Context) ([]WorkRecord, error) {
	all, _ := m.ListRecords(ctx)
	var pending []WorkRecord
	for _, r := range all {
		if r.Status == StatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (m *memoryRepo) InsertCycle(_ context.Context, c Cycle) (Cycle, error) {
	m.nextID++
	c.ID = fmt.Sprintf("c%d", m.nextID)
	m.cycles[c.ID] = c
	m.cycleOrder = append(m.cycleOrder, c.ID)
	return c, nil
}

func (m *memoryRepo) GetCycle(_ context.Context, id string) (Cycle, error) {
	c, ok := m.cycles[id]
	if !ok {
		return Cycle{}, ErrCycleNotFound
	}
	return c, nil
}

func (m *memoryRepo) ListCycles(_ context.Context) ([]Cycle, error) {
	out := make([]Cycle, 0, len(m.cycleOrder))
	for _, id := range m.cycleOrder {
		out = append(out, m.cycles[id])
	}
	return out, nil
}

func (m *memoryRepo) MarkInvoiced(ctx context.Context, ids []string, cycleID string) error {
	m.markCalls = append(m.markCalls, append([]string(nil), ids...))
	if m.failOnCall > 0 && len(m.markCalls) == m.failOnCall {
		return errMarkFailed
	}
	for _, id := range ids {
		if err := m.UpdateRecord(ctx, id, map[string]any{
			"estado":  string(StatusInvoiced),
			"cicloId": cycleID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryRepo) ReplaceCycleRecords(_ context.Context, cycleID string, records []map[string]any) error {
	c, ok := m.cycles[cycleID]
	if !ok {
		return ErrCycleNotFound
	}
	c.Records = records
	m.cycles[cycleID] = c
	return nil
}
