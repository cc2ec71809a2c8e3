package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedPending(t *testing.T, repo *memoryRepo, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rec, err := repo.InsertRecord(context.Background(), WorkRecord{
			Code:    fmt.Sprintf("EXP-%04d", i+1),
			Company: "Acme Construcciones",
			Base:    dec("100"),
			Date:    day("2026-03-01"),
			Status:  StatusPending,
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestCloseCycleNothingPending(t *testing.T) {
	repo := newMemoryRepo()
	archiver := NewArchiver(repo, nil, nil, nil)

	cycle, err := archiver.CloseCycle(context.Background(), "op-1")
	require.NoError(t, err)
	require.Nil(t, cycle)
	require.Empty(t, repo.cycles)
	require.Empty(t, repo.markCalls)
}

func TestCloseCycleArchivesPending(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	_, err := repo.InsertRecord(ctx, WorkRecord{Code: "EXP-0001", Company: "Acme", Base: dec("1000"), HasSurcharge: true, Date: day("2026-03-10"), Status: StatusPending})
	require.NoError(t, err)
	_, err = repo.InsertRecord(ctx, WorkRecord{Code: "EXP-0002", Company: "Norte", Base: dec("500"), Units: 10, Date: day("2026-03-05"), Status: StatusPending})
	require.NoError(t, err)
	collected, err := repo.InsertRecord(ctx, WorkRecord{Code: "EXP-0003", Company: "Norte", Base: dec("50"), Date: day("2026-01-01"), Status: StatusCollected})
	require.NoError(t, err)

	archiver := NewArchiver(repo, nil, nil, nil)
	archiver.WithNow(func() time.Time { return day("2026-03-31") })

	cycle, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, cycle)
	require.Equal(t, "Cierre 31 de marzo de 2026", cycle.Label)
	require.Equal(t, "op-1", cycle.Operator)
	require.Equal(t, 2, cycle.Count)
	require.Len(t, cycle.Records, 2)
	require.True(t, cycle.Totals.Gross.Equal(dec("1880")))

	// Every previously pending record is now invoiced and back-references
	// the cycle; the collected one is untouched.
	for _, rec := range repo.records {
		if rec.ID == collected.ID {
			require.Equal(t, StatusCollected, rec.Status)
			require.Empty(t, rec.CycleID)
			continue
		}
		require.Equal(t, StatusInvoiced, rec.Status)
		require.Equal(t, cycle.ID, rec.CycleID)
	}
}

func TestCloseCycleSnapshotsAreSanitized(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	_, err := repo.InsertRecord(ctx, WorkRecord{
		Code: "EXP-0001", Company: "Acme", Base: dec("100"),
		Date: day("2026-03-10"), Status: StatusPending,
		CreatedAt: day("2026-03-10"), UpdatedAt: day("2026-03-10"),
	})
	require.NoError(t, err)

	archiver := NewArchiver(repo, nil, nil, nil)
	cycle, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)
	require.Len(t, cycle.Records, 1)

	snap := cycle.Records[0]
	// Empty optionals were stripped, timestamps are plain strings.
	_, hasNotes := snap["notas"]
	require.False(t, hasNotes)
	_, hasInvoice := snap["numeroFactura"]
	require.False(t, hasInvoice)
	fecha, ok := snap["fecha"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339, fecha)
	require.NoError(t, err)
}

func TestCloseCycleIdempotentRetry(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	seedPending(t, repo, 3)
	archiver := NewArchiver(repo, nil, nil, nil)

	first, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)
	require.Nil(t, second)
	require.Len(t, repo.cycles, 1)
}

func TestCloseCycleBatchPartition(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	ids := seedPending(t, repo, 1000)
	archiver := NewArchiver(repo, nil, nil, nil)

	cycle, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, cycle)

	// ceil(1000/450) commits, all within the bound.
	require.Len(t, repo.markCalls, 3)
	require.Len(t, repo.markCalls[0], 450)
	require.Len(t, repo.markCalls[1], 450)
	require.Len(t, repo.markCalls[2], 100)

	seen := map[string]bool{}
	for _, chunk := range repo.markCalls {
		for _, id := range chunk {
			require.False(t, seen[id], "id %s flipped twice", id)
			seen[id] = true
		}
	}
	require.Len(t, seen, len(ids))
	for _, id := range ids {
		require.True(t, seen[id], "id %s never flipped", id)
	}
}

func TestCloseCyclePartialBatchFailure(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	seedPending(t, repo, 600)
	repo.failOnCall = 2
	archiver := NewArchiver(repo, nil, nil, nil)

	cycle, err := archiver.CloseCycle(ctx, "op-1")
	require.Error(t, err)
	require.NotNil(t, cycle)

	var partial *PartialCloseError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, cycle.ID, partial.CycleID)
	require.Equal(t, 150, partial.Remaining)
	require.ErrorIs(t, err, errMarkFailed)

	// The cycle write stands: no compensating rollback.
	require.Len(t, repo.cycles, 1)

	var pending, invoiced int
	for _, rec := range repo.records {
		switch rec.Status {
		case StatusPending:
			pending++
		case StatusInvoiced:
			invoiced++
		}
	}
	require.Equal(t, 450, invoiced)
	require.Equal(t, 150, pending)
}

func TestSetInvoiceNumber(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	rec, err := repo.InsertRecord(ctx, WorkRecord{Code: "EXP-0001", Company: "Acme", Base: dec("100"), Date: day("2026-03-10"), Status: StatusPending})
	require.NoError(t, err)

	archiver := NewArchiver(repo, nil, nil, nil)
	cycle, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)

	before := repo.cycles[cycle.ID].Records[0]
	require.NoError(t, archiver.SetInvoiceNumber(ctx, cycle.ID, rec.ID, "F-2026-042"))

	live, err := repo.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "F-2026-042", live.InvoiceNumber)

	after := repo.cycles[cycle.ID].Records[0]
	require.Equal(t, "F-2026-042", after["numeroFactura"])
	// Nothing else in the snapshot moved.
	for k, v := range before {
		if k == "numeroFactura" {
			continue
		}
		require.Equal(t, v, after[k], "snapshot field %s changed", k)
	}
}

func TestSetInvoiceNumberUnknownRecord(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	seedPending(t, repo, 1)

	archiver := NewArchiver(repo, nil, nil, nil)
	cycle, err := archiver.CloseCycle(ctx, "op-1")
	require.NoError(t, err)

	err = archiver.SetInvoiceNumber(ctx, cycle.ID, "missing", "F-1")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}
