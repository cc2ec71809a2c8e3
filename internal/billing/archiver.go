package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/andamio-erp/andamio-erp/internal/shared"
)

// closeBatchLimit bounds the status-flip batches issued during a cycle
// close. The store's hard ceiling is 500 operations per batch; 450 leaves
// headroom.
const closeBatchLimit = 450

// PartialCloseError reports a close where the cycle snapshot was persisted
// but one of the status-flip batches failed. The records counted in
// Remaining are still pending and reference no cycle; reconciliation is
// manual, there is no rollback of the cycle write.
type PartialCloseError struct {
	CycleID   string
	Remaining int
	Err       error
}

func (e *PartialCloseError) Error() string {
	return fmt.Sprintf("billing: cycle %s closed but %d records were not updated: %v", e.CycleID, e.Remaining, e.Err)
}

func (e *PartialCloseError) Unwrap() error { return e.Err }

// Archiver performs the month-end close and post-close invoice patches.
type Archiver struct {
	repo   Repository
	audit  *shared.AuditLogger
	cache  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver constructs an Archiver. audit and cache may be nil.
func NewArchiver(repo Repository, audit *shared.AuditLogger, cache Invalidator, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		repo:   repo,
		audit:  audit,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (a *Archiver) WithNow(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// CloseCycle archives every pending record into a new cycle and flips each
// one to facturada with a back-reference to the cycle. A nil cycle with a
// nil error means there was nothing to close.
func (a *Archiver) CloseCycle(ctx context.Context, operatorID string) (*Cycle, error) {
	pending, err := a.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sortNewestFirst(pending)

	snapshots := make([]map[string]any, 0, len(pending))
	for _, r := range pending {
		snapshots = append(snapshots, Sanitize(r))
	}

	rep := Aggregate(pending, GroupNone, Filter{})
	now := a.now()
	cycle := Cycle{
		Label:     "Cierre " + humanDate(now),
		Operator:  operatorID,
		Count:     len(pending),
		Records:   snapshots,
		Totals:    rep.GrandTotal,
		CreatedAt: now,
	}
	cycle, err = a.repo.InsertCycle(ctx, cycle)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.ID)
	}
	for start := 0; start < len(ids); start += closeBatchLimit {
		end := start + closeBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		if err := a.repo.MarkInvoiced(ctx, ids[start:end], cycle.ID); err != nil {
			return &cycle, &PartialCloseError{CycleID: cycle.ID, Remaining: len(ids) - start, Err: err}
		}
	}

	a.recordAudit(ctx, "cycle.close", cycle.ID, map[string]any{"total": cycle.Count, "operador": operatorID})
	a.bump(ctx)
	a.logger.Info("cycle closed",
		slog.String("cycle_id", cycle.ID),
		slog.Int("records", cycle.Count),
		slog.String("operator", operatorID))
	return &cycle, nil
}

// SetInvoiceNumber patches the invoice number on the live record and on the
// matching entry inside the cycle's frozen snapshot list. Both writes are
// issued; if the snapshot patch fails after the live update succeeded, the
// two copies diverge until the caller retries.
func (a *Archiver) SetInvoiceNumber(ctx context.Context, cycleID, recordID, number string) error {
	cycle, err := a.repo.GetCycle(ctx, cycleID)
	if err != nil {
		return err
	}
	idx := -1
	for i, snap := range cycle.Records {
		if id, _ := snap["id"].(string); id == recordID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSnapshotNotFound
	}

	now := a.now().Format(time.RFC3339)
	if err := a.repo.UpdateRecord(ctx, recordID, map[string]any{
		"numeroFactura": number,
		"actualizadoEn": now,
	}); err != nil {
		return err
	}

	patched := make([]map[string]any, len(cycle.Records))
	copy(patched, cycle.Records)
	snap := make(map[string]any, len(patched[idx])+1)
	for k, v := range patched[idx] {
		snap[k] = v
	}
	snap["numeroFactura"] = number
	patched[idx] = snap
	if err := a.repo.ReplaceCycleRecords(ctx, cycleID, patched); err != nil {
		return fmt.Errorf("billing: record updated but cycle snapshot patch failed: %w", err)
	}

	a.recordAudit(ctx, "cycle.invoice_number", cycleID, map[string]any{"registro": recordID, "numero": number})
	a.bump(ctx)
	return nil
}

func (a *Archiver) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if a.audit == nil {
		return
	}
	log := shared.AuditLog{
		OperatorID: shared.OperatorFromContext(ctx),
		Action:     action,
		Entity:     "cycle",
		EntityID:   entityID,
		Meta:       meta,
		At:         a.now(),
	}
	if err := a.audit.Record(ctx, log); err != nil {
		a.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (a *Archiver) bump(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Bump(ctx); err != nil {
		a.logger.Warn("cache bump", slog.Any("error", err))
	}
}

// Sanitize flattens a record into the plain document shape embedded in a
// cycle and written to backups: empty optional fields are dropped and every
// timestamp is a plain ISO-8601 string, never a store-native value.
func Sanitize(r WorkRecord) map[string]any {
	raw, err := json.Marshal(r)
	if err != nil {
		return map[string]any{"id": r.ID}
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]any{"id": r.ID}
	}
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			delete(doc, k)
		case string:
			if val == "" || val == "0001-01-01T00:00:00Z" {
				delete(doc, k)
			}
		}
	}
	return doc
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// humanDate renders t the way the close labels always did: "2 de enero de 2026".
func humanDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
