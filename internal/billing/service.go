package billing

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/andamio-erp/andamio-erp/internal/shared"
)

// Repository defines data access for records and cycles.
type Repository interface {
	InsertRecord(ctx context.Context, r WorkRecord) (WorkRecord, error)
	UpdateRecord(ctx context.Context, id string, fields map[string]any) error
	DeleteRecord(ctx context.Context, id string) error
	GetRecord(ctx context.Context, id string) (WorkRecord, error)
	ListRecords(ctx context.Context) ([]WorkRecord, error)
	ListPending(ctx context.Context) ([]WorkRecord, error)

	InsertCycle(ctx context.Context, c Cycle) (Cycle, error)
	GetCycle(ctx context.Context, id string) (Cycle, error)
	ListCycles(ctx context.Context) ([]Cycle, error)
	MarkInvoiced(ctx context.Context, ids []string, cycleID string) error
	ReplaceCycleRecords(ctx context.Context, cycleID string, records []map[string]any) error
}

// Invalidator bumps report caches after a write. A nil Invalidator is a no-op.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles work-record business logic.
type Service struct {
	repo     Repository
	validate *validator.Validate
	audit    *shared.AuditLogger
	cache    Invalidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. audit and cache may be nil.
func NewService(repo Repository, audit *shared.AuditLogger, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		validate: validator.New(),
		audit:    audit,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

const dateLayout = "2006-01-02"

// CreateRecord validates the submission and persists a pending record.
func (s *Service) CreateRecord(ctx context.Context, in CreateRecordInput) (WorkRecord, error) {
	if err := s.validate.Struct(in); err != nil {
		return WorkRecord{}, err
	}
	base, err := decimal.NewFromString(in.Base)
	if err != nil {
		return WorkRecord{}, ErrInvalidAmount
	}
	if base.IsNegative() {
		return WorkRecord{}, ErrNegativeBase
	}
	date, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return WorkRecord{}, ErrInvalidDate
	}
	now := s.now()
	record := WorkRecord{
		Code:         in.Code,
		Company:      in.Company,
		Supervisor:   in.Supervisor,
		Zone:         in.Zone,
		Contract:     in.Contract,
		Description:  in.Description,
		Base:         base,
		HasSurcharge: in.HasSurcharge,
		Units:        in.Units,
		Date:         date,
		Status:       StatusPending,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	record, err = s.repo.InsertRecord(ctx, record)
	if err != nil {
		return WorkRecord{}, err
	}
	s.recordAudit(ctx, "record.create", record.ID, map[string]any{"empresa": record.Company, "codigo": record.Code})
	s.bump(ctx)
	return record, nil
}

// UpdateRecord applies a partial edit. Status changes must move forward.
func (s *Service) UpdateRecord(ctx context.Context, id string, in UpdateRecordInput) (WorkRecord, error) {
	current, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return WorkRecord{}, err
	}
	// Field keys follow the persisted document shape.
	fields := map[string]any{}
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString("codigo", in.Code)
	setString("empresa", in.Company)
	setString("encargado", in.Supervisor)
	setString("central", in.Zone)
	setString("contrato", in.Contract)
	setString("descripcion", in.Description)
	setString("numeroFactura", in.InvoiceNumber)
	setString("notas", in.Notes)
	if in.Base != nil {
		base, err := decimal.NewFromString(*in.Base)
		if err != nil {
			return WorkRecord{}, ErrInvalidAmount
		}
		if base.IsNegative() {
			return WorkRecord{}, ErrNegativeBase
		}
		fields["importeBase"] = base.String()
	}
	if in.HasSurcharge != nil {
		fields["plus"] = *in.HasSurcharge
	}
	if in.Units != nil {
		fields["unidades"] = *in.Units
	}
	if in.Date != nil {
		date, err := time.Parse(dateLayout, *in.Date)
		if err != nil {
			return WorkRecord{}, ErrInvalidDate
		}
		fields["fecha"] = date.Format(time.RFC3339)
	}
	if in.Status != nil {
		if !in.Status.Valid() || !current.Status.CanTransition(*in.Status) {
			return WorkRecord{}, ErrStatusRegression
		}
		fields["estado"] = string(*in.Status)
	}
	if len(fields) == 0 {
		return current, nil
	}
	fields["actualizadoEn"] = s.now().Format(time.RFC3339)
	if err := s.repo.UpdateRecord(ctx, id, fields); err != nil {
		return WorkRecord{}, err
	}
	updated, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return WorkRecord{}, err
	}
	s.recordAudit(ctx, "record.update", id, nil)
	s.bump(ctx)
	return updated, nil
}

// DeleteRecord removes a record unconditionally, as requested by the user.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if err := s.repo.DeleteRecord(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "record.delete", id, nil)
	s.bump(ctx)
	return nil
}

// GetRecord loads a single record.
func (s *Service) GetRecord(ctx context.Context, id string) (WorkRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

// ListRecords returns all records, most recent first. This is the one place
// the display ordering is applied; the aggregator preserves it.
func (s *Service) ListRecords(ctx context.Context) ([]WorkRecord, error) {
	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// Report aggregates the record set with the given grouping and filter.
func (s *Service) Report(ctx context.Context, key GroupKey, f Filter) (Report, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return Report{}, err
	}
	return Aggregate(records, key, f), nil
}

// ListCycles returns all close cycles, most recent first.
func (s *Service) ListCycles(ctx context.Context) ([]Cycle, error) {
	cycles, err := s.repo.ListCycles(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cycles, func(i, j int) bool {
		return cycles[i].CreatedAt.After(cycles[j].CreatedAt)
	})
	return cycles, nil
}

// GetCycle loads a single cycle.
func (s *Service) GetCycle(ctx context.Context, id string) (Cycle, error) {
	return s.repo.GetCycle(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		OperatorID: shared.OperatorFromContext(ctx),
		Action:     action,
		Entity:     "work_record",
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump", slog.Any("error", err))
	}
}

func sortNewestFirst(records []WorkRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
