// Package billing implements the invoicing core: work records (expedientes),
// derived monetary totals, grouped reporting, and the month-end cycle close.
package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the work-record lifecycle. Transitions only move
// forward: pendiente -> facturada/archivada -> cobrada.
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusInvoiced  Status = "facturada"
	StatusArchived  Status = "archivada"
	StatusCollected Status = "cobrada"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusInvoiced:  1,
	StatusArchived:  1,
	StatusCollected: 2,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether moving from s to next respects the
// monotonic-forward rule. Staying in place is always allowed.
func (s Status) CanTransition(next Status) bool {
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to >= from
}

// WorkRecord is one billable unit of work (obra/factura).
type WorkRecord struct {
	ID            string          `json:"id"`
	Code          string          `json:"codigo"`
	Company       string          `json:"empresa"`
	Supervisor    string          `json:"encargado"`
	Zone          string          `json:"central"`
	Contract      string          `json:"contrato"`
	Description   string          `json:"descripcion"`
	Base          decimal.Decimal `json:"importeBase"`
	HasSurcharge  bool            `json:"plus"`
	Units         int             `json:"unidades"`
	Date          time.Time       `json:"fecha"`
	Status        Status          `json:"estado"`
	InvoiceNumber string          `json:"numeroFactura,omitempty"`
	Notes         string          `json:"notas,omitempty"`
	CycleID       string          `json:"cicloId,omitempty"`
	CreatedAt     time.Time       `json:"creadoEn"`
	UpdatedAt     time.Time       `json:"actualizadoEn"`
}

// Month returns the record's calendar month in "2006-01" form.
func (r WorkRecord) Month() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("2006-01")
}

// Cycle is the immutable archival snapshot produced by a close. The embedded
// record list is frozen at close time; only the invoice number of an entry
// may be patched afterwards, mirroring the live record.
type Cycle struct {
	ID        string           `json:"id"`
	Label     string           `json:"etiqueta"`
	Operator  string           `json:"operador"`
	Count     int              `json:"total"`
	Records   []map[string]any `json:"registros"`
	Totals    Totals           `json:"importes"`
	CreatedAt time.Time        `json:"creadoEn"`
}

// CreateRecordInput carries a validated form submission.
type CreateRecordInput struct {
	Code         string `json:"codigo" validate:"required"`
	Company      string `json:"empresa" validate:"required"`
	Supervisor   string `json:"encargado"`
	Zone         string `json:"central"`
	Contract     string `json:"contrato"`
	Description  string `json:"descripcion"`
	Base         string `json:"importeBase" validate:"required"`
	HasSurcharge bool   `json:"plus"`
	Units        int    `json:"unidades" validate:"gte=0"`
	Date         string `json:"fecha" validate:"required"`
	Notes        string `json:"notas"`
}

// UpdateRecordInput carries a partial edit; nil fields are untouched.
type UpdateRecordInput struct {
	Code          *string `json:"codigo"`
	Company       *string `json:"empresa"`
	Supervisor    *string `json:"encargado"`
	Zone          *string `json:"central"`
	Contract      *string `json:"contrato"`
	Description   *string `json:"descripcion"`
	Base          *string `json:"importeBase"`
	HasSurcharge  *bool   `json:"plus"`
	Units         *int    `json:"unidades"`
	Date          *string `json:"fecha"`
	Status        *Status `json:"estado"`
	InvoiceNumber *string `json:"numeroFactura"`
	Notes         *string `json:"notas"`
}

// ErrNegativeBase is returned when a submitted base amount is below zero.
var ErrNegativeBase = errors.New("billing: base amount must not be negative")

// ErrInvalidAmount is returned when an amount field does not parse.
var ErrInvalidAmount = errors.New("billing: amount is not numeric")

// ErrInvalidDate is returned when a date field does not parse.
var ErrInvalidDate = errors.New("billing: date is not valid")

// ErrRecordNotFound indicates the work record does not exist.
var ErrRecordNotFound = errors.New("billing: record not found")

// ErrCycleNotFound indicates the cycle does not exist.
var ErrCycleNotFound = errors.New("billing: cycle not found")

// ErrStatusRegression is returned when an edit would move a record's status
// backwards.
var ErrStatusRegression = errors.New("billing: status cannot move backwards")

// ErrSnapshotNotFound indicates a cycle does not embed the requested record.
var ErrSnapshotNotFound = errors.New("billing: record not in cycle snapshot")
