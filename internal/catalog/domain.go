// Package catalog manages the selection lists (companies, supervisors,
// zones, contracts) that populate the record form. The lists live in one
// versioned configuration document; every mutation is a read-modify-write
// against the current version.
package catalog

import "errors"

// ListKind names one of the configuration lists.
type ListKind string

const (
	ListCompanies   ListKind = "empresas"
	ListSupervisors ListKind = "encargados"
	ListZones       ListKind = "centrales"
	ListContracts   ListKind = "contratos"
)

// Valid reports whether k names a known list.
func (k ListKind) Valid() bool {
	switch k {
	case ListCompanies, ListSupervisors, ListZones, ListContracts:
		return true
	default:
		return false
	}
}

// Lists is the versioned configuration document. Version increases on every
// write so concurrent editors overwrite each other less often; the store
// offers no transactions, so this reduces lost updates without removing them.
type Lists struct {
	Version     int64    `json:"version"`
	Companies   []string `json:"empresas"`
	Supervisors []string `json:"encargados"`
	Zones       []string `json:"centrales"`
	Contracts   []string `json:"contratos"`
}

func (l *Lists) of(kind ListKind) *[]string {
	switch kind {
	case ListCompanies:
		return &l.Companies
	case ListSupervisors:
		return &l.Supervisors
	case ListZones:
		return &l.Zones
	case ListContracts:
		return &l.Contracts
	default:
		return nil
	}
}

// ErrUnknownList is returned for a list name outside the known set.
var ErrUnknownList = errors.New("catalog: unknown list")

// ErrEmptyValue is returned when adding a blank entry.
var ErrEmptyValue = errors.New("catalog: value required")
