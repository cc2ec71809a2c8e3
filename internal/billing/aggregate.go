package billing

import "strings"

// GroupKey selects how the aggregator partitions records.
type GroupKey string

const (
	GroupNone       GroupKey = ""
	GroupCompany    GroupKey = "empresa"
	GroupSupervisor GroupKey = "encargado"
	GroupMonth      GroupKey = "mes"
)

// Filter narrows the record set before grouping. Zero values mean "any".
// Free-text search combines with the other active filters (AND); the source
// revisions disagreed on this, the combining policy is the one kept here.
type Filter struct {
	Status     Status
	Company    string
	Supervisor string
	Month      string
	Search     string
}

// Matches reports whether r passes every active criterion.
func (f Filter) Matches(r WorkRecord) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Company != "" && r.Company != f.Company {
		return false
	}
	if f.Supervisor != "" && r.Supervisor != f.Supervisor {
		return false
	}
	if f.Month != "" && r.Month() != f.Month {
		return false
	}
	if f.Search != "" && !matchesSearch(r, f.Search) {
		return false
	}
	return true
}

func matchesSearch(r WorkRecord, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{r.Code, r.Company, r.Supervisor, r.Zone, r.Contract, r.Description, r.InvoiceNumber, r.Notes} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Group is one partition of the filtered set with its subtotal.
type Group struct {
	Key      string       `json:"clave"`
	Records  []WorkRecord `json:"registros"`
	Subtotal Totals       `json:"subtotal"`
}

// Report is the aggregator's output: ordered groups plus grand totals
// computed over the flat filtered set.
type Report struct {
	Groups     []Group `json:"grupos"`
	GrandTotal Totals  `json:"totalGeneral"`
	Count      int     `json:"total"`
}

func groupValue(r WorkRecord, key GroupKey) string {
	switch key {
	case GroupCompany:
		return r.Company
	case GroupSupervisor:
		return r.Supervisor
	case GroupMonth:
		return r.Month()
	default:
		return ""
	}
}

// Aggregate filters records, partitions them by key, and folds per-record
// totals into subtotals and grand totals. Group order follows first
// appearance of each key; records keep the order of the filtered input.
// Empty input yields an empty group set and all-zero totals.
func Aggregate(records []WorkRecord, key GroupKey, f Filter) Report {
	var rep Report
	index := map[string]int{}
	for _, r := range records {
		if !f.Matches(r) {
			continue
		}
		rep.Count++
		rep.GrandTotal = rep.GrandTotal.Add(ComputeRecord(r))
		gk := groupValue(r, key)
		i, seen := index[gk]
		if !seen {
			i = len(rep.Groups)
			index[gk] = i
			rep.Groups = append(rep.Groups, Group{Key: gk})
		}
		g := &rep.Groups[i]
		g.Records = append(g.Records, r)
		g.Subtotal = g.Subtotal.Add(ComputeRecord(r))
	}
	return rep
}
