package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixtureRecords() []WorkRecord {
	return []WorkRecord{
		{ID: "r1", Code: "EXP-001", Company: "Acme Construcciones", Supervisor: "Marta", Base: dec("1000"), HasSurcharge: true, Date: day("2026-03-10"), Status: StatusPending},
		{ID: "r2", Code: "EXP-002", Company: "Acme Construcciones", Supervisor: "Luis", Base: dec("500"), Units: 10, Date: day("2026-03-05"), Status: StatusPending},
		{ID: "r3", Code: "EXP-003", Company: "Norte Obras", Supervisor: "Marta", Base: dec("250"), Date: day("2026-02-20"), Status: StatusInvoiced},
		{ID: "r4", Code: "EXP-004", Company: "Norte Obras", Supervisor: "Luis", Base: dec("750.50"), HasSurcharge: true, Units: 2, Date: day("2026-02-01"), Status: StatusCollected},
	}
}

func TestAggregateExample(t *testing.T) {
	records := []WorkRecord{
		{ID: "a", Base: dec("1000"), HasSurcharge: true},
		{ID: "b", Base: dec("500"), Units: 10},
	}
	rep := Aggregate(records, GroupNone, Filter{})

	require.Equal(t, 2, rep.Count)
	require.Len(t, rep.Groups, 1)
	require.True(t, rep.GrandTotal.Base.Equal(dec("1500")))
	require.True(t, rep.GrandTotal.Surcharge.Equal(dec("50")))
	require.True(t, rep.GrandTotal.UnitFee.Equal(dec("15")))
	require.True(t, rep.GrandTotal.VAT.Equal(dec("315")))
	require.True(t, rep.GrandTotal.Net.Equal(dec("1565")))
	require.True(t, rep.GrandTotal.Gross.Equal(dec("1880")))
	require.True(t, rep.Groups[0].Subtotal.Equal(rep.GrandTotal))
}

func TestAggregateGroupingInvariance(t *testing.T) {
	records := fixtureRecords()
	base := Aggregate(records, GroupNone, Filter{})

	for _, key := range []GroupKey{GroupCompany, GroupSupervisor, GroupMonth} {
		rep := Aggregate(records, key, Filter{})
		require.True(t, rep.GrandTotal.Equal(base.GrandTotal), "grand total changed under %q", key)

		var sum Totals
		for _, g := range rep.Groups {
			sum = sum.Add(g.Subtotal)
		}
		require.True(t, sum.Equal(rep.GrandTotal), "group subtotals do not add up under %q", key)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	rep := Aggregate(nil, GroupCompany, Filter{})
	require.Zero(t, rep.Count)
	require.Empty(t, rep.Groups)
	require.True(t, rep.GrandTotal.Gross.IsZero())
}

func TestAggregateInsertionOrder(t *testing.T) {
	rep := Aggregate(fixtureRecords(), GroupCompany, Filter{})

	require.Len(t, rep.Groups, 2)
	require.Equal(t, "Acme Construcciones", rep.Groups[0].Key)
	require.Equal(t, "Norte Obras", rep.Groups[1].Key)
	// Records keep the order of the filtered input, not a re-sort.
	require.Equal(t, "r1", rep.Groups[0].Records[0].ID)
	require.Equal(t, "r2", rep.Groups[0].Records[1].ID)
}

func TestAggregateGroupByMonth(t *testing.T) {
	rep := Aggregate(fixtureRecords(), GroupMonth, Filter{})
	require.Len(t, rep.Groups, 2)
	require.Equal(t, "2026-03", rep.Groups[0].Key)
	require.Equal(t, "2026-02", rep.Groups[1].Key)
}

func TestFilterSearchCombinesWithFilters(t *testing.T) {
	records := fixtureRecords()

	// Search alone matches both Marta records.
	rep := Aggregate(records, GroupNone, Filter{Search: "marta"})
	require.Equal(t, 2, rep.Count)

	// Search combined with a status filter narrows further (AND policy).
	rep = Aggregate(records, GroupNone, Filter{Search: "marta", Status: StatusPending})
	require.Equal(t, 1, rep.Count)
	require.Equal(t, "r1", rep.Groups[0].Records[0].ID)
}

func TestFilterByCompanyAndMonth(t *testing.T) {
	records := fixtureRecords()

	rep := Aggregate(records, GroupNone, Filter{Company: "Norte Obras", Month: "2026-02"})
	require.Equal(t, 2, rep.Count)

	rep = Aggregate(records, GroupNone, Filter{Company: "Norte Obras", Month: "2026-03"})
	require.Zero(t, rep.Count)
}
