package export

import (
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/andamio-erp/andamio-erp/internal/billing"
)

// euros renders a decimal amount with Spanish digit grouping: "1.565,00 €".
func euros(d decimal.Decimal) string {
	p := message.NewPrinter(language.Spanish)
	return p.Sprintf("%v €", number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

var statementTemplate = template.Must(template.New("statement").Funcs(template.FuncMap{
	"euros": euros,
}).Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Label}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 2em; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 1em; }
th, td { border-bottom: 1px solid #ccc; padding: 4px 6px; text-align: left; }
td.num, th.num { text-align: right; }
tfoot td { font-weight: bold; border-top: 2px solid #333; }
</style>
</head>
<body>
<h1>{{.Label}}</h1>
<p>Operador: {{.Operator}} · Registros: {{.Count}}</p>
<table>
<thead>
<tr><th>Código</th><th>Empresa</th><th>Encargado</th><th>Descripción</th><th class="num">Base</th><th class="num">Plus</th><th class="num">Unidades</th><th class="num">IVA</th><th class="num">Total</th></tr>
</thead>
<tbody>
{{range .Rows}}<tr><td>{{.Code}}</td><td>{{.Company}}</td><td>{{.Supervisor}}</td><td>{{.Description}}</td><td class="num">{{.Base}}</td><td class="num">{{.Surcharge}}</td><td class="num">{{.UnitFee}}</td><td class="num">{{.VAT}}</td><td class="num">{{.Gross}}</td></tr>
{{end}}</tbody>
<tfoot>
<tr><td colspan="4">Total general</td><td class="num">{{.Totals.Base}}</td><td class="num">{{.Totals.Surcharge}}</td><td class="num">{{.Totals.UnitFee}}</td><td class="num">{{.Totals.VAT}}</td><td class="num">{{.Totals.Gross}}</td></tr>
</tfoot>
</table>
</body>
</html>`))

type statementRow struct {
	Code        string
	Company     string
	Supervisor  string
	Description string
	Base        string
	Surcharge   string
	UnitFee     string
	VAT         string
	Gross       string
}

type statementTotals struct {
	Base, Surcharge, UnitFee, VAT, Gross string
}

type statementData struct {
	Label    string
	Operator string
	Count    int
	Rows     []statementRow
	Totals   statementTotals
}

// StatementHTML renders the printable statement for a close cycle. The
// frozen snapshot list is the data source, so the statement matches what
// was archived even if live records changed since.
func StatementHTML(cycle billing.Cycle) (string, error) {
	rows := make([]statementRow, 0, len(cycle.Records))
	for _, snap := range cycle.Records {
		base := snapDecimal(snap["importeBase"])
		hasSurcharge, _ := snap["plus"].(bool)
		units := snapInt(snap["unidades"])
		totals := billing.Compute(base, hasSurcharge, units)
		rows = append(rows, statementRow{
			Code:        snapString(snap["codigo"]),
			Company:     snapString(snap["empresa"]),
			Supervisor:  snapString(snap["encargado"]),
			Description: snapString(snap["descripcion"]),
			Base:        euros(totals.Base),
			Surcharge:   euros(totals.Surcharge),
			UnitFee:     euros(totals.UnitFee),
			VAT:         euros(totals.VAT),
			Gross:       euros(totals.Gross),
		})
	}
	data := statementData{
		Label:    cycle.Label,
		Operator: cycle.Operator,
		Count:    cycle.Count,
		Rows:     rows,
		Totals: statementTotals{
			Base:      euros(cycle.Totals.Base),
			Surcharge: euros(cycle.Totals.Surcharge),
			UnitFee:   euros(cycle.Totals.UnitFee),
			VAT:       euros(cycle.Totals.VAT),
			Gross:     euros(cycle.Totals.Gross),
		},
	}
	var sb strings.Builder
	if err := statementTemplate.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func snapString(v any) string {
	s, _ := v.(string)
	return s
}

func snapDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(val)
	}
	return decimal.Zero
}

func snapInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return 0
}
